package app

import (
	"net/http"

	"github.com/enrolhub/checkout-engine/api"
	"github.com/enrolhub/checkout-engine/internal/wallet"
	"github.com/go-chi/chi/v5"
)

func (app *Application) ListPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	methods, err := engine.Wallet.List(r.Context())
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.PaymentMethodsResponse{PaymentMethods: methods}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CreatePaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	var input api.CreatePaymentMethodRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	engine := app.contextGetEngine(r)

	method, err := engine.Wallet.Create(r.Context(), wallet.CreateInput{
		ProviderToken:  input.ProviderToken,
		BillingAddress: input.BillingAddress,
		SetAsDefault:   input.SetAsDefault,
	})
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, api.PaymentMethodResponse{PaymentMethod: method}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) DeletePaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	ok, err := engine.Wallet.Delete(r.Context(), chi.URLParam(r, "id"))
	app.actionResponse(w, r, ok, err)
}

func (app *Application) SetDefaultPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	ok, err := engine.Wallet.SetDefault(r.Context(), chi.URLParam(r, "id"))
	app.actionResponse(w, r, ok, err)
}

func (app *Application) GetPaymentConfigHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	key, err := engine.Wallet.PublishableKey(r.Context())
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.PaymentConfigResponse{PublishableKey: key}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// actionResponse reports the result of a backend call answering with a
// bare flag. A false flag means the backend declined the action.
func (app *Application) actionResponse(w http.ResponseWriter, r *http.Request, ok bool, err error) {
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	if !ok {
		app.errorResponse(w, r, http.StatusConflict, "The request was declined by the course backend")
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.ActionResponse{Success: true}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

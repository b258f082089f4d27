package app

import (
	"net/http"

	"github.com/enrolhub/checkout-engine/api"
	"github.com/enrolhub/checkout-engine/internal/domain"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/go-chi/chi/v5"
)

func (app *Application) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	pagination := domain.NewPagination(
		readInt(r, "page", 1),
		readInt(r, "pageSize", domain.DefaultPageSize),
	)

	engine := app.contextGetEngine(r)

	orders, metadata, err := engine.Checkout.OrderHistory(r.Context(), pagination)
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.OrdersResponse{Orders: orders, Metadata: metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	order, err := engine.Checkout.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.OrderResponse{Order: order}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	ok, err := engine.Checkout.CancelOrder(r.Context(), chi.URLParam(r, "orderId"))
	app.actionResponse(w, r, ok, err)
}

func (app *Application) RefundOrderHandler(w http.ResponseWriter, r *http.Request) {
	var input api.RefundRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, appvalidator.FieldErrors(err))
		return
	}

	engine := app.contextGetEngine(r)

	ok, err := engine.Checkout.ProcessRefund(r.Context(), chi.URLParam(r, "orderId"), input.Amount, input.Reason)
	app.actionResponse(w, r, ok, err)
}

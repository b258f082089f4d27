package app

import (
	"net/http"
	"strings"

	"github.com/enrolhub/checkout-engine/api"
	"github.com/enrolhub/checkout-engine/internal/checkout"
	"github.com/enrolhub/checkout-engine/internal/domain"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
)

func (app *Application) GetCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	err := app.writeJSON(w, http.StatusOK, api.CheckoutResponse{Outcome: engine.Checkout.Outcome()}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) PlaceOrderHandler(w http.ResponseWriter, r *http.Request) {
	var input api.PlaceOrderRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	engine := app.contextGetEngine(r)
	logger := app.contextGetLogger(r)

	outcome := engine.Checkout.PlaceOrder(r.Context(), checkout.PlaceOrderRequest{
		BasketID:            input.BasketId,
		ExpectedChargeTotal: input.ExpectedChargeTotal,
		PaymentMethodID:     input.PaymentMethodId,
		PaymentMethodType:   input.PaymentMethodType,
		BillingAddress:      input.BillingAddress,
		LineItemInfo:        input.LineItemInfo,
	})

	if outcome.State == domain.PaymentStateFailed {
		logger.Warn("checkout failed", "error_code", outcome.ErrorCode, "error", outcome.Error)
	}

	app.outcomeResponse(w, r, outcome)
}

func (app *Application) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var input api.ConfirmPaymentRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	input.PaymentIntentId = strings.TrimSpace(input.PaymentIntentId)

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, appvalidator.FieldErrors(err))
		return
	}

	engine := app.contextGetEngine(r)

	confirmed, err := engine.Checkout.ConfirmPaymentIntent(r.Context(), input.PaymentIntentId)
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	resp := api.ConfirmPaymentResponse{
		Confirmed: confirmed,
		Outcome:   engine.Checkout.Outcome(),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	outcome, err := engine.Checkout.CancelAction(r.Context())
	if err != nil {
		app.errorFor(w, r, err)
		return
	}

	app.outcomeResponse(w, r, outcome)
}

// outcomeResponse writes a payment outcome. Failed outcomes keep the outcome
// body so a TOTAL_CHANGED failure still hands the fresh basket to the client.
func (app *Application) outcomeResponse(w http.ResponseWriter, r *http.Request, outcome domain.PaymentOutcome) {
	status := http.StatusOK

	switch outcome.State {
	case domain.PaymentStateActionRequired:
		status = http.StatusAccepted

	case domain.PaymentStateFailed:
		if outcome.ErrorCode == domain.CodeValidationError && len(outcome.ValidationErrors) > 0 {
			app.failedValidationResponse(w, r, outcome.ValidationErrors)
			return
		}

		status = statusForCode(outcome.ErrorCode)
	}

	err := app.writeJSON(w, status, api.CheckoutResponse{Outcome: outcome}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

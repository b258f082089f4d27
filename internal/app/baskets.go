package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/enrolhub/checkout-engine/api"
	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/pricing"
	appvalidator "github.com/enrolhub/checkout-engine/internal/validator"
	"github.com/go-chi/chi/v5"
)

const displayCurrency = "GBP"

func (app *Application) GetBasketHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	var res domain.OperationResult
	if r.URL.Query().Get("refresh") == "true" {
		res = engine.Basket.Refresh(r.Context())
	} else {
		res = engine.Basket.Load(r.Context())
	}

	app.basketResponse(w, r, res)
}

func (app *Application) ClearBasketHandler(w http.ResponseWriter, r *http.Request) {
	engine := app.contextGetEngine(r)

	app.basketResponse(w, r, engine.Basket.Clear(r.Context()))
}

func (app *Application) AddBasketItemHandler(w http.ResponseWriter, r *http.Request) {
	var input api.AddItemRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	engine := app.contextGetEngine(r)

	res := engine.Basket.AddItem(r.Context(), input.CourseId, input.ItemType, domain.ItemOptions{
		PayDeposit:     input.PayDeposit,
		AssignToUserID: input.AssignToUserId,
		ChargeFromDate: input.ChargeFromDate,
	})

	app.basketResponse(w, r, res)
}

func (app *Application) RemoveBasketItemHandler(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseId")

	itemType := domain.ItemType(strings.ToUpper(r.URL.Query().Get("itemType")))
	if itemType == "" {
		itemType = domain.ItemTypeCourse
	}

	if !itemType.Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("unknown item type %q", itemType))
		return
	}

	engine := app.contextGetEngine(r)

	app.basketResponse(w, r, engine.Basket.RemoveItem(r.Context(), courseID, itemType))
}

func (app *Application) UpdateBasketCreditHandler(w http.ResponseWriter, r *http.Request) {
	var input api.CreditRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.validator.Struct(input); err != nil {
		app.failedValidationResponse(w, r, appvalidator.FieldErrors(err))
		return
	}

	engine := app.contextGetEngine(r)

	app.basketResponse(w, r, engine.Basket.ToggleCredit(r.Context(), *input.UseCredit))
}

func (app *Application) ApplyPromoCodeHandler(w http.ResponseWriter, r *http.Request) {
	var input api.PromoCodeRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	engine := app.contextGetEngine(r)

	app.basketResponse(w, r, engine.Basket.ApplyPromoCode(r.Context(), input.Code))
}

func (app *Application) basketResponse(w http.ResponseWriter, r *http.Request, res domain.OperationResult) {
	if !res.Success {
		app.operationFailedResponse(w, r, res.ErrorCode, res.Message, res.ValidationErrors)
		return
	}

	resp := api.BasketResponse{
		Basket:  res.Basket,
		Display: displayTotals(res.Basket),
	}

	err := app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func displayTotals(b *domain.Basket) *api.DisplayTotals {
	if b == nil {
		return nil
	}

	return &api.DisplayTotals{
		SubTotal:    pricing.Format(b.SubTotal, displayCurrency),
		Discount:    pricing.Format(b.DiscountTotal+b.PromoCodeDiscountValue, displayCurrency),
		Credit:      pricing.Format(b.CreditTotal, displayCurrency),
		Tax:         pricing.Format(b.Tax, displayCurrency),
		Total:       pricing.Format(b.Total, displayCurrency),
		ChargeTotal: pricing.Format(b.ChargeTotal, displayCurrency),
		PayLater:    pricing.Format(b.PayLater, displayCurrency),
	}
}

package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/enrolhub/checkout-engine/api"
	"github.com/enrolhub/checkout-engine/internal/basket"
	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/wallet"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	ErrInternalServer   = "The server encountered a problem and could not process your request"
	ErrNotFound         = "The requested resource not found"
	ErrMethodNotAllowed = "The method is not supported for this resource"
	ErrEditConflict     = "Another operation is in progress for this basket, please try again"
	ErrFailedValidation = "One or more fields are invalid"
	ErrBackendDown      = "The course backend could not be reached, please try again"
)

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.contextGetLogger(r).Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.codedErrorResponse(w, r, status, message, "")
}

func (app *Application) codedErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string, code domain.ErrorCode) {
	resp := api.ErrorResponse{
		Message:   message,
		ErrorCode: string(code),
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, ErrNotFound)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	app.codedErrorResponse(w, r, http.StatusConflict, ErrEditConflict, domain.CodeBusy)
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, fieldErrors []domain.FieldError) {
	resp := api.ValidationErrorResponse{
		Message:          ErrFailedValidation,
		ValidationErrors: make([]api.ValidationError, len(fieldErrors)),
	}

	for i, fe := range fieldErrors {
		resp.ValidationErrors[i] = api.ValidationError{Field: fe.Path, Issue: fe.Message}
	}

	err := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// operationFailedResponse reports a failed basket operation or checkout.
func (app *Application) operationFailedResponse(
	w http.ResponseWriter,
	r *http.Request,
	code domain.ErrorCode,
	message string,
	fieldErrors []domain.FieldError) {

	if code == domain.CodeValidationError && len(fieldErrors) > 0 {
		app.failedValidationResponse(w, r, fieldErrors)
		return
	}

	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		app.logError(r, errors.New(message))
	}

	app.codedErrorResponse(w, r, status, message, code)
}

// errorFor reports an error returned by the payment, wallet and order
// operations.
func (app *Application) errorFor(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *wallet.ValidationError

	switch {
	case errors.As(err, &validationErr):
		app.failedValidationResponse(w, r, validationErr.Fields)

	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)

	case errors.Is(err, domain.ErrBusy):
		app.editConflictResponse(w, r)

	case errors.Is(err, domain.ErrNoActivePayment):
		app.codedErrorResponse(w, r, http.StatusConflict, err.Error(), "")

	case errors.Is(err, domain.ErrActionIncomplete):
		app.codedErrorResponse(w, r, http.StatusAccepted, err.Error(), "")

	case errors.Is(err, domain.ErrRemote):
		app.codedErrorResponse(w, r, http.StatusBadRequest, err.Error(), "")

	default:
		code := domain.CodeFor(err, "")
		if code == "" {
			app.serverErrorResponse(w, r, err)
			return
		}

		message := err.Error()
		if code == domain.CodeNetworkError {
			message = ErrBackendDown
		}

		app.operationFailedResponse(w, r, code, message, nil)
	}
}

// statusForCode maps error codes onto HTTP statuses. Codes the backend
// reports for business rejections are client errors.
func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeBusy, domain.CodeTotalChanged, domain.CodeEmptyBasket, basket.CodeAlreadyInBasket:
		return http.StatusConflict
	case basket.CodeNotInBasket:
		return http.StatusNotFound
	case domain.CodeValidationError:
		return http.StatusUnprocessableEntity
	case domain.CodeNetworkError:
		return http.StatusBadGateway
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeOrderError:
		return http.StatusPaymentRequired
	case domain.CodeNoData, domain.CodeExceptionError, domain.CodeInvariantViolation, domain.CodeBasketError, "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

package domain

import (
	"context"
	"errors"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrBusy               = errors.New("another operation is in progress for this basket")
	ErrNetwork            = errors.New("backend could not be reached")
	ErrMalformedResponse  = errors.New("backend returned a malformed response")
	ErrRemote             = errors.New("backend rejected the request")
	ErrNoData             = errors.New("backend returned no data")
	ErrEmptyBasket        = errors.New("basket is empty, nothing to checkout")
	ErrValidation         = errors.New("invalid input")
	ErrInvariantViolation = errors.New("basket totals violate pricing invariants")
	ErrNoActivePayment    = errors.New("there is no payment awaiting confirmation")
	ErrActionTimeout      = errors.New("payment confirmation step timed out")
	ErrActionIncomplete   = errors.New("payment confirmation step is not complete yet")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrIllegalTransition  = errors.New("illegal transition of payment state")
	ErrCacheMiss          = errors.New("cache miss")
)

type ErrorCode string

const (
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeOrderError         ErrorCode = "ORDER_ERROR"
	CodeNoData             ErrorCode = "NO_DATA"
	CodeExceptionError     ErrorCode = "EXCEPTION_ERROR"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeBusy               ErrorCode = "BUSY"
	CodeTotalChanged       ErrorCode = "TOTAL_CHANGED"
	CodeValidationError    ErrorCode = "VALIDATION_ERROR"
	CodeEmptyBasket        ErrorCode = "EMPTY_BASKET"
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	CodeBasketError        ErrorCode = "BASKET_ERROR"
)

// CodeFor maps an error onto the stable code reported to callers. Errors the
// engine does not classify itself fall back to the given code.
func CodeFor(err error, fallback ErrorCode) ErrorCode {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrBusy):
		return CodeBusy

	case errors.Is(err, ErrActionTimeout):
		return CodeTimeout

	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.DeadlineExceeded):
		return CodeNetworkError

	case errors.Is(err, ErrMalformedResponse):
		return CodeExceptionError

	case errors.Is(err, ErrNoData):
		return CodeNoData

	case errors.Is(err, ErrEmptyBasket):
		return CodeEmptyBasket

	case errors.Is(err, ErrValidation):
		return CodeValidationError

	case errors.Is(err, ErrInvariantViolation):
		return CodeInvariantViolation

	case errors.Is(err, ErrPaymentDeclined):
		return CodeOrderError

	default:
		return fallback
	}
}

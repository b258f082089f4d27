package domain

import "encoding/json"

type PaymentState string

const (
	PaymentStateIdle           PaymentState = "IDLE"
	PaymentStatePlacing        PaymentState = "PLACING"
	PaymentStateActionRequired PaymentState = "ACTION_REQUIRED"
	PaymentStateCompleted      PaymentState = "COMPLETED"
	PaymentStateFailed         PaymentState = "FAILED"
	PaymentStateCancelled      PaymentState = "CANCELLED"
)

func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateCompleted || s == PaymentStateFailed || s == PaymentStateCancelled
}

// IsActive reports whether the basket must stay frozen in this state.
func (s PaymentState) IsActive() bool {
	return s == PaymentStatePlacing || s == PaymentStateActionRequired
}

func (s PaymentState) String() string {
	return string(s)
}

var paymentTransitions = map[PaymentState][]PaymentState{
	PaymentStateIdle:           {PaymentStatePlacing},
	PaymentStatePlacing:        {PaymentStateCompleted, PaymentStateActionRequired, PaymentStateFailed},
	PaymentStateActionRequired: {PaymentStatePlacing, PaymentStateCompleted, PaymentStateFailed, PaymentStateCancelled},
	PaymentStateCompleted:      {PaymentStatePlacing},
	PaymentStateFailed:         {PaymentStatePlacing},
	PaymentStateCancelled:      {PaymentStatePlacing},
}

func CanTransitionTo(from, to PaymentState) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// OperationResult is the outcome of one basket mutation. Exactly one of
// Basket (on success) or Message/ErrorCode (on failure) is meaningful.
type OperationResult struct {
	Success          bool         `json:"success"`
	Basket           *Basket      `json:"basket,omitempty"`
	Message          string       `json:"message,omitempty"`
	ErrorCode        ErrorCode    `json:"errorCode,omitempty"`
	ValidationErrors []FieldError `json:"validationErrors,omitempty"`
}

func Succeeded(basket *Basket) OperationResult {
	return OperationResult{Success: true, Basket: basket}
}

func Failed(code ErrorCode, message string, fieldErrors ...FieldError) OperationResult {
	return OperationResult{
		Message:          message,
		ErrorCode:        code,
		ValidationErrors: fieldErrors,
	}
}

// PaymentOutcome is transient and never persisted.
type PaymentOutcome struct {
	State                    PaymentState             `json:"state"`
	Success                  bool                     `json:"success"`
	Order                    *Order                   `json:"order,omitempty"`
	Basket                   *Basket                  `json:"basket,omitempty"`
	ClientSecret             string                   `json:"clientSecret,omitempty"`
	NextAction               json.RawMessage          `json:"nextAction,omitempty"`
	PaymentIntentID          string                   `json:"paymentIntentId,omitempty"`
	PaymentTransactionStatus PaymentTransactionStatus `json:"paymentTransactionStatus,omitempty"`
	Error                    string                   `json:"error,omitempty"`
	ErrorCode                ErrorCode                `json:"errorCode,omitempty"`
	ValidationErrors         []FieldError             `json:"validationErrors,omitempty"`
	IsUserCancellation       bool                     `json:"isUserCancellation"`
}

func FailedOutcome(code ErrorCode, message string) PaymentOutcome {
	return PaymentOutcome{
		State:     PaymentStateFailed,
		Error:     message,
		ErrorCode: code,
	}
}

func CompletedOutcome(order *Order) PaymentOutcome {
	outcome := PaymentOutcome{
		State:   PaymentStateCompleted,
		Success: true,
		Order:   order,
	}

	if order != nil {
		outcome.PaymentIntentID = order.PaymentIntentID
		outcome.PaymentTransactionStatus = order.PaymentTransactionStatus
	}

	return outcome
}

func CancelledOutcome() PaymentOutcome {
	return PaymentOutcome{
		State:              PaymentStateCancelled,
		IsUserCancellation: true,
	}
}

package domain

import (
	"context"
	"time"
)

type CheckoutAttempt struct {
	ID              string
	IdempotencyKey  string
	BasketID        string
	State           PaymentState
	ErrorCode       ErrorCode
	ChargeTotal     int64
	PaymentIntentID string
	OrderID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CheckoutLedger keeps a local record of checkout attempts. It backs the
// idempotency of intent confirmation and the single-shot refund rule.
type CheckoutLedger interface {
	SaveAttempt(ctx context.Context, attempt *CheckoutAttempt) error
	GetAttempt(ctx context.Context, id string) (*CheckoutAttempt, error)
	ConfirmIntent(ctx context.Context, paymentIntentID, orderID string) (alreadyConfirmed bool, err error)
	IsIntentConfirmed(ctx context.Context, paymentIntentID string) (bool, error)
	RecordRefund(ctx context.Context, refund Refund) error
}

package domain

import "context"

// IntentVerifier looks a payment intent up at the payment provider.
type IntentVerifier interface {
	VerifyIntent(ctx context.Context, paymentIntentID string) (PaymentTransactionStatus, error)
}

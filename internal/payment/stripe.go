package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

type StripeIntentVerifier struct {
	getIntent func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// NewStripeIntentVerifier reads intents with the package-level stripe key.
func NewStripeIntentVerifier(secretKey string) *StripeIntentVerifier {
	stripe.Key = secretKey

	return &StripeIntentVerifier{
		getIntent: paymentintent.Get,
	}
}

func (s *StripeIntentVerifier) VerifyIntent(ctx context.Context, paymentIntentID string) (domain.PaymentTransactionStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := s.getIntent(paymentIntentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.HTTPStatusCode == http.StatusNotFound {
				return "", fmt.Errorf("payment intent %s: %w", paymentIntentID, domain.ErrRecordNotFound)
			}

			return "", fmt.Errorf("%w: payment intent %s: %s", domain.ErrRemote, paymentIntentID, stripeErr.Msg)
		}

		return "", fmt.Errorf("%w: payment intent %s: %v", domain.ErrNetwork, paymentIntentID, err)
	}

	if intent == nil || intent.Status == "" {
		return "", fmt.Errorf("%w: payment intent %s has no status", domain.ErrMalformedResponse, paymentIntentID)
	}

	return domain.PaymentTransactionStatus(intent.Status), nil
}

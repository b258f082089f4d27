package mocks

import (
	"context"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockIntentVerifier struct {
	mock.Mock
	domain.IntentVerifier
}

func (m *MockIntentVerifier) VerifyIntent(ctx context.Context, paymentIntentID string) (domain.PaymentTransactionStatus, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Get(0).(domain.PaymentTransactionStatus), args.Error(1)
}

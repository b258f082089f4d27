package mocks

import (
	"context"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
	domain.CheckoutLedger
}

func (m *MockLedger) SaveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockLedger) GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutAttempt), args.Error(1)
}

func (m *MockLedger) ConfirmIntent(ctx context.Context, paymentIntentID, orderID string) (bool, error) {
	args := m.Called(ctx, paymentIntentID, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) IsIntentConfirmed(ctx context.Context, paymentIntentID string) (bool, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) RecordRefund(ctx context.Context, refund domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

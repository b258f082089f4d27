package mocks

import (
	"context"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
	domain.EventPublisher
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

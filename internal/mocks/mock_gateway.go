package mocks

import (
	"context"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
	domain.Gateway
}

func (m *MockGateway) GetBasket(ctx context.Context) (*domain.Basket, error) {
	args := m.Called(ctx)
	return basketArg(args, 0), args.Error(1)
}

func (m *MockGateway) InitBasket(ctx context.Context) (*domain.Basket, error) {
	args := m.Called(ctx)
	return basketArg(args, 0), args.Error(1)
}

func (m *MockGateway) AddItem(ctx context.Context, input domain.AddItemInput) (*domain.BasketMutation, error) {
	args := m.Called(ctx, input)
	return mutationArg(args, 0), args.Error(1)
}

func (m *MockGateway) RemoveItem(ctx context.Context, courseID string, itemType domain.ItemType) (*domain.BasketMutation, error) {
	args := m.Called(ctx, courseID, itemType)
	return mutationArg(args, 0), args.Error(1)
}

func (m *MockGateway) UseCreditForBasket(ctx context.Context, useCredit bool) (*domain.BasketMutation, error) {
	args := m.Called(ctx, useCredit)
	return mutationArg(args, 0), args.Error(1)
}

func (m *MockGateway) ApplyPromoCode(ctx context.Context, code string) (*domain.BasketMutation, error) {
	args := m.Called(ctx, code)
	return mutationArg(args, 0), args.Error(1)
}

func (m *MockGateway) DestroyBasket(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) GetPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentMethod), args.Error(1)
}

func (m *MockGateway) GetStripePublishableKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreatePaymentMethod(ctx context.Context, input domain.CreatePaymentMethodInput) (*domain.PaymentMethod, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentMethod), args.Error(1)
}

func (m *MockGateway) DeletePaymentMethod(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) SetDefaultPaymentMethod(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) PlaceOrder(ctx context.Context, input domain.PlaceOrderInput) (*domain.PlaceOrderResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlaceOrderResult), args.Error(1)
}

func (m *MockGateway) UpdatePaymentIntent(ctx context.Context, paymentIntentID string) (bool, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockGateway) GetOrderHistory(ctx context.Context, limit, offset int) (*domain.OrderHistory, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderHistory), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) ProcessRefund(ctx context.Context, orderID string, amount int64, reason string) (bool, error) {
	args := m.Called(ctx, orderID, amount, reason)
	return args.Bool(0), args.Error(1)
}

func basketArg(args mock.Arguments, i int) *domain.Basket {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*domain.Basket)
}

func mutationArg(args mock.Arguments, i int) *domain.BasketMutation {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*domain.BasketMutation)
}

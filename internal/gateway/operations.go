package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
)

var _ domain.Gateway = (*Client)(nil)

func (c *Client) GetBasket(ctx context.Context) (*domain.Basket, error) {
	var basket *domain.Basket

	err := c.do(ctx, "getBasket", queryGetBasket, nil, &basket)
	if err != nil {
		return nil, err
	}

	return basket, nil
}

func (c *Client) InitBasket(ctx context.Context) (*domain.Basket, error) {
	var basket *domain.Basket

	err := c.do(ctx, "initBasket", mutationInitBasket, nil, &basket)
	if err != nil {
		return nil, err
	}

	return basket, nil
}

func (c *Client) AddItem(ctx context.Context, input domain.AddItemInput) (*domain.BasketMutation, error) {
	vars := map[string]any{
		"courseId":   input.CourseID,
		"itemType":   input.ItemType,
		"payDeposit": input.PayDeposit,
	}

	if input.AssignToUserID != nil {
		vars["assignToUserId"] = *input.AssignToUserID
	}

	if input.ChargeFromDate != nil {
		vars["chargeFromDate"] = input.ChargeFromDate.UTC().Format(time.RFC3339)
	}

	return c.mutate(ctx, "addItem", mutationAddItem, map[string]any{"input": vars})
}

func (c *Client) RemoveItem(ctx context.Context, courseID string, itemType domain.ItemType) (*domain.BasketMutation, error) {
	return c.mutate(ctx, "removeItem", mutationRemoveItem, map[string]any{
		"courseId": courseID,
		"itemType": itemType,
	})
}

func (c *Client) UseCreditForBasket(ctx context.Context, useCredit bool) (*domain.BasketMutation, error) {
	return c.mutate(ctx, "useCreditForBasket", mutationUseCredit, map[string]any{"useCredit": useCredit})
}

func (c *Client) ApplyPromoCode(ctx context.Context, code string) (*domain.BasketMutation, error) {
	return c.mutate(ctx, "applyPromoCode", mutationApplyPromoCode, map[string]any{"code": code})
}

func (c *Client) DestroyBasket(ctx context.Context) (bool, error) {
	return c.flag(ctx, "destroyBasket", mutationDestroyBasket, nil)
}

func (c *Client) GetPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	var methods []domain.PaymentMethod

	err := c.do(ctx, "getPaymentMethods", queryGetPaymentMethods, nil, &methods)
	if err != nil {
		return nil, err
	}

	if methods == nil {
		methods = []domain.PaymentMethod{}
	}

	return methods, nil
}

func (c *Client) GetStripePublishableKey(ctx context.Context) (string, error) {
	var key string

	err := c.do(ctx, "getStripePublishableKey", queryGetStripePublishableKey, nil, &key)
	if err != nil {
		return "", err
	}

	return key, nil
}

func (c *Client) CreatePaymentMethod(ctx context.Context, input domain.CreatePaymentMethodInput) (*domain.PaymentMethod, error) {
	vars := map[string]any{
		"providerToken": input.ProviderToken,
		"setAsDefault":  input.SetAsDefault,
	}

	if input.BillingAddress != nil {
		vars["billingAddress"] = input.BillingAddress
	}

	var method *domain.PaymentMethod

	err := c.do(ctx, "createPaymentMethod", mutationCreatePaymentMethod, map[string]any{"input": vars}, &method)
	if err != nil {
		return nil, err
	}

	if method == nil {
		return nil, domain.ErrNoData
	}

	return method, nil
}

func (c *Client) DeletePaymentMethod(ctx context.Context, id string) (bool, error) {
	return c.flag(ctx, "deletePaymentMethod", mutationDeletePaymentMethod, map[string]any{"id": id})
}

func (c *Client) SetDefaultPaymentMethod(ctx context.Context, id string) (bool, error) {
	return c.flag(ctx, "setDefaultPaymentMethod", mutationSetDefaultPaymentMethod, map[string]any{"id": id})
}

func (c *Client) PlaceOrder(ctx context.Context, input domain.PlaceOrderInput) (*domain.PlaceOrderResult, error) {
	data := map[string]any{
		"basketId":        input.BasketID,
		"paymentMethodId": input.PaymentMethodID,
		"idempotencyKey":  input.IdempotencyKey,
	}

	if input.PaymentMethodType != "" {
		data["paymentMethodType"] = input.PaymentMethodType
	}

	if input.BillingAddress != nil {
		data["billingAddress"] = input.BillingAddress
	}

	if len(input.LineItemInfo) > 0 {
		data["lineItemInfo"] = json.RawMessage(input.LineItemInfo)
	}

	var result *domain.PlaceOrderResult

	err := c.do(ctx, "placeOrder", mutationPlaceOrder, map[string]any{"data": data}, &result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) UpdatePaymentIntent(ctx context.Context, paymentIntentID string) (bool, error) {
	return c.flag(ctx, "updatePaymentIntent", mutationUpdatePaymentIntent, map[string]any{"id": paymentIntentID})
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order

	err := c.do(ctx, "getOrder", queryGetOrder, map[string]any{"id": id}, &order)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (c *Client) GetOrderHistory(ctx context.Context, limit, offset int) (*domain.OrderHistory, error) {
	var history *domain.OrderHistory

	err := c.do(ctx, "getOrderHistory", queryGetOrderHistory, map[string]any{"limit": limit, "offset": offset}, &history)
	if err != nil {
		return nil, err
	}

	if history == nil {
		return nil, domain.ErrNoData
	}

	return history, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) (bool, error) {
	return c.flag(ctx, "cancelOrder", mutationCancelOrder, map[string]any{"id": id})
}

func (c *Client) ProcessRefund(ctx context.Context, orderID string, amount int64, reason string) (bool, error) {
	vars := map[string]any{
		"orderId": orderID,
		"amount":  amount,
	}

	if reason != "" {
		vars["reason"] = reason
	}

	return c.flag(ctx, "processRefund", mutationProcessRefund, vars)
}

func (c *Client) mutate(ctx context.Context, field, query string, variables map[string]any) (*domain.BasketMutation, error) {
	var mutation *domain.BasketMutation

	err := c.do(ctx, field, query, variables, &mutation)
	if err != nil {
		return nil, err
	}

	return mutation, nil
}

func (c *Client) flag(ctx context.Context, field, query string, variables map[string]any) (bool, error) {
	var ok *bool

	err := c.do(ctx, field, query, variables, &ok)
	if err != nil {
		return false, err
	}

	return ok != nil && *ok, nil
}

package domain

import (
	"context"
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusPaid              OrderStatus = "paid"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRefunded          OrderStatus = "refunded"
	OrderStatusPartiallyRefunded OrderStatus = "partially_refunded"
)

// Order is server-authoritative. Its totals are frozen at placement and are
// never recomputed locally.
type Order struct {
	ID     string       `json:"id"`
	UserID string       `json:"userId"`
	Items  []BasketItem `json:"items"`
	Totals
	Status                   OrderStatus              `json:"status"`
	PaymentMethodID          string                   `json:"paymentMethodId"`
	PaymentIntentID          string                   `json:"paymentIntentId"`
	PaymentTransactionStatus PaymentTransactionStatus `json:"paymentTransactionStatus"`
	BillingAddress           *Address                 `json:"billingAddress,omitempty"`
	CreatedAt                time.Time                `json:"createdAt"`
	UpdatedAt                time.Time                `json:"updatedAt"`
}

type PlaceOrderInput struct {
	BasketID          string
	PaymentMethodID   string
	PaymentMethodType string
	BillingAddress    *Address
	LineItemInfo      json.RawMessage
	IdempotencyKey    string
}

type PlaceOrderResult struct {
	Order                    *Order                   `json:"order"`
	NextAction               json.RawMessage          `json:"nextAction"`
	ClientSecret             string                   `json:"clientSecret"`
	PaymentIntentID          string                   `json:"paymentIntentId"`
	PaymentTransactionStatus PaymentTransactionStatus `json:"paymentTransactionStatus"`
	Errors                   []FieldError             `json:"errors"`
}

func (r *PlaceOrderResult) RequiresAction() bool {
	return r != nil && len(r.NextAction) > 0 && string(r.NextAction) != "null"
}

type OrderHistory struct {
	Orders     []Order `json:"orders"`
	TotalCount int     `json:"totalCount"`
}

type Refund struct {
	OrderID   string
	Amount    int64
	Reason    string
	CreatedAt time.Time
}

type OrderGateway interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	UpdatePaymentIntent(ctx context.Context, paymentIntentID string) (bool, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderHistory(ctx context.Context, limit, offset int) (*OrderHistory, error)
	CancelOrder(ctx context.Context, id string) (bool, error)
	ProcessRefund(ctx context.Context, orderID string, amount int64, reason string) (bool, error)
}

// Gateway is the whole backend surface the engine drives.
type Gateway interface {
	BasketGateway
	PaymentMethodGateway
	OrderGateway
}

package domain

import (
	"context"
	"time"
)

type OrderEventType string

const (
	EventOrderCompleted      OrderEventType = "order.completed"
	EventOrderActionRequired OrderEventType = "order.action_required"
	EventOrderFailed         OrderEventType = "order.failed"
	EventOrderCancelled      OrderEventType = "order.cancelled"
	EventOrderRefunded       OrderEventType = "order.refunded"
)

type OrderEvent struct {
	Type            OrderEventType `json:"type"`
	OrderID         string         `json:"orderId,omitempty"`
	BasketID        string         `json:"basketId,omitempty"`
	PaymentIntentID string         `json:"paymentIntentId,omitempty"`
	ErrorCode       ErrorCode      `json:"errorCode,omitempty"`
	Amount          int64          `json:"amount"`
	OccurredAt      time.Time      `json:"occurredAt"`
}

// Key is the partition key of the event. Events of one order share it.
func (e OrderEvent) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}

	return e.BasketID
}

type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

package checkout

import (
	"context"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
)

var outcomeEvents = map[domain.PaymentState]domain.OrderEventType{
	domain.PaymentStateCompleted:      domain.EventOrderCompleted,
	domain.PaymentStateActionRequired: domain.EventOrderActionRequired,
	domain.PaymentStateFailed:         domain.EventOrderFailed,
	domain.PaymentStateCancelled:      domain.EventOrderCancelled,
}

func (o *Orchestrator) publishOutcome(ctx context.Context, attempt *domain.CheckoutAttempt, outcome domain.PaymentOutcome) {
	eventType, ok := outcomeEvents[outcome.State]
	if !ok {
		return
	}

	event := domain.OrderEvent{
		Type:            eventType,
		PaymentIntentID: outcome.PaymentIntentID,
		ErrorCode:       outcome.ErrorCode,
		OccurredAt:      time.Now().UTC(),
	}

	if attempt != nil {
		event.BasketID = attempt.BasketID
		event.Amount = attempt.ChargeTotal
	}

	if outcome.Order != nil {
		event.OrderID = outcome.Order.ID
		event.Amount = outcome.Order.ChargeTotal
	}

	o.publish(ctx, event)
}

// publish is best effort. A lost event never changes an outcome.
func (o *Orchestrator) publish(ctx context.Context, event domain.OrderEvent) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(context.WithoutCancel(ctx), event)
	if err != nil {
		o.logger.Warn("failed to publish order event", "type", event.Type, "order_id", event.OrderID, "error", err)
	}
}

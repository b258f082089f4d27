package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
)

func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	started := time.Now()
	order, err := o.gateway.GetOrder(ctx, orderID)
	o.metrics.ObserveGatewayCall("getOrder", started, err)
	if err != nil {
		return nil, err
	}

	if order == nil {
		return nil, domain.ErrRecordNotFound
	}

	return order, nil
}

func (o *Orchestrator) OrderHistory(ctx context.Context, pagination domain.Pagination) ([]domain.Order, *domain.Metadata, error) {
	started := time.Now()
	history, err := o.gateway.GetOrderHistory(ctx, pagination.Limit(), pagination.Offset())
	o.metrics.ObserveGatewayCall("getOrderHistory", started, err)
	if err != nil {
		return nil, nil, err
	}

	if history == nil {
		return nil, nil, domain.ErrNoData
	}

	orders := history.Orders
	if orders == nil {
		orders = []domain.Order{}
	}

	return orders, domain.NewMetadata(history.TotalCount, pagination.Page, pagination.PageSize), nil
}

// CancelOrder asks the backend to cancel a placed order. It is never retried;
// a second call for the same order while the first is in flight fails with
// domain.ErrBusy.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if strings.TrimSpace(orderID) == "" {
		return false, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	release, err := o.claimOrder(orderID)
	if err != nil {
		return false, err
	}
	defer release()

	started := time.Now()
	ok, err := o.gateway.CancelOrder(ctx, orderID)
	o.metrics.ObserveGatewayCall("cancelOrder", started, err)
	if err != nil {
		o.logger.Error("failed to cancel order", "order_id", orderID, "error", err)
		return false, err
	}

	if ok {
		o.logger.Info("order cancelled", "order_id", orderID)
		o.publish(ctx, domain.OrderEvent{
			Type:       domain.EventOrderCancelled,
			OrderID:    orderID,
			OccurredAt: time.Now().UTC(),
		})
	}

	return ok, nil
}

// ProcessRefund refunds part or all of an order. Like CancelOrder it is
// single-shot and one refund per order runs at a time.
func (o *Orchestrator) ProcessRefund(ctx context.Context, orderID string, amount int64, reason string) (bool, error) {
	if strings.TrimSpace(orderID) == "" {
		return false, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	if amount <= 0 {
		return false, fmt.Errorf("%w: refund amount must be positive", domain.ErrValidation)
	}

	release, err := o.claimOrder(orderID)
	if err != nil {
		return false, err
	}
	defer release()

	started := time.Now()
	ok, err := o.gateway.ProcessRefund(ctx, orderID, amount, reason)
	o.metrics.ObserveGatewayCall("processRefund", started, err)
	if err != nil {
		o.logger.Error("failed to process refund", "order_id", orderID, "amount", amount, "error", err)
		return false, err
	}

	if !ok {
		o.logger.Warn("refund rejected", "order_id", orderID, "amount", amount)
		return false, nil
	}

	refund := domain.Refund{
		OrderID:   orderID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	err = o.ledger.RecordRefund(ctx, refund)
	if err != nil {
		o.logger.Error("failed to record refund", "order_id", orderID, "error", err)
	}

	o.publish(ctx, domain.OrderEvent{
		Type:       domain.EventOrderRefunded,
		OrderID:    orderID,
		Amount:     amount,
		OccurredAt: refund.CreatedAt,
	})

	return true, nil
}

func (o *Orchestrator) claimOrder(orderID string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inFlight[orderID]; busy {
		return nil, domain.ErrBusy
	}
	o.inFlight[orderID] = struct{}{}

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		delete(o.inFlight, orderID)
	}, nil
}

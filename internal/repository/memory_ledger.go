package repository

import (
	"context"
	"sync"

	"github.com/enrolhub/checkout-engine/internal/domain"
)

// MemoryLedger keeps the ledger in process memory. It is used when no
// database is configured and in tests.
type MemoryLedger struct {
	mu       sync.RWMutex
	attempts map[string]domain.CheckoutAttempt
	intents  map[string]string
	refunds  map[string][]domain.Refund
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		attempts: make(map[string]domain.CheckoutAttempt),
		intents:  make(map[string]string),
		refunds:  make(map[string][]domain.Refund),
	}
}

func (m *MemoryLedger) SaveAttempt(_ context.Context, attempt *domain.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.attempts[attempt.ID]; ok {
		existing.State = attempt.State
		existing.ErrorCode = attempt.ErrorCode
		existing.PaymentIntentID = attempt.PaymentIntentID
		existing.OrderID = attempt.OrderID
		existing.UpdatedAt = attempt.UpdatedAt
		m.attempts[attempt.ID] = existing
		return nil
	}

	m.attempts[attempt.ID] = *attempt

	return nil
}

func (m *MemoryLedger) GetAttempt(_ context.Context, id string) (*domain.CheckoutAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attempt, ok := m.attempts[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return &attempt, nil
}

func (m *MemoryLedger) ConfirmIntent(_ context.Context, paymentIntentID, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.intents[paymentIntentID]; ok {
		return true, nil
	}
	m.intents[paymentIntentID] = orderID

	for id, attempt := range m.attempts {
		if attempt.PaymentIntentID == paymentIntentID && attempt.OrderID == "" {
			attempt.OrderID = orderID
			m.attempts[id] = attempt
		}
	}

	return false, nil
}

func (m *MemoryLedger) IsIntentConfirmed(_ context.Context, paymentIntentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.intents[paymentIntentID]
	return ok, nil
}

func (m *MemoryLedger) RecordRefund(_ context.Context, refund domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refunds[refund.OrderID] = append(m.refunds[refund.OrderID], refund)

	return nil
}

func (m *MemoryLedger) RefundsByOrder(_ context.Context, orderID string) ([]domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refunds := make([]domain.Refund, len(m.refunds[orderID]))
	copy(refunds, m.refunds[orderID])

	return refunds, nil
}

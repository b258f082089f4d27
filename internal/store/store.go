// Package store holds the single basket snapshot of a session.
//
// The store is the only shared mutable resource of the engine. It also owns
// the access rules around that snapshot: basket mutations run one at a time
// in issue order, and none run while a checkout holds the basket.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/enrolhub/checkout-engine/internal/pricing"
)

type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateLoading       State = "LOADING"
	StateReady         State = "READY"
	StateError         State = "ERROR"
)

type Snapshot struct {
	State     State
	Basket    *domain.Basket
	LastError error
}

// BasketStore is what the coordinator and the orchestrator depend on.
type BasketStore interface {
	Get() *domain.Basket
	Snapshot() Snapshot
	Replace(basket *domain.Basket) error
	Reset()
	BeginLoading()
	FailLoading(err error)

	AcquireMutation(ctx context.Context) (release func(), err error)
	BeginCheckout(ctx context.Context) error
	EndCheckout()
	CheckoutActive() bool
}

type Store struct {
	logger *slog.Logger

	mu        sync.RWMutex
	state     State
	basket    *domain.Basket
	lastError error
	checkout  bool

	lock fifoLock
}

func New(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		state:  StateUninitialized,
	}
}

func (s *Store) Get() *domain.Basket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.basket.Clone()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		State:     s.state,
		Basket:    s.basket.Clone(),
		LastError: s.lastError,
	}
}

// Replace swaps the snapshot and then validates the new totals. A violation
// is logged and returned so the caller can resynchronise; the snapshot is
// swapped either way because the backend is authoritative.
func (s *Store) Replace(basket *domain.Basket) error {
	s.mu.Lock()
	s.basket = basket.Clone()
	s.state = StateReady
	s.lastError = nil
	s.mu.Unlock()

	err := pricing.Validate(basket)
	if err != nil {
		s.logger.Warn("basket snapshot violates pricing invariants", "basket_id", basket.ID, "error", err)
	}

	return err
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.basket = nil
	s.state = StateUninitialized
	s.lastError = nil
}

func (s *Store) BeginLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateLoading
}

// FailLoading moves the store to Error. The last good basket, if any, is kept
// so readers still see it; a new BeginLoading retries.
func (s *Store) FailLoading(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateError
	s.lastError = err
}

// AcquireMutation queues the caller behind any in-flight mutation. It fails
// with domain.ErrBusy when a checkout holds the basket, including a checkout
// that started while the caller was queued.
func (s *Store) AcquireMutation(ctx context.Context) (func(), error) {
	if s.CheckoutActive() {
		return nil, domain.ErrBusy
	}

	err := s.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}

	if s.CheckoutActive() {
		s.lock.Unlock()
		return nil, domain.ErrBusy
	}

	var once sync.Once
	return func() { once.Do(s.lock.Unlock) }, nil
}

// BeginCheckout waits for mutations issued before it, then freezes the
// basket until EndCheckout.
func (s *Store) BeginCheckout(ctx context.Context) error {
	err := s.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer s.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkout {
		return domain.ErrBusy
	}
	s.checkout = true

	return nil
}

func (s *Store) EndCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkout = false
}

func (s *Store) CheckoutActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.checkout
}

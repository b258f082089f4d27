package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/enrolhub/checkout-engine/internal/basket"
	"github.com/enrolhub/checkout-engine/internal/checkout"
	"github.com/enrolhub/checkout-engine/internal/store"
	"github.com/enrolhub/checkout-engine/internal/wallet"
)

// Engine is the basket, checkout and wallet state of one session.
type Engine struct {
	Store    *store.Store
	Basket   *basket.Coordinator
	Checkout *checkout.Orchestrator
	Wallet   *wallet.Wallet

	lastSeen time.Time
}

func (app *Application) newEngine(owner string) *Engine {
	logger := app.logger.With("session", shortToken(owner))
	basketStore := store.New(logger)

	return &Engine{
		Store:  basketStore,
		Basket: basket.NewCoordinator(app.gateway, basketStore, logger, app.validator, app.metrics),
		Checkout: checkout.NewOrchestrator(
			app.gateway,
			basketStore,
			app.ledger,
			logger,
			app.validator,
			checkout.Config{Env: app.config.Env, ActionTimeout: app.config.Checkout.ActionTimeout},
			checkout.WithIntentVerifier(app.verifier),
			checkout.WithPublisher(app.publisher),
			checkout.WithMetrics(app.metrics),
		),
		Wallet: wallet.New(
			owner,
			app.gateway,
			app.paymentMethods,
			app.paymentKeys,
			app.config.Checkout.PaymentMethodsTTL,
			logger,
			app.validator,
		),
	}
}

type engineRegistry struct {
	build func(owner string) *Engine
	idle  time.Duration

	mu      sync.Mutex
	engines map[string]*Engine
}

func newEngineRegistry(build func(owner string) *Engine, idle time.Duration) *engineRegistry {
	if idle <= 0 {
		idle = 20 * time.Minute
	}

	return &engineRegistry{
		build:   build,
		idle:    idle,
		engines: make(map[string]*Engine),
	}
}

// engineKey identifies the engine of one backend identity within a session.
// Guests are keyed by the session token alone.
func engineKey(sessionToken, backendToken string) string {
	if backendToken == "" {
		return sessionToken
	}

	sum := sha256.Sum256([]byte(backendToken))

	return sessionToken + ":" + hex.EncodeToString(sum[:8])
}

// get returns the engine of key, building it on first use.
func (r *engineRegistry) get(key string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[key]
	if !ok {
		engine = r.build(key)
		r.engines[key] = engine
	}

	engine.lastSeen = time.Now()

	return engine
}

// retire drops the engine of an identity that left its session, together
// with its basket snapshot and cached payment methods. An engine holding an
// active checkout is left to the sweep so its confirmation can finish.
func (r *engineRegistry) retire(ctx context.Context, key string) bool {
	r.mu.Lock()
	engine, ok := r.engines[key]
	if !ok || engine.Store.CheckoutActive() {
		r.mu.Unlock()
		return false
	}
	delete(r.engines, key)
	r.mu.Unlock()

	engine.Store.Reset()
	engine.Wallet.Forget(ctx)

	return true
}

// sweep drops engines idle for longer than the session idle time. Engines
// holding an active checkout are kept so a pending confirmation can finish.
func (r *engineRegistry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for key, engine := range r.engines {
		if now.Sub(engine.lastSeen) < r.idle || engine.Store.CheckoutActive() {
			continue
		}

		delete(r.engines, key)
		dropped++
	}

	return dropped
}

func (r *engineRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.engines)
}

func (r *engineRegistry) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}

	return token[:8]
}

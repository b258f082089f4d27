// Package cache provides time-boxed caches for backend reads that change
// rarely, such as saved payment methods and provider configuration.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
)

type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Put(ctx context.Context, key string, value T, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

var ErrCacheMiss = domain.ErrCacheMiss

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

type MemoryCache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	now     func() time.Time
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
}

func (c *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	e, ok := c.entries[key]
	if !ok {
		return zero, ErrCacheMiss
	}

	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, ErrCacheMiss
	}

	return e.value, nil
}

func (c *MemoryCache[T]) Put(_ context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[T]{value: value, expiresAt: c.now().Add(ttl)}

	return nil
}

func (c *MemoryCache[T]) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

package store

import (
	"context"
	"sync"
)

// fifoLock hands ownership to waiters strictly in the order they arrived.
// sync.Mutex makes no such promise, and basket intents must apply in issue
// order.
type fifoLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func (l *fifoLock) Lock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range l.waiters {
			if w == ready {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()

		// Ownership was handed over while the context expired; pass it on.
		l.Unlock()
		return ctx.Err()
	}
}

func (l *fifoLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.waiters) == 0 {
		l.held = false
		return
	}

	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	close(next)
}

func (l *fifoLock) queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.waiters)
}

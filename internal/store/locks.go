package store

import (
	"context"
	"sync"
	"time"
)

// lockTable serializes access to individual documents. Acquisition waits a
// bounded time for a contended key, then fails with ErrLockWait so callers
// surface a retryable error instead of hanging.
type lockTable struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[string]chan struct{})}
}

func (lt *lockTable) acquire(ctx context.Context, key string, wait time.Duration) error {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		lt.mu.Lock()
		released, held := lt.held[key]
		if !held {
			lt.held[key] = make(chan struct{})
			lt.mu.Unlock()
			return nil
		}
		lt.mu.Unlock()

		select {
		case <-released:
			// holder finished; retry
		case <-deadline.C:
			return ErrLockWait
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (lt *lockTable) release(key string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if released, held := lt.held[key]; held {
		delete(lt.held, key)
		close(released)
	}
}

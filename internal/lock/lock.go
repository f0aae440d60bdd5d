// Package lock provides the mutual-exclusion broker serializing purchase
// state transitions. Checkout creation and webhook completion share one key
// per purchase id, collapsing their race windows into a single critical
// section.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/domain"
)

// Locker executes fn under mutual exclusion for key. Contenders queue in
// arrival order; a waiter that exceeds timeout fails with a lock_timeout
// error instead of running fn. fn's result or error is propagated unchanged,
// and the lock is released whether fn succeeds or fails.
type Locker interface {
	WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error
}

// PurchaseCompletionKey is the lock key shared by checkout creation and
// webhook completion for one purchase.
func PurchaseCompletionKey(purchaseID uuid.UUID) string {
	return "purchase:complete:" + purchaseID.String()
}

// waiter is one queued contender for a key.
type waiter struct {
	grant chan struct{}
}

// lockState tracks one key's holder and FIFO wait queue.
type lockState struct {
	held    bool
	waiters []*waiter
}

// KeyedLocker is the process-local Locker. It is an explicit, injectable
// instance so a cross-instance implementation can replace it without
// touching call sites; operating it correctly across multiple service
// instances requires pinning traffic for a key space to one instance, or
// switching to RedisLocker.
type KeyedLocker struct {
	mu     chan struct{} // table mutex; channel so acquisition stays ctx-free and cheap
	locks  map[string]*lockState
	logger *zap.Logger
}

// NewKeyedLocker creates a process-local lock broker.
func NewKeyedLocker(logger *zap.Logger) *KeyedLocker {
	l := &KeyedLocker{
		mu:     make(chan struct{}, 1),
		locks:  make(map[string]*lockState),
		logger: logger,
	}
	l.mu <- struct{}{}
	return l
}

func (l *KeyedLocker) lockTable()   { <-l.mu }
func (l *KeyedLocker) unlockTable() { l.mu <- struct{}{} }

// WithLock implements Locker.
func (l *KeyedLocker) WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	if err := l.acquire(ctx, key, timeout); err != nil {
		return err
	}
	lockWaitSeconds.Observe(time.Since(start).Seconds())
	lockAcquisitionsTotal.Inc()
	locksActive.Inc()

	defer func() {
		l.release(key)
		locksActive.Dec()
	}()
	return fn(ctx)
}

func (l *KeyedLocker) acquire(ctx context.Context, key string, timeout time.Duration) error {
	l.lockTable()
	st, ok := l.locks[key]
	if !ok {
		st = &lockState{}
		l.locks[key] = st
	}
	if !st.held {
		st.held = true
		l.unlockTable()
		return nil
	}

	w := &waiter{grant: make(chan struct{})}
	st.waiters = append(st.waiters, w)
	l.unlockTable()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.grant:
		return nil
	case <-timer.C:
		if l.abandon(key, w) {
			lockTimeoutsTotal.Inc()
			l.logger.Warn("lock wait timed out",
				zap.String("key", key),
				zap.Duration("timeout", timeout),
			)
			return domain.NewLockTimeoutError(key)
		}
		// The grant raced with the timer; we own the lock and must hand it
		// back before failing.
		l.release(key)
		lockTimeoutsTotal.Inc()
		return domain.NewLockTimeoutError(key)
	case <-ctx.Done():
		if l.abandon(key, w) {
			return fmt.Errorf("lock %s: %w", key, ctx.Err())
		}
		l.release(key)
		return fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
}

// abandon removes a waiter from the queue. Returns false if the waiter was
// already granted the lock.
func (l *KeyedLocker) abandon(key string, w *waiter) bool {
	l.lockTable()
	defer l.unlockTable()
	st, ok := l.locks[key]
	if !ok {
		return false
	}
	for i, queued := range st.waiters {
		if queued == w {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// release hands the lock to the next queued waiter, or frees the key.
func (l *KeyedLocker) release(key string) {
	l.lockTable()
	defer l.unlockTable()
	st, ok := l.locks[key]
	if !ok {
		return
	}
	if len(st.waiters) > 0 {
		next := st.waiters[0]
		st.waiters = st.waiters[1:]
		close(next.grant)
		return
	}
	st.held = false
	delete(l.locks, key)
}

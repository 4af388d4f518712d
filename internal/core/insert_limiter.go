package core

// insert_limiter.go bounds the number of inserts in flight against the store.
//
// With a single slot, inserts from one process are serialized, so two of them
// never read the same largest id. Patches and deletes do not take a slot.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyInserts reports that no insert slot freed up within the wait time.
var ErrTooManyInserts = errors.New("too many concurrent inserts")

// InsertLimiter is a counting semaphore for store inserts.
type InsertLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewInsertLimiter allows at most maxConcurrent inserts at once. A positive
// maxWait caps how long Acquire waits; otherwise only the context does.
func NewInsertLimiter(maxConcurrent int, maxWait time.Duration) *InsertLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &InsertLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *InsertLimiter) Acquire(ctx context.Context) error {
	var expired <-chan time.Time
	if l.maxWait > 0 {
		timer := time.NewTimer(l.maxWait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return ErrTooManyInserts
	}
}

// Release returns a slot taken by Acquire.
func (l *InsertLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of inserts holding a slot.
func (l *InsertLimiter) Active() int {
	return int(l.active.Load())
}

// Capacity returns the slot count.
func (l *InsertLimiter) Capacity() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no insert holds a slot or ctx is done.
func (l *InsertLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

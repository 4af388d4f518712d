package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInsertLimiter_AcquireRelease(t *testing.T) {
	l := NewInsertLimiter(2, time.Second)
	ctx := context.Background()

	if l.Capacity() != 2 {
		t.Errorf("Capacity = %d, want 2", l.Capacity())
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if l.Active() != 2 {
		t.Errorf("Active = %d, want 2", l.Active())
	}

	l.Release()
	l.Release()
	if l.Active() != 0 {
		t.Errorf("Active after release = %d, want 0", l.Active())
	}
}

func TestInsertLimiter_Timeout(t *testing.T) {
	l := NewInsertLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	if err := l.Acquire(ctx); !errors.Is(err, ErrTooManyInserts) {
		t.Errorf("second Acquire = %v, want ErrTooManyInserts", err)
	}
}

func TestInsertLimiter_ContextCancelled(t *testing.T) {
	l := NewInsertLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want context.Canceled", err)
	}
}

func TestInsertLimiter_WaitForDrain(t *testing.T) {
	l := NewInsertLimiter(1, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v", err)
	}
}

func TestInsertLimiter_Defaults(t *testing.T) {
	l := NewInsertLimiter(0, 0)
	if l.Capacity() != 1 || l.maxWait != 0 {
		t.Errorf("defaults = %d slots, %v wait", l.Capacity(), l.maxWait)
	}
}

func TestInsertLimiter_NoWaitLimitUsesContext(t *testing.T) {
	l := NewInsertLimiter(1, 0)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire = %v, want context.DeadlineExceeded", err)
	}
}

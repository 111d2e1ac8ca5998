package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10, Burst: 3})
	rl.now = clock.Now
	rl.lastRefresh = clock.Now()

	for i := range 3 {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true", i)
		}
	}
	if rl.Allow() {
		t.Fatal("Allow() after burst = true, want false")
	}

	clock.Advance(100 * time.Millisecond)
	if !rl.Allow() {
		t.Error("Allow() after refill = false, want true")
	}

	clock.Advance(time.Hour)
	if got := rl.Tokens(); got != 3 {
		t.Errorf("Tokens() = %v, want 3 (capped at burst)", got)
	}
}

func TestRateLimiter_Execute(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	ctx := context.Background()
	if err := rl.Execute(ctx, failing(nil)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := rl.Execute(ctx, failing(nil)); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Execute() error = %v, want %v", err, ErrRateLimited)
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 1, MaxWait: time.Second})
	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := rl.Wait(ctx); err != nil {
		t.Errorf("Wait() for refill error = %v", err)
	}

	slow := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1, MaxWait: time.Millisecond})
	_ = slow.Wait(ctx)
	if err := slow.Wait(ctx); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Wait() beyond MaxWait error = %v, want %v", err, ErrRateLimited)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := rl.Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() cancelled error = %v, want %v", err, context.Canceled)
	}
}

func TestBulkhead_Capacity(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("Acquire() at capacity error = %v, want %v", err, ErrBulkheadFull)
	}

	m := b.Metrics()
	if m.Active != 2 || m.Rejected != 1 || m.MaxConcurrent != 2 {
		t.Errorf("Metrics() = %+v", m)
	}

	b.Release()
	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire() after Release error = %v", err)
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	ctx := context.Background()
	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		b.Release()
	}()

	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire() with wait error = %v", err)
	}
	wg.Wait()
}

func TestBulkhead_WaitTimesOut(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 5 * time.Millisecond})
	ctx := context.Background()
	_ = b.Acquire(ctx)
	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire() error = %v, want %v", err, ErrBulkheadFull)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := b.Acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() cancelled error = %v, want %v", err, context.Canceled)
	}
}

func TestBulkhead_Execute(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	err := b.Execute(context.Background(), func(context.Context) error {
		if b.Metrics().Active != 1 {
			t.Errorf("Active inside Execute = %d, want 1", b.Metrics().Active)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if b.Metrics().Active != 0 {
		t.Errorf("Active after Execute = %d, want 0", b.Metrics().Active)
	}
}

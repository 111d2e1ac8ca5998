package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/frontctl/chain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func failing(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
	if cb.config.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.config.MaxFailures)
	}
	if cb.config.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.config.ResetTimeout)
	}
	if cb.config.HalfOpenMaxRequests != 1 {
		t.Errorf("HalfOpenMaxRequests = %d, want 1", cb.config.HalfOpenMaxRequests)
	}
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(BreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = clock.Now
	ctx := context.Background()
	errDown := errors.New("db down")

	for i := range 2 {
		if err := cb.Execute(ctx, failing(errDown)); !errors.Is(err, errDown) {
			t.Fatalf("Execute() #%d error = %v, want %v", i, err, errDown)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("Execute() while open = %v (called %v), want ErrCircuitOpen", err, called)
	}

	clock.Advance(time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}
	if err := cb.Execute(ctx, failing(nil)); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	cb.now = clock.Now
	ctx := context.Background()

	_ = cb.Execute(ctx, failing(errors.New("x")))
	clock.Advance(time.Second)
	_ = cb.Execute(ctx, failing(errors.New("still down")))

	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SignalsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1})
	ctx := context.Background()

	signals := []error{
		chain.Abortf("bad input"),
		chain.SilentAbort(),
		chain.Forward("login", nil),
	}
	for _, sig := range signals {
		if err := cb.Execute(ctx, failing(sig)); err != sig {
			t.Errorf("Execute() error = %v, want %v unchanged", err, sig)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1})
	_ = cb.Execute(context.Background(), failing(errors.New("x")))
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestBreakers_SharedByKey(t *testing.T) {
	b := NewBreakers(BreakerConfig{MaxFailures: 1})
	key := BreakerKey("checkout", "charge")
	if key != "checkout/charge" {
		t.Errorf("BreakerKey() = %q, want %q", key, "checkout/charge")
	}

	first := b.Get(key)
	if b.Get(key) != first {
		t.Error("Get() returned a different breaker for the same key")
	}
	if b.GetWith(key, BreakerConfig{MaxFailures: 9}) != first {
		t.Error("GetWith() replaced an existing breaker")
	}

	_ = first.Execute(context.Background(), failing(errors.New("x")))
	states := b.States()
	if states[key] != StateOpen {
		t.Errorf("States()[%q] = %v, want open", key, states[key])
	}
	if b.Get("other/cmd").State() != StateClosed {
		t.Error("unrelated key shares breaker state")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

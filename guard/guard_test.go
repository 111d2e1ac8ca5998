package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/frontctl/chain"
)

func TestRetry_RetriesRecoverableOnly(t *testing.T) {
	errFlaky := errors.New("flaky")
	abort := chain.Abortf("bad input")
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"success first", []error{nil}, 1, nil},
		{"success after failures", []error{errFlaky, errFlaky, nil}, 3, nil},
		{"exhausted", []error{errFlaky, errFlaky, errFlaky, nil}, 3, errFlaky},
		{"abort not retried", []error{abort, nil}, 1, abort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})
			calls := 0
			err := r.Execute(context.Background(), func(context.Context) error {
				err := tt.errs[calls]
				calls++
				return err
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if err != tt.wantErr {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetry_OnRetryAndCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var attempts []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		OnRetry: func(attempt int, _ error, _ time.Duration) {
			attempts = append(attempts, attempt)
			cancel()
		},
	})
	errFlaky := errors.New("flaky")
	err := r.Execute(ctx, failing(errFlaky))
	if !errors.Is(err, errFlaky) {
		t.Errorf("Execute() error = %v, want %v", err, errFlaky)
	}
	if len(attempts) != 1 || attempts[0] != 1 {
		t.Errorf("OnRetry attempts = %v, want [1]", attempts)
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"exponential 1", BackoffExponential, 1, 10 * time.Millisecond},
		{"exponential 3", BackoffExponential, 3, 40 * time.Millisecond},
		{"exponential capped", BackoffExponential, 10, 100 * time.Millisecond},
		{"linear 3", BackoffLinear, 3, 30 * time.Millisecond},
		{"constant 5", BackoffConstant, 5, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{
				InitialDelay: 10 * time.Millisecond,
				MaxDelay:     100 * time.Millisecond,
				Strategy:     tt.strategy,
			})
			if got := r.delay(tt.attempt); got != tt.want {
				t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_JitterBounds(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffConstant, Jitter: true})
	for range 20 {
		d := r.delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("delay() = %v, want in [100ms, 125ms)", d)
		}
	}
}

func TestTimeout(t *testing.T) {
	t.Run("deadline observed", func(t *testing.T) {
		to := NewTimeout(10 * time.Millisecond)
		err := to.Execute(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Execute() error = %v, want ErrTimeout wrapping DeadlineExceeded", err)
		}
	})
	t.Run("fast op unchanged", func(t *testing.T) {
		errBad := errors.New("bad")
		if err := NewTimeout(time.Second).Execute(context.Background(), failing(errBad)); err != errBad {
			t.Errorf("Execute() error = %v, want %v", err, errBad)
		}
	})
	t.Run("signal passes through", func(t *testing.T) {
		sig := chain.SilentAbort()
		err := NewTimeout(time.Millisecond).Execute(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return sig
		})
		if err != sig {
			t.Errorf("Execute() error = %v, want signal unchanged", err)
		}
	})
	t.Run("ctx has deadline", func(t *testing.T) {
		_ = NewTimeout(time.Minute).Execute(context.Background(), func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("operation context has no deadline")
			}
			return nil
		})
	})
	if NewTimeout(0).Duration() != 30*time.Second {
		t.Errorf("NewTimeout(0).Duration() = %v, want 30s", NewTimeout(0).Duration())
	}
}

func TestNew(t *testing.T) {
	breakers := NewBreakers(BreakerConfig{})
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{"zero", Config{}, true, false},
		{"retries", Config{Retries: 2}, false, false},
		{"timeout", Config{Timeout: time.Second}, false, false},
		{"breaker", Config{Breaker: &BreakerConfig{MaxFailures: 2}}, false, false},
		{"negative retries", Config{Retries: -1}, true, true},
		{"negative timeout", Config{Timeout: -time.Second}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.cfg, breakers, "req/cmd")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (g == nil) != tt.wantNil {
				t.Errorf("New() guard = %v, wantNil %v", g, tt.wantNil)
			}
		})
	}

	if _, err := New(Config{Breaker: &BreakerConfig{}}, nil, "k"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() without breakers error = %v, want %v", err, ErrInvalidConfig)
	}
}

func TestExecutor_BreakerSeesOneOutcomePerRun(t *testing.T) {
	breakers := NewBreakers(BreakerConfig{})
	g, err := New(Config{
		Retries: 2,
		Backoff: time.Millisecond,
		Breaker: &BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	}, breakers, "req/cmd")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	calls := 0
	op := func(context.Context) error { calls++; return errors.New("down") }
	ctx := context.Background()

	_ = g.Execute(ctx, op)
	if calls != 3 {
		t.Fatalf("calls after first run = %d, want 3", calls)
	}
	if breakers.Get("req/cmd").State() != StateClosed {
		t.Fatal("breaker opened after one run")
	}
	_ = g.Execute(ctx, op)
	if err := g.Execute(ctx, op); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("third run error = %v, want ErrCircuitOpen", err)
	}
	if calls != 6 {
		t.Errorf("calls = %d, want 6", calls)
	}
	if chain.Classify("cmd", ErrCircuitOpen).Kind != chain.KindRecoverable {
		t.Error("open circuit is not a Recoverable failure")
	}
}

func TestExecutor_Empty(t *testing.T) {
	if err := NewExecutor().Execute(context.Background(), failing(nil)); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}

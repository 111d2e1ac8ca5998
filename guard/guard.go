package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/frontctl/chain"
)

// Config declares the guard attached to one command.
type Config struct {
	// Retries is the number of extra attempts after a Recoverable failure.
	Retries int `yaml:"retries" toml:"retries"`

	// Backoff is the initial delay between attempts. Default: 50ms
	Backoff time.Duration `yaml:"backoff" toml:"backoff"`

	// Timeout bounds each attempt.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`

	// Breaker enables a circuit breaker shared by every dispatch of the
	// command.
	Breaker *BreakerConfig `yaml:"breaker" toml:"breaker"`
}

// ErrInvalidConfig indicates a malformed guard declaration.
var ErrInvalidConfig = errors.New("guard: invalid config")

// Validate rejects negative values.
func (c Config) Validate() error {
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0, got %d", ErrInvalidConfig, c.Retries)
	}
	if c.Backoff < 0 || c.Timeout < 0 {
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidConfig)
	}
	if c.Breaker != nil && (c.Breaker.MaxFailures < 0 || c.Breaker.ResetTimeout < 0) {
		return fmt.Errorf("%w: breaker values must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// IsZero reports whether c declares no guard at all.
func (c Config) IsZero() bool {
	return c.Retries == 0 && c.Timeout == 0 && c.Breaker == nil
}

// Executor composes guards. The order, outermost first, is circuit
// breaker, retry, timeout: the breaker sees one outcome per command run and
// every attempt gets its own deadline.
type Executor struct {
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

var _ chain.Guard = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) Option {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout adds a per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// NewExecutor creates a composed guard.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements chain.Guard.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op
	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error { return e.timeout.Execute(ctx, inner) }
	}
	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.breaker != nil {
		inner := execute
		execute = func(ctx context.Context) error { return e.breaker.Execute(ctx, inner) }
	}
	return execute(ctx)
}

// New builds the guard for cfg. Breakers come from breakers under key so
// they survive across dispatches. It returns nil when cfg declares nothing.
func New(cfg Config, breakers *Breakers, key string) (chain.Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IsZero() {
		return nil, nil
	}

	var opts []Option
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.Retries > 0 {
		opts = append(opts, WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  cfg.Retries + 1,
			InitialDelay: cfg.Backoff,
			Jitter:       true,
		})))
	}
	if cfg.Breaker != nil {
		if breakers == nil {
			return nil, fmt.Errorf("%w: breaker declared without a breaker set", ErrInvalidConfig)
		}
		opts = append(opts, WithCircuitBreaker(breakers.GetWith(key, *cfg.Breaker)))
	}
	return NewExecutor(opts...), nil
}

package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/frontctl/chain"
)

// Timeout runs operations under a deadline.
//
// The operation runs on the calling goroutine and must observe ctx.
// A failure that happens after the deadline is wrapped with ErrTimeout;
// signals pass through unchanged.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout guard. Non-positive durations mean 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the configured deadline.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute implements chain.Guard.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	err := op(ctx)
	if err == nil || chain.IsSignal(err) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, t.d, err)
	}
	return err
}

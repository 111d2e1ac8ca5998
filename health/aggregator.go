package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds a full CheckAll run. Default: 5s
	Timeout time.Duration

	// MaxParallel limits concurrently running checks. Zero means no limit.
	MaxParallel int
}

// Aggregator combines health checkers, keeping registration order.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers []Checker
}

// NamedResult is a Result with the checker's name.
type NamedResult struct {
	Name string
	Result
}

// NewAggregator creates an aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Aggregator{config: cfg}
}

// Register adds c, replacing a checker with the same name in place.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.checkers {
		if existing.Name() == c.Name() {
			a.checkers[i] = c
			return
		}
	}
	a.checkers = append(a.checkers, c)
}

// Names returns checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	var found Checker
	for _, c := range a.checkers {
		if c.Name() == name {
			found = c
			break
		}
	}
	a.mu.RUnlock()
	if found == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, found), nil
}

// CheckAll runs every check concurrently and returns results in
// registration order.
func (a *Aggregator) CheckAll(ctx context.Context) []NamedResult {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]NamedResult, len(checkers))
	var g errgroup.Group
	if a.config.MaxParallel > 0 {
		g.SetLimit(a.config.MaxParallel)
	}
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = NamedResult{Name: c.Name(), Result: runCheck(ctx, c)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// OverallStatus is the worst status among results. No results is healthy.
func OverallStatus(results []NamedResult) Status {
	overall := StatusHealthy
	for _, r := range results {
		if r.Status > overall {
			overall = r.Status
		}
	}
	return overall
}

func runCheck(ctx context.Context, c Checker) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Unhealthy("check panicked", fmt.Errorf("%w: %v", ErrCheckFailed, r))
		}
		result.Duration = time.Since(start)
	}()

	result = c.Check(ctx)
	if result.Status != StatusHealthy && result.Error == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Error = ErrCheckTimeout
	}
	return result
}

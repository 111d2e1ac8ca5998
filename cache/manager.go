package cache

import (
	"context"
	"errors"
	"fmt"
)

// Named pairs a backend with its configured name.
type Named struct {
	Name    string
	Backend Backend
}

// Manager reads from an ordered list of backends and writes to one of them.
//
// Contract:
// - Get/Has/WhichHas scan backends in order; the first hit wins.
// - Set writes to the named target when configured, else to the first backend.
// - With no backends every read misses and every write is a no-op.
// - Concurrency: safe for concurrent use if the backends are.
type Manager struct {
	backends []Named
}

// NewManager creates a manager over backends, in priority order.
// Nil backends are skipped.
func NewManager(backends ...Named) *Manager {
	m := &Manager{}
	for _, b := range backends {
		if b.Backend != nil {
			m.backends = append(m.backends, b)
		}
	}
	return m
}

// Len returns the number of backends.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.backends)
}

// Backends returns the backends in order.
func (m *Manager) Backends() []Named {
	if m == nil {
		return nil
	}
	return append([]Named(nil), m.backends...)
}

// Get returns the value from the first backend holding key.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	for _, b := range m.backends {
		if v, ok := b.Backend.Get(ctx, key); ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether any backend holds key.
func (m *Manager) Has(ctx context.Context, key string) bool {
	_, ok := m.WhichHas(ctx, key)
	return ok
}

// WhichHas returns the name of the first backend holding key.
func (m *Manager) WhichHas(ctx context.Context, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, b := range m.backends {
		if b.Backend.Has(ctx, key) {
			return b.Name, true
		}
	}
	return "", false
}

// Set writes value to the backend named target. An empty or unknown
// target falls back to the first backend.
func (m *Manager) Set(ctx context.Context, key string, value []byte, target string) error {
	if m == nil || len(m.backends) == 0 {
		return nil
	}
	b := m.backends[0]
	for _, candidate := range m.backends {
		if candidate.Name == target {
			b = candidate
			break
		}
	}
	if err := b.Backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("cache %q: %w", b.Name, err)
	}
	return nil
}

// Delete removes key from every backend.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, b := range m.backends {
		if err := b.Backend.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("cache %q: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Clear empties every backend.
func (m *Manager) Clear(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, b := range m.backends {
		if err := b.Backend.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache %q: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend implementing io.Closer.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, b := range m.backends {
		if c, ok := b.Backend.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("cache %q: %w", b.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

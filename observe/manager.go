package observe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonwraymond/frontctl/chain"
)

// NamedBackend pairs a backend with its configured name.
type NamedBackend struct {
	Name    string
	Backend Backend
}

type managedBackend struct {
	NamedBackend
	once    sync.Once
	initErr error
}

// Manager broadcasts log lines to every backend, in order.
//
// Contract:
//   - Each backend is initialized once, lazily, before its first line.
//   - A failing or panicking backend never prevents delivery to the others;
//     every failure is returned, joined with errors.Join.
//   - Concurrency: safe for concurrent use.
type Manager struct {
	backends  []*managedBackend
	onFailure func(ctx context.Context, backend string, err error)
}

var _ chain.Logger = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFailureHook registers fn to be called for each backend failure, for
// example Instrument.LogFailure.
func WithFailureHook(fn func(ctx context.Context, backend string, err error)) ManagerOption {
	return func(m *Manager) { m.onFailure = fn }
}

// NewManager creates a manager over backends. Nil backends are skipped.
func NewManager(backends []NamedBackend, opts ...ManagerOption) *Manager {
	m := &Manager{}
	for _, b := range backends {
		if b.Backend == nil {
			continue
		}
		m.backends = append(m.backends, &managedBackend{NamedBackend: b})
	}
	for _, opt := range opts {
		opt(m)
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
func (m *Manager) Backends() []NamedBackend {
	if m == nil {
		return nil
	}
	out := make([]NamedBackend, len(m.backends))
	for i, b := range m.backends {
		out[i] = b.NamedBackend
	}
	return out
}

// Log sends message to every backend.
func (m *Manager) Log(ctx context.Context, message, category string) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, b := range m.backends {
		if err := m.deliver(ctx, b, message, category); err != nil {
			err = fmt.Errorf("logger %q: %w", b.Name, err)
			if m.onFailure != nil {
				m.onFailure(ctx, b.Name, err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogError logs err rendered by FormatError.
func (m *Manager) LogError(ctx context.Context, err error, category string) error {
	if err == nil {
		return nil
	}
	return m.Log(ctx, FormatError(err), category)
}

// Init initializes every backend now instead of on its first line, so
// that health checks can ping them. Failures are sticky, as with lazy
// initialization.
func (m *Manager) Init(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, b := range m.backends {
		if err := b.init(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger %q: init: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *managedBackend) init(ctx context.Context) error {
	b.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				b.initErr = fmt.Errorf("%w during init: %v", ErrBackendPanic, r)
			}
		}()
		b.initErr = b.Backend.Init(ctx)
	})
	return b.initErr
}

func (m *Manager) deliver(ctx context.Context, b *managedBackend, message, category string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBackendPanic, r)
		}
	}()

	if err := b.init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return b.Backend.Log(ctx, message, category)
}

// Close closes every backend that implements io.Closer.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, b := range m.backends {
		if c, ok := b.Backend.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("logger %q: %w", b.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

type stackTracer interface {
	StackTrace() string
}

// FormatError renders err as its message followed by each wrapped cause
// and, when any error in the chain carries one, the stack trace.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(err.Error())

	var stack string
	seen := map[string]bool{err.Error(): true}
	var walk func(e error)
	walk = func(e error) {
		if st, ok := e.(stackTracer); ok && stack == "" {
			stack = st.StackTrace()
		}
		var causes []error
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			if c := u.Unwrap(); c != nil {
				causes = []error{c}
			}
		case interface{ Unwrap() []error }:
			causes = u.Unwrap()
		}
		for _, c := range causes {
			if c == nil {
				continue
			}
			if msg := c.Error(); !seen[msg] {
				seen[msg] = true
				b.WriteString("\ncaused by: ")
				b.WriteString(msg)
			}
			walk(c)
		}
	}
	walk(err)

	if stack != "" {
		b.WriteString("\nstack trace:\n")
		b.WriteString(strings.TrimRight(stack, "\n"))
	}
	return b.String()
}

package chain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a command from its declared configuration.
type Factory func(cfg map[string]any) (Command, error)

// Registry maps declared command types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("chain: invalid command registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("chain: command type %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error, for init-time wiring.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Create instantiates a command of the named type.
func (r *Registry) Create(name string, cfg map[string]any) (Command, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chain: command type %q is not registered", name)
	}

	cmd, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("chain: create command %q: %w", name, err)
	}
	if cmd == nil {
		return nil, fmt.Errorf("chain: create command %q: %w", name, ErrNilCommand)
	}
	return cmd, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.TrimSpace(name)]
	return ok
}

// List returns registered type names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global command registry.
var DefaultRegistry = NewRegistry()

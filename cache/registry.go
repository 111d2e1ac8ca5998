package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonwraymond/frontctl/internal/cfgmap"
)

// Factory creates a Backend from its declared options.
type Factory func(cfg map[string]any) (Backend, error)

// Registry maps backend type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("cache: invalid backend registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("cache: backend type %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a backend of the given type.
func (r *Registry) Create(name string, cfg map[string]any) (Backend, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache: backend type %q is not registered", name)
	}

	b, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("cache: create %q: %w", name, err)
	}
	if b == nil {
		return nil, ErrNilBackend
	}
	return b, nil
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

// DefaultRegistry holds the built-in backend types "memory" and "sqlite".
var DefaultRegistry = NewRegistry()

type memoryOptions struct {
	Policy `yaml:",inline"`
}

type sqliteOptions struct {
	Path   string `yaml:"path"`
	Policy `yaml:",inline"`
}

func init() {
	_ = DefaultRegistry.Register("memory", func(cfg map[string]any) (Backend, error) {
		opts := memoryOptions{Policy: DefaultPolicy()}
		if err := cfgmap.Decode(cfg, &opts); err != nil {
			return nil, err
		}
		return NewMemoryCache(opts.Policy), nil
	})
	_ = DefaultRegistry.Register("sqlite", func(cfg map[string]any) (Backend, error) {
		var opts sqliteOptions
		if err := cfgmap.Decode(cfg, &opts); err != nil {
			return nil, err
		}
		return OpenSQLite(opts.Path, opts.Policy)
	})
}

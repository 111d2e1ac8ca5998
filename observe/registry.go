package observe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jonwraymond/frontctl/internal/cfgmap"
)

// BackendFactory creates a logger Backend from its declared options.
type BackendFactory func(cfg map[string]any) (Backend, error)

// Registry maps logger backend type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]BackendFactory)}
}

// Register adds a factory.
func (r *Registry) Register(name string, factory BackendFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("observe: invalid backend registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("observe: backend type %q already registered", name)
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
		return nil, fmt.Errorf("observe: backend type %q is not registered", name)
	}
	b, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("observe: create %q: %w", name, err)
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

// DefaultRegistry holds the built-in backend types json, zap, sqlite and otel.
var DefaultRegistry = NewRegistry()

type jsonOptions struct {
	// Output is stderr, stdout or a file path.
	Output string `yaml:"output"`
}

type zapOptions struct {
	Level       string   `yaml:"level"`
	OutputPaths []string `yaml:"output_paths"`
	Development bool     `yaml:"development"`
}

type sqliteOptions struct {
	Path string `yaml:"path"`
}

// openOutput resolves stderr, stdout or a file opened for append.
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return nil, err
		}
		return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}
}

func init() {
	_ = DefaultRegistry.Register("json", func(cfg map[string]any) (Backend, error) {
		var opts jsonOptions
		if err := cfgmap.Decode(cfg, &opts); err != nil {
			return nil, err
		}
		w, err := openOutput(opts.Output)
		if err != nil {
			return nil, err
		}
		b := NewWriterBackend(w)
		if f, ok := w.(*os.File); ok && f != os.Stdout && f != os.Stderr {
			b.closer = f
		}
		return b, nil
	})
	_ = DefaultRegistry.Register("zap", func(cfg map[string]any) (Backend, error) {
		var opts zapOptions
		if err := cfgmap.Decode(cfg, &opts); err != nil {
			return nil, err
		}
		zc := zap.NewProductionConfig()
		if opts.Development {
			zc = zap.NewDevelopmentConfig()
		}
		if opts.Level != "" {
			lvl, err := zap.ParseAtomicLevel(opts.Level)
			if err != nil {
				return nil, err
			}
			zc.Level = lvl
		}
		if len(opts.OutputPaths) > 0 {
			zc.OutputPaths = opts.OutputPaths
		}
		return NewZapBackendFromConfig(zc), nil
	})
	_ = DefaultRegistry.Register("sqlite", func(cfg map[string]any) (Backend, error) {
		var opts sqliteOptions
		if err := cfgmap.Decode(cfg, &opts); err != nil {
			return nil, err
		}
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("path is required")
		}
		return NewSQLiteBackend(opts.Path), nil
	})
	_ = DefaultRegistry.Register("otel", func(cfg map[string]any) (Backend, error) {
		if len(cfg) > 0 {
			return nil, errors.New("otel backend takes no options")
		}
		return SpanBackend{}, nil
	})
}

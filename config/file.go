package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/guard"
	"github.com/jonwraymond/frontctl/observe"
	"github.com/jonwraymond/frontctl/param"
)

// Format is a routes file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrInvalidConfig indicates a routes file that fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// File is the decoded routes file.
type File struct {
	// Settings seed every fresh dispatch context.
	Settings map[string]any `yaml:"settings" toml:"settings"`

	// Caches and Loggers are ordered; the first cache is the default
	// write target.
	Caches  []BackendSpec `yaml:"caches" toml:"caches"`
	Loggers []BackendSpec `yaml:"loggers" toml:"loggers"`

	Requests map[string]RequestSpec `yaml:"requests" toml:"requests"`

	// Breaker holds defaults for circuit breakers declared without values.
	Breaker guard.BreakerConfig `yaml:"breaker" toml:"breaker"`

	Observe observe.Config `yaml:"observe" toml:"observe"`
}

// BackendSpec declares one cache or logger backend.
type BackendSpec struct {
	Name   string         `yaml:"name" toml:"name"`
	Type   string         `yaml:"type" toml:"type"`
	Config map[string]any `yaml:"config" toml:"config"`
}

// RequestSpec declares one request.
type RequestSpec struct {
	Cache       bool          `yaml:"cache" toml:"cache"`
	CacheTarget string        `yaml:"cache_target" toml:"cache_target"`
	Commands    []CommandSpec `yaml:"commands" toml:"commands"`
}

// CommandSpec declares one command of a request.
type CommandSpec struct {
	Name   string         `yaml:"name" toml:"name"`
	Type   string         `yaml:"type" toml:"type"`
	Config map[string]any `yaml:"config" toml:"config"`
	Params []ParamSpec    `yaml:"params" toml:"params"`
	Guard  guard.Config   `yaml:"guard" toml:"guard"`
}

// ParamSpec declares one command parameter.
type ParamSpec struct {
	Name    string   `yaml:"name" toml:"name"`
	Sources []string `yaml:"sources" toml:"sources"`
	Default any      `yaml:"default" toml:"default"`
}

// DetectFormat picks the format from the file extension. Unknown
// extensions are read as YAML.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads, decodes and validates the routes file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a routes file. Unknown keys are rejected.
// Settings values and backend options have ${VAR} references expanded.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("decode toml: unknown keys: %s", strings.Join(keys, ", "))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if err := f.expand(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) expand() error {
	var err error
	if f.Settings, err = expandMap(f.Settings); err != nil {
		return fmt.Errorf("settings.%w", err)
	}
	for _, list := range [][]BackendSpec{f.Caches, f.Loggers} {
		for i := range list {
			if list[i].Config, err = expandMap(list[i].Config); err != nil {
				return fmt.Errorf("backend %q: %w", list[i].Name, err)
			}
		}
	}
	return nil
}

// Validate checks names, references and parameter locators. Unknown
// source kinds are left to resolution time, since sources are injected
// per dispatch.
func (f *File) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	cacheNames := map[string]bool{}
	for i, b := range f.Caches {
		checkBackend(fail, "cache", i, b, cacheNames)
	}
	loggerNames := map[string]bool{}
	for i, b := range f.Loggers {
		checkBackend(fail, "logger", i, b, loggerNames)
	}

	for name, req := range f.Requests {
		if !chain.ValidRequestName(name) {
			fail("request name %q must match [A-Za-z0-9_-]+", name)
		}
		if req.CacheTarget != "" && !cacheNames[req.CacheTarget] {
			fail("request %q: cache_target %q is not a declared cache", name, req.CacheTarget)
		}
		seen := map[string]bool{}
		for i, cmd := range req.Commands {
			where := fmt.Sprintf("request %q command %d", name, i)
			switch {
			case strings.TrimSpace(cmd.Name) == "":
				fail("%s: name is required", where)
			case seen[cmd.Name]:
				fail("%s: duplicate command name %q", where, cmd.Name)
			}
			seen[cmd.Name] = true
			if strings.TrimSpace(cmd.Type) == "" {
				fail("%s: type is required", where)
			}
			if err := cmd.Guard.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, where, err))
			}
			params := map[string]bool{}
			for _, p := range cmd.Params {
				if strings.TrimSpace(p.Name) == "" || params[p.Name] {
					fail("%s: parameter names must be unique and non-empty", where)
				}
				params[p.Name] = true
				for _, loc := range p.Sources {
					if _, err := param.ParseLocator(loc); err != nil {
						fail("%s: parameter %q: %v", where, p.Name, err)
					}
				}
			}
		}
	}

	if f.Observe.ServiceName != "" {
		if err := f.Observe.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err))
		}
	}
	return errors.Join(errs...)
}

func checkBackend(fail func(string, ...any), kind string, i int, b BackendSpec, seen map[string]bool) {
	switch {
	case strings.TrimSpace(b.Name) == "":
		fail("%s %d: name is required", kind, i)
	case seen[b.Name]:
		fail("%s %d: duplicate name %q", kind, i, b.Name)
	}
	seen[b.Name] = true
	if strings.TrimSpace(b.Type) == "" {
		fail("%s %q: type is required", kind, b.Name)
	}
}

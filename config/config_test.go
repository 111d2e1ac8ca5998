package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/guard"
)

const routesYAML = `
settings:
  site: ${FRONTCTL_TEST_SITE}
  price: "$$5"
caches:
  - name: fast
    type: memory
    config: {ttl: 5m}
  - name: slow
    type: memory
loggers:
  - name: main
    type: otel
requests:
  home:
    cache: true
    cache_target: slow
    commands:
      - name: greet
        type: echo
        params:
          - name: text
            sources: ["get:name", "context:user"]
            default: world
      - name: fetch
        type: echo
        guard:
          retries: 2
          timeout: 1s
          breaker: {max_failures: 3}
  login:
    commands:
      - name: form
        type: echo
`

const routesTOML = `
[settings]
site = "toml"

[[caches]]
name = "fast"
type = "memory"

[requests.home]
cache = true

[[requests.home.commands]]
name = "greet"
type = "echo"
guard = { timeout = "250ms" }

[[requests.home.commands.params]]
name = "text"
sources = ["get:name"]
default = "world"
`

func echoRegistry(t *testing.T) *chain.Registry {
	t.Helper()
	r, _ := countingRegistry(t)
	return r
}

// countingRegistry registers "echo" and reports how many commands were built.
func countingRegistry(t *testing.T) (*chain.Registry, *int) {
	t.Helper()
	builds := new(int)
	r := chain.NewRegistry()
	r.MustRegister("echo", func(map[string]any) (chain.Command, error) {
		*builds++
		return chain.CommandFunc(func(context.Context, chain.Params, *chain.Context) (any, error) {
			return "ok", nil
		}), nil
	})
	return r, builds
}

func TestParse_YAML(t *testing.T) {
	t.Setenv("FRONTCTL_TEST_SITE", "demo")

	f, err := Parse([]byte(routesYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := map[string]any{"site": "demo", "price": "$5"}
	if diff := cmp.Diff(want, f.Settings); diff != "" {
		t.Errorf("Settings mismatch (-want +got):\n%s", diff)
	}
	if len(f.Caches) != 2 || f.Caches[0].Name != "fast" || f.Caches[1].Name != "slow" {
		t.Errorf("Caches = %+v, want fast, slow in order", f.Caches)
	}

	home := f.Requests["home"]
	if !home.Cache || home.CacheTarget != "slow" || len(home.Commands) != 2 {
		t.Fatalf("home = %+v", home)
	}
	g := home.Commands[1].Guard
	if g.Retries != 2 || g.Timeout != time.Second || g.Breaker == nil || g.Breaker.MaxFailures != 3 {
		t.Errorf("guard = %+v", g)
	}
	p := home.Commands[0].Params[0]
	if diff := cmp.Diff(ParamSpec{Name: "text", Sources: []string{"get:name", "context:user"}, Default: "world"}, p); diff != "" {
		t.Errorf("param mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_TOML(t *testing.T) {
	f, err := Parse([]byte(routesTOML), FormatTOML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	home := f.Requests["home"]
	if !home.Cache || len(home.Commands) != 1 {
		t.Fatalf("home = %+v", home)
	}
	cmd := home.Commands[0]
	if cmd.Guard.Timeout != 250*time.Millisecond {
		t.Errorf("timeout = %v, want 250ms", cmd.Guard.Timeout)
	}
	if len(cmd.Params) != 1 || cmd.Params[0].Default != "world" {
		t.Errorf("params = %+v", cmd.Params)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		data    string
		wantErr string
	}{
		{"unknown yaml key", FormatYAML, "bogus: 1\n", "decode yaml"},
		{"unknown toml key", FormatTOML, "bogus = 1\n", "unknown keys"},
		{"missing env", FormatYAML, "settings: {a: ${FRONTCTL_TEST_UNSET_VAR}}\n", "FRONTCTL_TEST_UNSET_VAR"},
		{"bad request name", FormatYAML, "requests:\n  a/b: {}\n", "must match"},
		{"bad cache target", FormatYAML, "requests:\n  a: {cache_target: nope}\n", "not a declared cache"},
		{"duplicate command", FormatYAML, "requests:\n  a:\n    commands: [{name: x, type: echo}, {name: x, type: echo}]\n", "duplicate command"},
		{"missing type", FormatYAML, "requests:\n  a:\n    commands: [{name: x}]\n", "type is required"},
		{"malformed locator", FormatYAML, "requests:\n  a:\n    commands: [{name: x, type: echo, params: [{name: p, sources: [nocolon]}]}]\n", "malformed source locator"},
		{"negative retries", FormatYAML, "requests:\n  a:\n    commands: [{name: x, type: echo, guard: {retries: -1}}]\n", "retries"},
		{"duplicate cache", FormatYAML, "caches: [{name: c, type: memory}, {name: c, type: memory}]\n", "duplicate name"},
		{"bad observe", FormatYAML, "observe: {service_name: s, tracing: {enabled: true, exporter: zipkin}}\n", "tracing exporter"},
		{"unsupported format", Format("ini"), "", "unsupported format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_EmptyYAML(t *testing.T) {
	f, err := Parse(nil, FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Requests) != 0 {
		t.Errorf("Requests = %v, want none", f.Requests)
	}
}

func TestLoad_DetectsFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.toml")
	if err := os.WriteFile(path, []byte(routesTOML), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Settings["site"] != "toml" {
		t.Errorf("site = %v, want toml", f.Settings["site"])
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() missing error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"routes.yaml": FormatYAML,
		"routes.yml":  FormatYAML,
		"routes.TOML": FormatTOML,
		"routes":      FormatYAML,
	}
	for path, want := range tests {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCatalog_Request(t *testing.T) {
	t.Setenv("FRONTCTL_TEST_SITE", "demo")
	f, err := Parse([]byte(routesYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	breakers := guard.NewBreakers(guard.BreakerConfig{})
	registry, builds := countingRegistry(t)
	cat, err := NewCatalog(f, WithCommandRegistry(registry), WithBreakers(breakers))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	req, err := cat.Request("home")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if req.Name != "home" || !req.Cacheable || req.CacheTarget != "slow" {
		t.Errorf("Request() = %+v", req)
	}
	if len(req.Commands) != 2 || req.Commands[0].Name != "greet" || req.Commands[1].Name != "fetch" {
		t.Fatalf("commands = %+v", req.Commands)
	}
	if req.Commands[0].Guard != nil {
		t.Error("unguarded command has a guard")
	}
	if req.Commands[1].Guard == nil {
		t.Error("guarded command has no guard")
	}
	if _, ok := breakers.States()["home/fetch"]; !ok {
		t.Error("breaker home/fetch not registered in shared set")
	}

	if _, err := cat.Request("home"); err != nil {
		t.Fatalf("Request() again error = %v", err)
	}
	if *builds != 4 {
		t.Errorf("commands built = %d, want 4 (fresh per Request)", *builds)
	}

	if diff := cmp.Diff([]string{"home", "login"}, cat.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if got := cat.Caches(); len(got) != 2 || got[0].Name != "fast" {
		t.Errorf("Caches() = %+v", got)
	}
	if got := cat.Loggers(); len(got) != 1 || got[0].Name != "main" {
		t.Errorf("Loggers() = %+v", got)
	}

	settings := cat.Settings()
	settings["site"] = "mutated"
	if cat.Settings()["site"] != "demo" {
		t.Error("Settings() returned the internal map")
	}
}

func TestCatalog_RequestNotFound(t *testing.T) {
	cat, err := NewCatalog(&File{}, WithCommandRegistry(echoRegistry(t)))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"missing", "a/b", ""} {
		if _, err := cat.Request(name); !errors.Is(err, chain.ErrRequestNotFound) {
			t.Errorf("Request(%q) error = %v, want %v", name, err, chain.ErrRequestNotFound)
		}
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		file *File
	}{
		{"unregistered command", &File{Requests: map[string]RequestSpec{"a": {Commands: []CommandSpec{{Name: "x", Type: "nope"}}}}}},
		{"unknown cache type", &File{Caches: []BackendSpec{{Name: "c", Type: "redis"}}}},
		{"bad logger options", &File{Loggers: []BackendSpec{{Name: "l", Type: "sqlite"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.file, WithCommandRegistry(echoRegistry(t))); err == nil {
				t.Error("NewCatalog() error = nil, want error")
			}
		})
	}
}

func TestCatalog_CommandBuildFailure(t *testing.T) {
	r := chain.NewRegistry()
	r.MustRegister("broken", func(map[string]any) (chain.Command, error) {
		return nil, errors.New("missing option")
	})
	f := &File{Requests: map[string]RequestSpec{"a": {Commands: []CommandSpec{{Name: "x", Type: "broken"}}}}}
	cat, err := NewCatalog(f, WithCommandRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	_, err = cat.Request("a")
	var cfgErr *chain.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Command != "x" {
		t.Errorf("Request() error = %v, want ConfigError for x", err)
	}
	if !errors.Is(err, chain.ErrConfiguration) {
		t.Errorf("Request() error = %v, want %v", err, chain.ErrConfiguration)
	}
}

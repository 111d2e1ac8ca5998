// Package app assembles a running front controller from the routes file
// and the process settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/jonwraymond/frontctl/cache"
	"github.com/jonwraymond/frontctl/config"
	"github.com/jonwraymond/frontctl/dispatch"
	"github.com/jonwraymond/frontctl/guard"
	"github.com/jonwraymond/frontctl/health"
	"github.com/jonwraymond/frontctl/observe"
	"github.com/jonwraymond/frontctl/param"
	"github.com/jonwraymond/frontctl/transport"

	// Built-in command types.
	_ "github.com/jonwraymond/frontctl/commands"
)

// DefaultServiceName is used when the routes file names no service.
const DefaultServiceName = "frontctl"

// App holds the wired components.
type App struct {
	Server     config.Server
	Catalog    *config.Catalog
	Caches     *cache.Manager
	Loggers    *observe.Manager
	Observer   observe.Observer
	Instrument *observe.Instrument
	Dispatcher *dispatch.Dispatcher
	Health     *health.Aggregator
	Logger     observe.Logger
	Sessions   *param.SessionStore
}

// Option configures New.
type Option func(*options)

type options struct {
	output io.Writer
	file   *config.File
}

// WithOutput sends diagnostic logs and stdout exporters to w.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithFile uses an already parsed routes file instead of loading
// Server.ConfigPath.
func WithFile(f *config.File) Option {
	return func(o *options) { o.file = f }
}

// New loads the routes file and wires every component. A logger backend
// that fails to initialize is reported but does not prevent startup.
func New(ctx context.Context, srv config.Server, opts ...Option) (*App, error) {
	o := options{output: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	file := o.file
	if file == nil {
		loaded, err := config.Load(srv.ConfigPath)
		if err != nil {
			return nil, err
		}
		file = loaded
	}
	catalog, err := config.NewCatalog(file)
	if err != nil {
		return nil, err
	}

	obsCfg := catalog.Observe()
	if obsCfg.ServiceName == "" {
		obsCfg.ServiceName = DefaultServiceName
	}
	if obsCfg.Output == nil {
		obsCfg.Output = o.output
	}
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("observer: %w", err)
	}
	inst, err := observe.NewInstrument(obs)
	if err != nil {
		_ = catalog.Close()
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("instrument: %w", err)
	}

	logger := obs.Logger()
	if !obsCfg.Logging.Enabled {
		logger = observe.NewLoggerWithWriter(srv.LogLevel, o.output).With(observe.F("service", obsCfg.ServiceName))
	}

	loggers := observe.NewManager(catalog.Loggers(), observe.WithFailureHook(inst.LogFailure))
	if err := loggers.Init(ctx); err != nil {
		logger.Warn(ctx, "logger backend unavailable", observe.F("error", err))
	}
	caches := cache.NewManager(catalog.Caches()...)

	a := &App{
		Server:     srv,
		Catalog:    catalog,
		Caches:     caches,
		Loggers:    loggers,
		Observer:   obs,
		Instrument: inst,
		Health:     newHealth(catalog),
		Logger:     logger,
		Sessions:   param.NewSessionStore(srv.SessionTTL, param.WithMaxSessions(srv.MaxSessions)),
	}
	a.Dispatcher = dispatch.New(catalog,
		dispatch.WithCaches(caches),
		dispatch.WithLoggers(loggers),
		dispatch.WithInstrument(inst),
		dispatch.WithMaxForwards(srv.MaxForwards),
		dispatch.WithDiagnostics(srv.LogLevel == "debug"),
	)
	return a, nil
}

func newHealth(catalog *config.Catalog) *health.Aggregator {
	agg := health.NewAggregator()
	for _, c := range catalog.Caches() {
		if p, ok := c.Backend.(health.Pinger); ok {
			agg.Register(health.PingChecker("cache:"+c.Name, p))
		}
	}
	for _, l := range catalog.Loggers() {
		if p, ok := l.Backend.(health.Pinger); ok {
			agg.Register(health.PingChecker("logger:"+l.Name, p))
		}
	}
	agg.Register(health.BreakerChecker("breakers", catalog.Breakers()))
	return agg
}

// EnvSource returns the env parameter source allowed by the settings.
func (a *App) EnvSource() param.EnvSource {
	return param.EnvSource{Prefix: a.Server.EnvPrefix, Allow: a.Server.EnvAllow}
}

// Handler builds the HTTP handler: the front controller plus health,
// metrics and request telemetry.
func (a *App) Handler() (http.Handler, error) {
	opts := []transport.HandlerOption{
		transport.WithSessions(a.Sessions, a.Server.SessionCookie),
		transport.WithEnv(a.EnvSource()),
		transport.WithLogger(a.Logger),
	}
	if a.Server.ClaimsEnabled() {
		v, err := a.verifier()
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithVerifier(v))
	}
	if a.Server.RateLimit > 0 {
		opts = append(opts, transport.WithRateLimiter(guard.NewRateLimiter(guard.RateLimiterConfig{
			Rate:  a.Server.RateLimit,
			Burst: a.Server.RateBurst,
		})))
	}
	if a.Server.MaxConcurrent > 0 {
		opts = append(opts, transport.WithBulkhead(guard.NewBulkhead(guard.BulkheadConfig{
			MaxConcurrent: a.Server.MaxConcurrent,
		})))
	}

	h := transport.NewHandler(a.Dispatcher, opts...)
	return transport.NewMux(h, transport.Routes{
		Health:     a.Health,
		Metrics:    transport.MetricsHandler(a.Observer),
		Middleware: observe.NewMiddleware(a.Observer.Tracer(), a.Logger),
	}), nil
}

func (a *App) verifier() (*param.Verifier, error) {
	cfg := param.VerifierConfig{Issuer: a.Server.JWTIssuer, Audience: a.Server.JWTAudience}
	if a.Server.JWKSURL != "" {
		return param.NewVerifier(cfg, param.NewJWKSKeys(a.Server.JWKSURL, a.Server.JWKSRefresh, nil)), nil
	}
	secret, err := config.ResolveSecret(a.Server.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt secret: %w", err)
	}
	return param.NewVerifier(cfg, param.StaticKey(secret)), nil
}

// Close releases backends and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Catalog.Close(), a.Observer.Shutdown(ctx))
}

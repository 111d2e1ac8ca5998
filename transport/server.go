package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/frontctl/health"
	"github.com/jonwraymond/frontctl/observe"
	"github.com/jonwraymond/frontctl/param"
)

// Routes selects the endpoints mounted next to the front controller.
type Routes struct {
	// Health mounts /healthz, /readyz and /health when set.
	Health *health.Aggregator

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// Middleware wraps the whole mux when set.
	Middleware *observe.Middleware
}

// NewMux mounts h at /r/{request} and / and the optional routes.
func NewMux(h http.Handler, routes Routes) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/r/{request}", h)
	mux.Handle("/{$}", h)
	if routes.Health != nil {
		health.RegisterHandlers(mux, routes.Health)
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}
	if routes.Middleware != nil {
		return routes.Middleware.Wrap(mux)
	}
	return mux
}

// MetricsHandler returns the Prometheus scrape handler when obs exports
// through Prometheus, else nil.
func MetricsHandler(obs observe.Observer) http.Handler {
	if obs == nil || !obs.PrometheusEnabled() {
		return nil
	}
	return promhttp.Handler()
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr string

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout guards against slow clients.
	// Default: 10s
	ReadHeaderTimeout time.Duration

	// Sessions, when set, is swept every SweepInterval.
	Sessions      *param.SessionStore
	SweepInterval time.Duration
}

// Server runs the HTTP listener and its background upkeep.
type Server struct {
	config ServerConfig
	http   *http.Server
	logger observe.Logger
}

// NewServer creates a server for handler.
func NewServer(config ServerConfig, handler http.Handler, logger observe.Logger) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Server{
		config: config,
		http: &http.Server{
			Addr:              config.Addr,
			Handler:           handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		logger: logger,
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	s.logger.Info(ctx, "listening", observe.F("addr", ln.Addr().String()))
	g.Go(func() error {
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	if s.config.Sessions != nil {
		g.Go(func() error {
			ticker := time.NewTicker(s.config.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := s.config.Sessions.Sweep(); n > 0 {
						s.logger.Debug(gctx, "expired sessions swept", observe.F("count", n))
					}
				}
			}
		})
	}

	err := g.Wait()
	s.logger.Info(ctx, "server stopped")
	return err
}

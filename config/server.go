package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/frontctl/observe"
)

// Server holds process settings read from the environment.
type Server struct {
	ConfigPath      string        `env:"FRONTCTL_CONFIG" envDefault:"frontctl.yaml"`
	Addr            string        `env:"FRONTCTL_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"FRONTCTL_LOG_LEVEL" envDefault:"info"`
	MaxForwards     int           `env:"FRONTCTL_MAX_FORWARDS" envDefault:"16"`
	ShutdownTimeout time.Duration `env:"FRONTCTL_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// RateLimit is requests per second across the server. Zero disables it.
	RateLimit float64 `env:"FRONTCTL_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"FRONTCTL_RATE_BURST" envDefault:"20"`

	// MaxConcurrent bounds in-flight dispatches. Zero disables it.
	MaxConcurrent int `env:"FRONTCTL_MAX_CONCURRENT" envDefault:"0"`

	SessionCookie string        `env:"FRONTCTL_SESSION_COOKIE" envDefault:"frontctl_session"`
	SessionTTL    time.Duration `env:"FRONTCTL_SESSION_TTL" envDefault:"30m"`
	MaxSessions   int           `env:"FRONTCTL_MAX_SESSIONS" envDefault:"100000"`

	// JWTSecret may be a secretref (see ResolveSecret). Set it or JWKSURL
	// to enable the claim parameter source.
	JWTSecret   string        `env:"FRONTCTL_JWT_SECRET"`
	JWKSURL     string        `env:"FRONTCTL_JWKS_URL"`
	JWKSRefresh time.Duration `env:"FRONTCTL_JWKS_REFRESH" envDefault:"10m"`
	JWTIssuer   string        `env:"FRONTCTL_JWT_ISSUER"`
	JWTAudience string        `env:"FRONTCTL_JWT_AUDIENCE"`

	// EnvPrefix limits the env parameter source to variables with this
	// prefix. Empty exposes none unless EnvAllow lists them.
	EnvPrefix string   `env:"FRONTCTL_ENV_PREFIX" envDefault:"APP_"`
	EnvAllow  []string `env:"FRONTCTL_ENV_ALLOW" envSeparator:","`
}

// LoadServer reads Server from the environment and validates it.
func LoadServer() (Server, error) {
	var s Server
	if err := env.Parse(&s); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Server{}, err
	}
	return s, nil
}

// ErrInvalidServer indicates invalid process settings.
var ErrInvalidServer = errors.New("config: invalid server settings")

// Validate checks ranges and the log level.
func (s Server) Validate() error {
	var errs []error
	if s.MaxForwards < 1 {
		errs = append(errs, fmt.Errorf("%w: FRONTCTL_MAX_FORWARDS must be >= 1", ErrInvalidServer))
	}
	if s.RateLimit < 0 || s.RateBurst < 0 || s.MaxConcurrent < 0 || s.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("%w: limits must be >= 0", ErrInvalidServer))
	}
	if s.ShutdownTimeout <= 0 || s.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: durations must be > 0", ErrInvalidServer))
	}
	if !slices.Contains(observe.ValidLogLevels, s.LogLevel) {
		errs = append(errs, fmt.Errorf("%w: unknown log level %q", ErrInvalidServer, s.LogLevel))
	}
	return errors.Join(errs...)
}

// ClaimsEnabled reports whether bearer tokens should be verified.
func (s Server) ClaimsEnabled() bool {
	return s.JWTSecret != "" || s.JWKSURL != ""
}

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/dispatch"
	"github.com/jonwraymond/frontctl/guard"
	"github.com/jonwraymond/frontctl/observe"
	"github.com/jonwraymond/frontctl/param"
)

// RequestIDHeader carries the dispatch request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// DefaultSessionCookie names the session cookie.
const DefaultSessionCookie = "frontctl_session"

// ErrHeadersSent is returned by a redirect issued after the response
// status was committed.
var ErrHeadersSent = errors.New("transport: response headers already sent")

// Dispatcher runs a named request. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	HandleRequest(ctx context.Context, w io.Writer, name string, initial *chain.Context) (dispatch.Outcome, error)
}

// Handler is the HTTP front controller.
//
// Contract:
//   - Concurrency: safe for concurrent use; every inbound request runs in
//     its own goroutine with its own sources and context.
type Handler struct {
	dispatcher Dispatcher
	sessions   *param.SessionStore
	cookie     string
	verifier   *param.Verifier
	env        param.Source
	limiter    *guard.RateLimiter
	bulkhead   *guard.Bulkhead
	logger     observe.Logger
	newID      func() string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSessions enables the session source, tracked through a cookie.
// An empty cookie name uses DefaultSessionCookie.
func WithSessions(store *param.SessionStore, cookie string) HandlerOption {
	return func(h *Handler) {
		h.sessions = store
		if cookie != "" {
			h.cookie = cookie
		}
	}
}

// WithVerifier enables the claim source. A request carrying an invalid
// bearer token is rejected with 401; a request without one has no claims.
func WithVerifier(v *param.Verifier) HandlerOption {
	return func(h *Handler) { h.verifier = v }
}

// WithEnv binds the env source.
func WithEnv(src param.Source) HandlerOption {
	return func(h *Handler) { h.env = src }
}

// WithRateLimiter throttles dispatches.
func WithRateLimiter(rl *guard.RateLimiter) HandlerOption {
	return func(h *Handler) { h.limiter = rl }
}

// WithBulkhead bounds concurrent dispatches.
func WithBulkhead(b *guard.Bulkhead) HandlerOption {
	return func(h *Handler) { h.bulkhead = b }
}

// WithLogger sets the logger for rejected requests.
func WithLogger(l observe.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a handler dispatching through d.
func NewHandler(d Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		dispatcher: d,
		cookie:     DefaultSessionCookie,
		logger:     observe.NopLogger(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("request")
	if name == "" {
		name = r.URL.Query().Get("request")
	}

	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > 128 {
		id = h.newID()
	}
	ctx := observe.WithRequestID(r.Context(), id)
	w.Header().Set(RequestIDHeader, id)

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			h.fail(ctx, w, name, err)
			return
		}
	}
	if h.bulkhead != nil {
		if err := h.bulkhead.Acquire(ctx); err != nil {
			h.fail(ctx, w, name, err)
			return
		}
		defer h.bulkhead.Release()
	}

	sources, err := param.FromRequest(r)
	if err != nil {
		h.logger.Warn(ctx, "unreadable form body", observe.F("request", name), observe.F("error", err))
	}
	if h.env != nil {
		sources[param.KindEnv] = h.env
	}
	rw := &responseWriter{ResponseWriter: w}
	if h.sessions != nil {
		sources[param.KindSession] = h.resumeSession(ctx, rw, r, name)
	}
	if h.verifier != nil {
		if token, ok := param.BearerToken(r.Header.Get("Authorization")); ok {
			claims, err := h.verifier.Verify(ctx, token)
			if err != nil {
				h.fail(ctx, w, name, err)
				return
			}
			sources[param.KindClaim] = claims
		}
	}

	ctx = param.WithSources(ctx, sources)
	ctx = chain.WithRedirector(ctx, rw)

	out, err := h.dispatcher.HandleRequest(ctx, rw, name, nil)
	if err != nil {
		h.fail(ctx, rw, name, err)
		return
	}
	if out.Kind == chain.KindFatalAbort && !rw.wroteHeader {
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// resumeSession binds the session named by the request cookie. Without a
// live one the session is created, and the cookie issued, only when a
// command first writes to it.
func (h *Handler) resumeSession(ctx context.Context, rw *responseWriter, r *http.Request, name string) *param.Session {
	var id string
	if c, err := r.Cookie(h.cookie); err == nil {
		id = c.Value
	}
	return h.sessions.Resume(id, func(sess *param.Session) {
		if rw.wroteHeader {
			h.logger.Warn(ctx, "session created after the response started; cookie not sent",
				observe.F("request", name))
			return
		}
		http.SetCookie(rw, &http.Cookie{
			Name:     h.cookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	})
}

// fail answers with the status mapped from err unless the response is
// already committed.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, name string, err error) {
	code := StatusCode(err)
	fields := []observe.Field{observe.F("request", name), observe.F("status", code), observe.F("error", err)}
	if code >= http.StatusInternalServerError {
		h.logger.Error(ctx, "dispatch failed", fields...)
	} else {
		h.logger.Warn(ctx, "dispatch rejected", fields...)
	}

	if rw, ok := w.(*responseWriter); ok && rw.wroteHeader {
		return
	}
	if code == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	http.Error(w, http.StatusText(code), code)
}

// StatusCode maps a dispatch error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chain.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, chain.ErrForwardLoop):
		return http.StatusLoopDetected
	case errors.Is(err, guard.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, guard.ErrBulkheadFull), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, param.ErrInvalidToken), errors.Is(err, param.ErrKeyNotFound), errors.Is(err, param.ErrNoToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// responseWriter tracks whether the status line was sent and implements
// chain.Redirector for the dispatch it serves.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

var _ chain.Redirector = (*responseWriter)(nil)

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(p)
}

// Redirect sends a redirect status with a Location header.
func (rw *responseWriter) Redirect(location string, code int) error {
	if rw.wroteHeader {
		return ErrHeadersSent
	}
	rw.Header().Set("Location", location)
	rw.WriteHeader(code)
	return nil
}

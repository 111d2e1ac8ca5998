package observe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

// Backend is a destination for dispatch log lines.
//
// Contract:
// - Init is called once before the first Log.
// - Concurrency: Log must be safe for concurrent use.
// - Errors: failures are returned, never panicked.
type Backend interface {
	Init(ctx context.Context) error
	Log(ctx context.Context, message, category string) error
}

// Log categories used by the dispatcher.
const (
	CategoryError   = "error"
	CategoryWarning = "warning"
	CategoryInfo    = "info"
	CategoryDebug   = "debug"
)

func levelOf(category string) LogLevel {
	switch strings.ToLower(category) {
	case CategoryError, "fatal", "critical":
		return LevelError
	case CategoryWarning, "warn":
		return LevelWarn
	case CategoryDebug:
		return LevelDebug
	default:
		return LevelInfo
	}
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the dispatch request ID that
// backends attach to each line.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WriterBackend renders lines as JSON objects through the structured Logger.
type WriterBackend struct {
	logger Logger
	closer io.Closer
}

// NewWriterBackend creates a backend writing JSON lines to w.
func NewWriterBackend(w io.Writer) *WriterBackend {
	return &WriterBackend{logger: NewLoggerWithWriter("debug", w)}
}

// Init is a no-op.
func (b *WriterBackend) Init(context.Context) error { return nil }

// Close closes the underlying file, if the backend owns one.
func (b *WriterBackend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Log writes one line.
func (b *WriterBackend) Log(ctx context.Context, message, category string) error {
	fields := []Field{F("category", category)}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, F("request_id", id))
	}
	switch levelOf(category) {
	case LevelError:
		b.logger.Error(ctx, message, fields...)
	case LevelWarn:
		b.logger.Warn(ctx, message, fields...)
	case LevelDebug:
		b.logger.Debug(ctx, message, fields...)
	default:
		b.logger.Info(ctx, message, fields...)
	}
	return nil
}

// ZapBackend logs through a zap.Logger.
type ZapBackend struct {
	cfg    *zap.Config
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewZapBackend wraps an existing zap logger.
func NewZapBackend(logger *zap.Logger) *ZapBackend {
	return &ZapBackend{logger: logger}
}

// NewZapBackendFromConfig builds the logger from cfg on Init.
func NewZapBackendFromConfig(cfg zap.Config) *ZapBackend {
	return &ZapBackend{cfg: &cfg}
}

// Init builds the logger when the backend was created from a config.
func (b *ZapBackend) Init(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.logger != nil {
		return nil
	}
	if b.cfg == nil {
		return errors.New("observe: zap backend has no logger or config")
	}
	logger, err := b.cfg.Build()
	if err != nil {
		return fmt.Errorf("observe: build zap logger: %w", err)
	}
	b.logger = logger
	return nil
}

// Log writes one entry at the level matching category.
func (b *ZapBackend) Log(ctx context.Context, message, category string) error {
	b.mu.RLock()
	logger := b.logger
	b.mu.RUnlock()
	if logger == nil {
		return errors.New("observe: zap backend not initialized")
	}

	fields := []zap.Field{zap.String("category", category)}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	var lvl zapcore.Level
	switch levelOf(category) {
	case LevelError:
		lvl = zapcore.ErrorLevel
	case LevelWarn:
		lvl = zapcore.WarnLevel
	case LevelDebug:
		lvl = zapcore.DebugLevel
	default:
		lvl = zapcore.InfoLevel
	}
	logger.Log(lvl, message, fields...)
	return nil
}

// Close flushes buffered entries.
func (b *ZapBackend) Close() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.logger == nil {
		return nil
	}
	err := b.logger.Sync()
	// Syncing a terminal or pipe reports EINVAL/ENOTTY on some platforms.
	if err != nil && (strings.Contains(err.Error(), "invalid argument") || strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}

const logSchema = `CREATE TABLE IF NOT EXISTS log_entries (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  ts         INTEGER NOT NULL,
  category   TEXT NOT NULL,
  message    TEXT NOT NULL,
  request_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_log_entries_category ON log_entries(category, ts)`

// SQLiteBackend appends lines to a log_entries table.
type SQLiteBackend struct {
	path string
	now  func() time.Time

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteBackend creates a backend for the database at path. The file is
// opened on Init.
func NewSQLiteBackend(path string) *SQLiteBackend {
	return &SQLiteBackend{path: path, now: time.Now}
}

// Init opens the database and creates the schema.
func (b *SQLiteBackend) Init(ctx context.Context) error {
	if strings.TrimSpace(b.path) == "" {
		return errors.New("observe: sqlite path is required")
	}
	dsn := filepath.Clean(b.path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("observe: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, logSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("observe: create log schema: %w", err)
	}

	b.mu.Lock()
	b.db = db
	b.mu.Unlock()
	return nil
}

// Log inserts one row.
func (b *SQLiteBackend) Log(ctx context.Context, message, category string) error {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return errors.New("observe: sqlite backend not initialized")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO log_entries (ts, category, message, request_id) VALUES (?, ?, ?, ?)`,
		b.now().UTC().UnixMilli(), category, message, RequestIDFromContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("observe: insert log entry: %w", err)
	}
	return nil
}

// Entry is a stored log line.
type Entry struct {
	Time      time.Time
	Category  string
	Message   string
	RequestID string
}

// Recent returns up to limit entries, newest first. An empty category
// matches all.
func (b *SQLiteBackend) Recent(ctx context.Context, category string, limit int) ([]Entry, error) {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return nil, errors.New("observe: sqlite backend not initialized")
	}
	rows, err := db.QueryContext(ctx,
		`SELECT ts, category, message, request_id FROM log_entries
		 WHERE (? = '' OR category = ?) ORDER BY id DESC LIMIT ?`,
		category, category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("observe: query log entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&ts, &e.Category, &e.Message, &e.RequestID); err != nil {
			return nil, fmt.Errorf("observe: scan log entry: %w", err)
		}
		e.Time = time.UnixMilli(ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return errors.New("observe: sqlite backend not initialized")
	}
	return db.PingContext(ctx)
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// SpanBackend records lines as events on the span active in ctx, so log
// lines show up next to the dispatch and command spans.
type SpanBackend struct{}

// Init is a no-op.
func (SpanBackend) Init(context.Context) error { return nil }

// Log adds a "log" event to the current span. Without a recording span it
// does nothing.
func (SpanBackend) Log(ctx context.Context, message, category string) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	span.AddEvent("log", trace.WithAttributes(
		attribute.String("log.category", category),
		attribute.String("log.message", message),
	))
	return nil
}

var (
	_ Backend = (*WriterBackend)(nil)
	_ Backend = (*ZapBackend)(nil)
	_ Backend = (*SQLiteBackend)(nil)
	_ Backend = SpanBackend{}
)

package observe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/frontctl/chain"
)

type line struct {
	Message  string
	Category string
}

type recordingBackend struct {
	mu      sync.Mutex
	inits   int
	lines   []line
	initErr error
	logErr  error
	panics  bool
	closed  bool
}

func (b *recordingBackend) Init(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inits++
	return b.initErr
}

func (b *recordingBackend) Log(_ context.Context, message, category string) error {
	if b.panics {
		panic("backend exploded")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.logErr != nil {
		return b.logErr
	}
	b.lines = append(b.lines, line{message, category})
	return nil
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestManager_FanOut(t *testing.T) {
	a, b := &recordingBackend{}, &recordingBackend{}
	m := NewManager([]NamedBackend{{Name: "a", Backend: a}, {Name: "b", Backend: b}})
	ctx := context.Background()

	if err := m.Log(ctx, "one", CategoryInfo); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if err := m.Log(ctx, "two", CategoryWarning); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	want := []line{{"one", "info"}, {"two", "warning"}}
	for name, rb := range map[string]*recordingBackend{"a": a, "b": b} {
		if diff := cmp.Diff(want, rb.lines); diff != "" {
			t.Errorf("backend %s lines mismatch (-want +got):\n%s", name, diff)
		}
		if rb.inits != 1 {
			t.Errorf("backend %s inits = %d, want 1", name, rb.inits)
		}
	}
}

func TestManager_FailureIsolation(t *testing.T) {
	errDown := errors.New("disk full")
	tests := []struct {
		name    string
		failing *recordingBackend
		wantIs  error
	}{
		{"log error", &recordingBackend{logErr: errDown}, errDown},
		{"init error", &recordingBackend{initErr: errDown}, errDown},
		{"panic", &recordingBackend{panics: true}, ErrBackendPanic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := &recordingBackend{}, &recordingBackend{}
			var hooked []string
			m := NewManager([]NamedBackend{
				{Name: "first", Backend: first},
				{Name: "broken", Backend: tt.failing},
				{Name: "last", Backend: last},
			}, WithFailureHook(func(_ context.Context, backend string, _ error) {
				hooked = append(hooked, backend)
			}))

			err := m.Log(context.Background(), "msg", CategoryError)
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("Log() error = %v, want %v", err, tt.wantIs)
			}
			if !strings.Contains(err.Error(), `logger "broken"`) {
				t.Errorf("Log() error = %q, want backend name", err)
			}
			if len(first.lines) != 1 || len(last.lines) != 1 {
				t.Errorf("healthy backends got %d and %d lines, want 1 each", len(first.lines), len(last.lines))
			}
			if diff := cmp.Diff([]string{"broken"}, hooked); diff != "" {
				t.Errorf("failure hook mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManager_InitFailureIsSticky(t *testing.T) {
	b := &recordingBackend{initErr: errors.New("no database")}
	m := NewManager([]NamedBackend{{Name: "db", Backend: b}})
	for range 3 {
		if err := m.Log(context.Background(), "msg", CategoryInfo); err == nil {
			t.Fatal("Log() error = nil, want init error")
		}
	}
	if b.inits != 1 {
		t.Errorf("inits = %d, want 1", b.inits)
	}
}

func TestManager_Init(t *testing.T) {
	ok, broken := &recordingBackend{}, &recordingBackend{initErr: errors.New("no database")}
	m := NewManager([]NamedBackend{{Name: "ok", Backend: ok}, {Name: "broken", Backend: broken}})
	ctx := context.Background()

	err := m.Init(ctx)
	if err == nil || !strings.Contains(err.Error(), `logger "broken": init: no database`) {
		t.Fatalf("Init() error = %v", err)
	}
	_ = m.Init(ctx)
	_ = m.Log(ctx, "after", CategoryInfo)
	if ok.inits != 1 || broken.inits != 1 {
		t.Errorf("inits = %d/%d, want 1/1", ok.inits, broken.inits)
	}
	if len(ok.lines) != 1 {
		t.Errorf("healthy backend lines = %d, want 1", len(ok.lines))
	}

	var nilManager *Manager
	if err := nilManager.Init(ctx); err != nil {
		t.Errorf("nil Manager Init() error = %v", err)
	}
}

func TestManager_EmptyAndNil(t *testing.T) {
	var nilMgr *Manager
	if err := nilMgr.Log(context.Background(), "x", CategoryInfo); err != nil {
		t.Errorf("nil Manager Log() = %v, want nil", err)
	}
	if nilMgr.Len() != 0 {
		t.Errorf("nil Manager Len() = %d, want 0", nilMgr.Len())
	}

	m := NewManager([]NamedBackend{{Name: "skipped", Backend: nil}})
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if err := m.Log(context.Background(), "x", CategoryInfo); err != nil {
		t.Errorf("Log() = %v, want nil", err)
	}
}

func TestManager_ConcurrentLog(t *testing.T) {
	b := &recordingBackend{}
	m := NewManager([]NamedBackend{{Name: "b", Backend: b}})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Log(context.Background(), fmt.Sprintf("line %d", i), CategoryDebug)
		}()
	}
	wg.Wait()

	if len(b.lines) != 50 {
		t.Errorf("lines = %d, want 50", len(b.lines))
	}
	if b.inits != 1 {
		t.Errorf("inits = %d, want 1", b.inits)
	}
}

func TestManager_Close(t *testing.T) {
	a := &recordingBackend{}
	m := NewManager([]NamedBackend{{Name: "a", Backend: a}, {Name: "span", Backend: SpanBackend{}}})
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.closed {
		t.Error("backend was not closed")
	}
}

func TestManager_LogError(t *testing.T) {
	b := &recordingBackend{}
	m := NewManager([]NamedBackend{{Name: "b", Backend: b}})

	if err := m.LogError(context.Background(), nil, CategoryError); err != nil {
		t.Errorf("LogError(nil) = %v", err)
	}
	if len(b.lines) != 0 {
		t.Fatalf("LogError(nil) logged %d lines", len(b.lines))
	}

	cause := errors.New("connection refused")
	if err := m.LogError(context.Background(), fmt.Errorf("load cart: %w", cause), CategoryError); err != nil {
		t.Fatalf("LogError() error = %v", err)
	}
	want := "load cart: connection refused\ncaused by: connection refused"
	if b.lines[0].Message != want {
		t.Errorf("message = %q, want %q", b.lines[0].Message, want)
	}
}

func TestFormatError(t *testing.T) {
	panicErr := &chain.PanicError{Value: "nil map", Stack: []byte("goroutine 1 [running]:\nmain.go:12\n")}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{
			"joined",
			errors.Join(errors.New("a"), errors.New("b")),
			"a\nb\ncaused by: a\ncaused by: b",
		},
		{
			"with stack",
			fmt.Errorf("checkout: %w", panicErr),
			"checkout: chain: command panicked: nil map\n" +
				"caused by: chain: command panicked: nil map\n" +
				"stack trace:\ngoroutine 1 [running]:\nmain.go:12",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatError(tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

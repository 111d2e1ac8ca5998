package param

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/r/home?q=search&empty=", strings.NewReader("name=ada&blank="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Trace", "abc")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})

	sources, err := FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		kind, key string
		want      any
		wantOK    bool
	}{
		{KindGet, "q", "search", true},
		{KindGet, "empty", "", true},
		{KindGet, "missing", nil, false},
		{KindPost, "name", "ada", true},
		{KindPost, "blank", "", true},
		{KindPost, "q", nil, false},
		{KindCookie, "theme", "dark", true},
		{KindCookie, "other", nil, false},
		{KindHeader, "x-trace", "abc", true},
		{KindServer, "method", http.MethodPost, true},
		{KindServer, "path", "/r/home", true},
		{KindServer, "remote_addr", "192.0.2.1:1234", true},
		{KindServer, "forwarded_for", "203.0.113.9, 10.0.0.1", true},
	}
	for _, tt := range tests {
		got, ok := sources[tt.kind].Lookup(ctx, tt.key)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("%s:%s = %v, %v; want %v, %v", tt.kind, tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestArgsSource(t *testing.T) {
	args := ArgsSource{"first", "--mode=fast", "second", "name="}
	ctx := context.Background()

	tests := []struct {
		key    string
		want   any
		wantOK bool
	}{
		{"0", "first", true},
		{"1", "second", true},
		{"2", nil, false},
		{"mode", "fast", true},
		{"name", "", true},
		{"other", nil, false},
	}
	for _, tt := range tests {
		got, ok := args.Lookup(ctx, tt.key)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("arg:%s = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("FRONTCTL_TEST_VALUE", "x")
	t.Setenv("FRONTCTL_TEST_EMPTY", "")

	src := EnvSource{Prefix: "FRONTCTL_TEST_"}
	if v, ok := src.Lookup(context.Background(), "VALUE"); !ok || v != "x" {
		t.Errorf("VALUE = %v, %v", v, ok)
	}
	if v, ok := src.Lookup(context.Background(), "EMPTY"); !ok || v != "" {
		t.Errorf("EMPTY = %v, %v; want present empty", v, ok)
	}

	restricted := EnvSource{Prefix: "FRONTCTL_TEST_", Allow: []string{"EMPTY"}}
	if _, ok := restricted.Lookup(context.Background(), "VALUE"); ok {
		t.Error("VALUE visible despite allow list")
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(time.Minute)
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	s, created := store.Open("")
	if !created || s.ID() == "" {
		t.Fatalf("Open(\"\") = %q, %v; want new session", s.ID(), created)
	}
	s.Set("user", "ada")

	again, created := store.Open(s.ID())
	if created {
		t.Fatal("Open(existing) created a new session")
	}
	if v, ok := again.Lookup(context.Background(), "user"); !ok || v != "ada" {
		t.Errorf("user = %v, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if _, ok := s.Lookup(context.Background(), "user"); ok {
		t.Error("expired session still serves values")
	}

	fresh, created := store.Open(s.ID())
	if !created || fresh.ID() == s.ID() {
		t.Error("Open(expired) did not create a new session")
	}
}

func TestSessionStore_ResumeIsLazy(t *testing.T) {
	store := NewSessionStore(time.Minute)
	ctx := context.Background()

	var created []string
	pending := store.Resume("unknown", func(s *Session) { created = append(created, s.ID()) })
	if pending.ID() != "" || store.Len() != 0 {
		t.Fatalf("Resume(unknown) ID = %q, Len() = %d; want pending and empty store", pending.ID(), store.Len())
	}
	if _, ok := pending.Lookup(ctx, "user"); ok {
		t.Error("pending session serves values")
	}
	pending.Delete("user")
	if pending.Values() != nil || store.Len() != 0 {
		t.Error("reading a pending session created it")
	}

	pending.Set("user", "ada")
	pending.Set("role", "admin")
	if len(created) != 1 || created[0] == "" || created[0] != pending.ID() {
		t.Fatalf("onCreate calls = %q, want one with %q", created, pending.ID())
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	resumed := store.Resume(pending.ID(), func(*Session) { t.Error("onCreate called for a live session") })
	if v, ok := resumed.Lookup(ctx, "user"); !ok || v != "ada" {
		t.Errorf("user = %v, %v", v, ok)
	}
}

func TestSessionStore_Limit(t *testing.T) {
	store := NewSessionStore(time.Minute, WithMaxSessions(2))
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	first, _ := store.Open("")
	now = now.Add(time.Second)
	store.Open("")
	now = now.Add(time.Second)
	third, _ := store.Open("")

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, created := store.Open(first.ID()); !created {
		t.Error("least recently used session survived eviction")
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if _, created := store.Open(third.ID()); created {
		t.Error("newest session was evicted")
	}
}

func TestSessionFromContext(t *testing.T) {
	store := NewSessionStore(0)
	s, _ := store.Open("")
	ctx := WithSources(context.Background(), Sources{KindSession: s})

	if got := SessionFromContext(ctx); got != s {
		t.Errorf("SessionFromContext() = %v, want %v", got, s)
	}
	if SessionFromContext(context.Background()) != nil {
		t.Error("SessionFromContext(empty) != nil")
	}
}

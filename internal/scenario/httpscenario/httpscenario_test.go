package httpscenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
	"github.com/torosent/loadsurge/internal/scenario"
)

type apiServer struct {
	*httptest.Server
	mu      sync.Mutex
	calls   []string
	bodies  []string
	authz   []string
	session []string
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	api := &apiServer{}
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		defer api.mu.Unlock()
		api.calls = append(api.calls, r.Method+" "+r.URL.Path)
		api.bodies = append(api.bodies, string(body))
		api.authz = append(api.authz, r.Header.Get("Authorization"))
		api.session = append(api.session, r.Header.Get("X-Session-Id"))
	}
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"token":"tok-%s"}}`, r.Header.Get("X-Session-Id"))
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func newAdapter(t *testing.T, opts map[string]any) *Adapter {
	t.Helper()
	adapter := New().(*Adapter)
	env := scenario.Env{
		WorkerID:            1,
		Options:             opts,
		RandomNumberBetween: func(low, high int) int { return low },
		Log:                 func(string) {},
	}
	if err := adapter.Init(context.Background(), env); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return adapter
}

func TestInitValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    map[string]any
		wantErr string
	}{
		{name: "missing base url", opts: map[string]any{}, wantErr: "base_url option is required"},
		{name: "relative base url", opts: map[string]any{"base_url": "/api"}, wantErr: "invalid base_url"},
		{name: "bad request entry", opts: map[string]any{"base_url": "http://x", "requests": []any{"GET /a extra"}}, wantErr: "invalid request"},
		{name: "bad timeout", opts: map[string]any{"base_url": "http://x", "timeout": "later"}, wantErr: "invalid duration"},
		{name: "bad token regex", opts: map[string]any{"base_url": "http://x", "token_regex": "(["}, wantErr: "invalid token_regex"},
		{name: "defaults", opts: map[string]any{"base_url": "http://x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Init(context.Background(), scenario.Env{Options: tt.opts})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		raw  string
		want Request
	}{
		{raw: "/items", want: Request{Method: http.MethodGet, Path: "/items"}},
		{raw: "post /items", want: Request{Method: http.MethodPost, Path: "/items"}},
		{raw: "  DELETE   /items/1 ", want: Request{Method: http.MethodDelete, Path: "/items/1"}},
	}
	for _, tt := range tests {
		got, err := parseRequest(tt.raw)
		if err != nil {
			t.Fatalf("parseRequest(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("parseRequest(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
	if _, err := parseRequest(""); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestSessionLifecycle(t *testing.T) {
	api := newAPIServer(t)
	adapter := newAdapter(t, map[string]any{
		"base_url":    api.URL,
		"login_body":  `{"user":"{{session}}"}`,
		"token_path":  "data.token",
		"requests":    "GET /items,POST /broken",
		"logout_path": "/logout",
	})

	ctx := context.Background()
	handle, err := adapter.Connect(ctx, "abc")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := adapter.Interact(ctx, handle); err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if err := adapter.Close(ctx, handle); err != nil {
		t.Fatalf("Close: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	wantCalls := []string{"POST /login", "GET /items", "DELETE /logout"}
	if strings.Join(api.calls, ",") != strings.Join(wantCalls, ",") {
		t.Fatalf("calls = %v, want %v", api.calls, wantCalls)
	}
	if api.bodies[0] != `{"user":"abc"}` {
		t.Fatalf("login body = %q", api.bodies[0])
	}
	if api.authz[0] != "" {
		t.Fatalf("login must not carry a token, got %q", api.authz[0])
	}
	for i := 1; i < len(api.authz); i++ {
		if api.authz[i] != "Bearer tok-abc" {
			t.Fatalf("call %d Authorization = %q, want %q", i, api.authz[i], "Bearer tok-abc")
		}
	}
	for i, id := range api.session {
		if id != "abc" {
			t.Fatalf("call %d X-Session-Id = %q", i, id)
		}
	}
}

func TestInteractStatusError(t *testing.T) {
	api := newAPIServer(t)
	adapter := newAdapter(t, map[string]any{
		"base_url":   api.URL,
		"token_path": "data.token",
		"requests":   []any{"POST /broken"},
	})

	handle, err := adapter.Connect(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	err = adapter.Interact(context.Background(), handle)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Op != "request" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
	if !strings.Contains(statusErr.Body, "backend unavailable") {
		t.Fatalf("expected body snippet, got %q", statusErr.Body)
	}
}

func TestConnectMissingToken(t *testing.T) {
	api := newAPIServer(t)
	adapter := newAdapter(t, map[string]any{
		"base_url":   api.URL,
		"token_path": "missing.path",
	})
	_, err := adapter.Connect(context.Background(), "s1")
	if err == nil || !strings.Contains(err.Error(), "no token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestCloseWithoutLogoutPath(t *testing.T) {
	api := newAPIServer(t)
	adapter := newAdapter(t, map[string]any{"base_url": api.URL, "token_path": "data.token"})
	handle, err := adapter.Connect(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := adapter.Close(context.Background(), handle); err != nil {
		t.Fatalf("Close: %v", err)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) != 1 {
		t.Fatalf("expected only the login call, got %v", api.calls)
	}
}

func TestRequestTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"token":"t"}`))
	}))
	defer slow.Close()

	adapter := newAdapter(t, map[string]any{"base_url": slow.URL, "timeout": "20ms"})
	if _, err := adapter.Connect(context.Background(), "s1"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Op: "login", StatusCode: 401}
	if err.Error() != "login: unexpected status 401" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	err.Body = "denied"
	if err.Error() != "login: unexpected status 401: denied" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestStatusErrorBreakdownLabel(t *testing.T) {
	err := fmt.Errorf("interact: %w", &StatusError{Op: "request", StatusCode: 503})
	if got := metrics.ErrorName(err); got != "HTTP 503" {
		t.Fatalf("ErrorName() = %q, want HTTP 503", got)
	}
}

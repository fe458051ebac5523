package wsscenario

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gorilla "github.com/gorilla/websocket"

	"github.com/torosent/loadsurge/internal/scenario"
)

type echoServer struct {
	*httptest.Server
	mu       sync.Mutex
	sessions []string
	received []string
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	es := &echoServer{}
	upgrader := gorilla.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	es.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		es.mu.Lock()
		es.sessions = append(es.sessions, r.Header.Get("X-Session-Id"))
		es.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			es.mu.Lock()
			es.received = append(es.received, string(data))
			es.mu.Unlock()
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(es.Close)
	return es
}

func (es *echoServer) url() string {
	return "ws" + strings.TrimPrefix(es.URL, "http")
}

func testEnv(opts map[string]any, logs *[]string) scenario.Env {
	return scenario.Env{
		WorkerID:            1,
		Options:             opts,
		RandomNumberBetween: func(low, high int) int { return high - 1 },
		Log:                 func(text string) { *logs = append(*logs, text) },
	}
}

func TestInitValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    map[string]any
		wantErr string
	}{
		{name: "missing url", opts: map[string]any{}, wantErr: "url option is required"},
		{name: "http url", opts: map[string]any{"url": "http://example.com"}, wantErr: "ws:// or wss://"},
		{name: "bad timeout", opts: map[string]any{"url": "ws://x", "read_timeout": "soon"}, wantErr: "invalid duration"},
		{name: "valid", opts: map[string]any{"url": "ws://x", "messages": "a,b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs []string
			err := New().Init(context.Background(), testEnv(tt.opts, &logs))
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

func TestSessionLifecycle(t *testing.T) {
	server := newEchoServer(t)
	var logs []string
	adapter := New().(*Adapter)
	opts := map[string]any{"url": server.url(), "messages": []any{"first", "second"}}
	if err := adapter.Init(context.Background(), testEnv(opts, &logs)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx := context.Background()
	handle, err := adapter.Connect(ctx, "session-1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := adapter.Interact(ctx, handle); err != nil {
			t.Fatalf("Interact %d: %v", i, err)
		}
	}
	if err := adapter.Close(ctx, handle); err != nil {
		t.Fatalf("Close: %v", err)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.sessions) != 1 || server.sessions[0] != "session-1" {
		t.Fatalf("session header = %v, want [session-1]", server.sessions)
	}
	if len(server.received) != 3 {
		t.Fatalf("server received %d messages, want 3", len(server.received))
	}
	for _, msg := range server.received {
		if msg != "second" {
			t.Fatalf("expected the randomly chosen message %q, got %q", "second", msg)
		}
	}

	snap := adapter.Metrics()
	if snap.Connections != 1 || snap.Open != 0 || snap.MessagesSent != 3 || snap.MessagesReceived != 3 {
		t.Fatalf("unexpected metrics: %s", snap)
	}
	if len(logs) != 1 || !strings.HasPrefix(logs[0], "WebSocket traffic:") {
		t.Fatalf("expected one traffic summary log, got %v", logs)
	}
}

func TestConnectFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	var logs []string
	adapter := New()
	opts := map[string]any{"url": "ws" + strings.TrimPrefix(server.URL, "http")}
	if err := adapter.Init(context.Background(), testEnv(opts, &logs)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := adapter.Connect(context.Background(), "s"); err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected dial failure with status 403, got %v", err)
	}
}

func TestWrongHandle(t *testing.T) {
	adapter := New()
	if err := adapter.Interact(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for foreign handle")
	}
	if err := adapter.Close(context.Background(), 42); err == nil {
		t.Fatal("expected error for foreign handle")
	}
}

// Package wsscenario loads a WebSocket service: every session is one
// connection, and every interaction sends a message and waits for the reply.
package wsscenario

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/torosent/loadsurge/internal/clientmetrics"
	"github.com/torosent/loadsurge/internal/scenario"
	"github.com/torosent/loadsurge/internal/tracing"
	"github.com/torosent/loadsurge/internal/websocket"
)

// Name is the registry name of the adapter.
const Name = "websocket"

const defaultSessionHeader = "X-Session-Id"

// Adapter opens one WebSocket per session. Options:
//
//	url                 ws:// or wss:// endpoint (required)
//	messages            list (or comma separated) of text messages, default ["ping"]
//	headers             extra handshake headers
//	session_header      header carrying the session id, default X-Session-Id
//	read_timeout        reply deadline per interaction
//	write_timeout       send deadline per interaction
//	handshake_timeout   dial deadline
type Adapter struct {
	url              string
	messages         []string
	headers          http.Header
	sessionHeader    string
	readTimeout      time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration

	env     scenario.Env
	metrics *clientmetrics.ClientMetrics
}

type session struct {
	id     string
	client *websocket.Client
}

// New returns an uninitialised adapter; suitable as a scenario.Factory.
func New() scenario.Adapter {
	return &Adapter{metrics: clientmetrics.New()}
}

func (a *Adapter) Init(_ context.Context, env scenario.Env) error {
	a.env = env
	opts := env.Options

	a.url = scenario.StringOption(opts, "url", "")
	if a.url == "" {
		return fmt.Errorf("websocket scenario: url option is required")
	}
	if !strings.HasPrefix(a.url, "ws://") && !strings.HasPrefix(a.url, "wss://") {
		return fmt.Errorf("websocket scenario: url must use ws:// or wss://, got %q", a.url)
	}

	a.messages = scenario.StringSliceOption(opts, "messages")
	if len(a.messages) == 0 {
		a.messages = []string{"ping"}
	}

	a.headers = make(http.Header)
	for k, v := range scenario.StringMapOption(opts, "headers") {
		a.headers.Set(k, v)
	}
	a.sessionHeader = scenario.StringOption(opts, "session_header", defaultSessionHeader)

	var err error
	if a.readTimeout, err = scenario.DurationOption(opts, "read_timeout", 30*time.Second); err != nil {
		return fmt.Errorf("websocket scenario: %w", err)
	}
	if a.writeTimeout, err = scenario.DurationOption(opts, "write_timeout", 10*time.Second); err != nil {
		return fmt.Errorf("websocket scenario: %w", err)
	}
	if a.handshakeTimeout, err = scenario.DurationOption(opts, "handshake_timeout", 30*time.Second); err != nil {
		return fmt.Errorf("websocket scenario: %w", err)
	}
	return nil
}

func (a *Adapter) Connect(ctx context.Context, sessionID string) (scenario.Handle, error) {
	headers := a.headers.Clone()
	if a.sessionHeader != "" {
		headers.Set(a.sessionHeader, sessionID)
	}
	tracing.InjectHTTPHeaders(ctx, headers)

	client := websocket.NewClient(websocket.Config{
		URL:              a.url,
		Headers:          headers,
		HandshakeTimeout: a.handshakeTimeout,
		ReadTimeout:      a.readTimeout,
		WriteTimeout:     a.writeTimeout,
		Metrics:          a.metrics,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return &session{id: sessionID, client: client}, nil
}

// Interact sends one of the configured messages, chosen with the worker's
// random stream, and waits for any reply.
func (a *Adapter) Interact(ctx context.Context, handle scenario.Handle) error {
	s, ok := handle.(*session)
	if !ok {
		return fmt.Errorf("websocket scenario: unexpected handle %T", handle)
	}
	text := a.messages[0]
	if len(a.messages) > 1 {
		text = a.messages[a.env.RandomNumberBetween(0, len(a.messages))]
	}
	_, err := s.client.Exchange(ctx, websocket.Message{Type: gorilla.TextMessage, Data: []byte(text)})
	return err
}

func (a *Adapter) Close(_ context.Context, handle scenario.Handle) error {
	s, ok := handle.(*session)
	if !ok {
		return fmt.Errorf("websocket scenario: unexpected handle %T", handle)
	}
	err := s.client.Close()
	if snap := a.metrics.Snapshot(); snap.Open == 0 && a.env.Log != nil {
		a.env.Log("WebSocket traffic: " + snap.String())
	}
	return err
}

// Metrics exposes the traffic counters shared by all sessions.
func (a *Adapter) Metrics() clientmetrics.Snapshot {
	return a.metrics.Snapshot()
}

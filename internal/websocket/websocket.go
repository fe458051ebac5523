// Package websocket is a small WebSocket client used by the websocket
// scenario: one Client per session.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/loadsurge/internal/clientmetrics"
)

// Message represents a WebSocket message to send or receive.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Config configures the WebSocket client behavior.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
	// Metrics receives traffic counters. Optional; usually shared by all
	// clients of one adapter.
	Metrics *clientmetrics.ClientMetrics
}

// Client represents a WebSocket client connection.
type Client struct {
	url          string
	headers      http.Header
	dialer       *websocket.Dialer
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxSize      int64
	metrics      *clientmetrics.ClientMetrics

	mu       sync.Mutex // guards conn and writes
	conn     *websocket.Conn
	exchange sync.Mutex // serializes request/reply pairs
}

// NewClient creates a new WebSocket client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 1024 * 1024 // 1MB default
	}
	if cfg.Metrics == nil {
		cfg.Metrics = clientmetrics.New()
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	return &Client{
		url:          cfg.URL,
		headers:      cfg.Headers,
		dialer:       dialer,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxSize:      cfg.MaxMessageSize,
		metrics:      cfg.Metrics,
	}
}

// Connect establishes a WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		c.metrics.IncrementErrors()
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(c.maxSize)

	c.conn = conn
	c.metrics.MarkConnected()
	return nil
}

// SendMessage sends a message over the WebSocket connection.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	if deadline, ok := c.deadline(ctx, c.writeTimeout); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
		c.metrics.IncrementErrors()
		return fmt.Errorf("write message: %w", err)
	}

	c.metrics.IncrementSent(int64(len(msg.Data)))
	return nil
}

// ReceiveMessage reads a message from the WebSocket connection.
// Returns an error if the connection is closed or times out.
func (c *Client) ReceiveMessage(ctx context.Context) (Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return Message{}, fmt.Errorf("not connected")
	}

	if deadline, ok := c.deadline(ctx, c.readTimeout); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		c.metrics.IncrementErrors()
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	c.metrics.IncrementReceived(int64(len(data)))
	return Message{Type: msgType, Data: data}, nil
}

// Exchange sends msg and waits for the next incoming message. Concurrent
// exchanges on one client are serialized so replies are not mixed up.
func (c *Client) Exchange(ctx context.Context, msg Message) (Message, error) {
	c.exchange.Lock()
	defer c.exchange.Unlock()

	if err := c.SendMessage(ctx, msg); err != nil {
		return Message{}, err
	}
	return c.ReceiveMessage(ctx)
}

// Close closes the WebSocket connection gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Send close frame
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)

	closeErr := c.conn.Close()
	c.conn = nil
	c.metrics.MarkDisconnected()

	if err != nil {
		return err
	}

	return closeErr
}

// deadline picks the earlier of the context deadline and now+timeout.
func (c *Client) deadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline, !deadline.IsZero()
}

// Package clientmetrics counts protocol traffic across all sessions of a
// scenario adapter.
package clientmetrics

import (
	"fmt"
	"sync"
)

// ClientMetrics tracks connection and message statistics. One instance is
// shared by every connection an adapter opens.
type ClientMetrics struct {
	mu           sync.Mutex
	connections  int64
	open         int64
	messagesSent int64
	messagesRecv int64
	bytesSent    int64
	bytesRecv    int64
	errors       int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{}
}

// MarkConnected records a successfully established connection.
func (m *ClientMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections++
	m.open++
}

// MarkDisconnected records a connection going away and returns how many
// remain open.
func (m *ClientMetrics) MarkDisconnected() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open > 0 {
		m.open--
	}
	return m.open
}

// IncrementSent increments messages sent and bytes sent counters.
func (m *ClientMetrics) IncrementSent(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSent++
	m.bytesSent += bytes
}

// IncrementReceived increments messages received and bytes received counters.
func (m *ClientMetrics) IncrementReceived(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesRecv++
	m.bytesRecv += bytes
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Connections      int64
	Open             int64
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64
	Errors           int64
}

func (s Snapshot) String() string {
	return fmt.Sprintf("connections=%d open=%d sent=%d (%d bytes) received=%d (%d bytes) errors=%d",
		s.Connections, s.Open, s.MessagesSent, s.BytesSent, s.MessagesReceived, s.BytesReceived, s.Errors)
}

// Snapshot returns a consistent snapshot of all metrics.
func (m *ClientMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Connections:      m.connections,
		Open:             m.open,
		MessagesSent:     m.messagesSent,
		MessagesReceived: m.messagesRecv,
		BytesSent:        m.bytesSent,
		BytesReceived:    m.bytesRecv,
		Errors:           m.errors,
	}
}

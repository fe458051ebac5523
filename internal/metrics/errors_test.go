package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type HandshakeFailedError struct{}

func (HandshakeFailedError) Error() string { return "handshake failed" }

func TestErrorName(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("connect: %w", context.DeadlineExceeded), want: "Timeout"},
		{name: "canceled", err: context.Canceled, want: "Canceled"},
		{name: "eof", err: fmt.Errorf("read: %w", io.EOF), want: "Connection closed"},
		{name: "http status", err: fmt.Errorf("request: %w", &statusErr{code: 503}), want: "HTTP 503"},
		{name: "net timeout", err: &net.OpError{Op: "dial", Err: timeoutErr{}}, want: "Timeout"},
		{name: "net error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: "Network error"},
		{name: "plain", err: errors.New("boom"), want: "Scenario error"},
		{name: "typed", err: fmt.Errorf("ws: %w", HandshakeFailedError{}), want: "Handshake Failed Error (metrics)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorName(tt.err); got != tt.want {
				t.Errorf("ErrorName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Unknown error"},
		{"*errors.errorString", "Scenario error"},
		{"*websocket.CloseError", "Close Error (websocket)"},
		{"*github.com/acme/pkg.HTTPTimeout", "HTTP Timeout (pkg)"},
		{"main.oops", "Oops"},
		{"*runner.ConnectError", "Connect Error (runner)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := typeLabel(tt.in); got != tt.want {
				t.Errorf("typeLabel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

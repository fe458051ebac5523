package runner

import (
	"fmt"
	"strings"
)

// ConnectError reports a session that failed to open.
type ConnectError struct {
	SessionID string
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect session %s: %v", e.SessionID, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// InteractError reports a failed interaction on an open session.
type InteractError struct {
	SessionID string
	Err       error
}

func (e *InteractError) Error() string {
	return fmt.Sprintf("interact with session %s: %v", e.SessionID, e.Err)
}

func (e *InteractError) Unwrap() error { return e.Err }

// DisconnectError reports a session whose close call failed. The session is
// still considered closed.
type DisconnectError struct {
	SessionID string
	Err       error
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("close session %s: %v", e.SessionID, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// ConfigError aggregates run configuration problems.
type ConfigError struct {
	Issues []string
}

func (e *ConfigError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid run configuration"
	}
	return "invalid run configuration: " + strings.Join(e.Issues, "; ")
}

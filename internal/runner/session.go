package runner

import (
	"fmt"
	"time"

	"github.com/torosent/loadsurge/internal/scenario"
)

// State is a session lifecycle state.
type State int

const (
	StatePending State = iota
	StateConnecting
	StateActive
	StateDisconnecting
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

var transitions = map[State][]State{
	StatePending:       {StateConnecting},
	StateConnecting:    {StateActive, StateFailed},
	StateActive:        {StateDisconnecting},
	StateDisconnecting: {StateClosed},
}

// Session is one simulated client. It is owned by the worker that created it
// and only mutated on that worker's event loop.
type Session struct {
	ID        string
	Index     int // 1-based ramp-up position
	State     State
	CreatedAt time.Time
	Failures  int
	Handle    scenario.Handle
}

func newSession(id string, index int, now time.Time) *Session {
	return &Session{ID: id, Index: index, State: StatePending, CreatedAt: now}
}

// transition moves the session forward. States never go backwards.
func (s *Session) transition(to State) error {
	for _, allowed := range transitions[s.State] {
		if allowed == to {
			s.State = to
			return nil
		}
	}
	return fmt.Errorf("session %s: invalid transition %s -> %s", s.ID, s.State, to)
}

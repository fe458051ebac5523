// Package ipc carries worker reports to the controller as line-delimited JSON.
//
// Every line is one Message. INFO messages carry a metrics snapshot, both as
// a compact positional payload
//
//	[workerId, pid, "<opened> (<closed>)", interactions, errors, "<memMB>"]
//
// and as the full snapshot under "stats". LOG messages carry one line of text.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/torosent/loadsurge/internal/metrics"
)

// Type distinguishes message kinds.
type Type string

const (
	TypeInfo Type = "INFO"
	TypeLog  Type = "LOG"
)

// Message is one report from a worker.
type Message struct {
	WorkerID int               `json:"workerId"`
	Type     Type              `json:"type"`
	Payload  json.RawMessage   `json:"payload"`
	Stats    *metrics.Snapshot `json:"stats,omitempty"`
}

// NewInfo builds an INFO message from a snapshot.
func NewInfo(snap metrics.Snapshot) (Message, error) {
	payload, err := json.Marshal(InfoPayload(snap))
	if err != nil {
		return Message{}, fmt.Errorf("encode info payload: %w", err)
	}
	return Message{WorkerID: snap.WorkerID, Type: TypeInfo, Payload: payload, Stats: &snap}, nil
}

// NewLog builds a LOG message.
func NewLog(workerID int, text string) (Message, error) {
	payload, err := json.Marshal(text)
	if err != nil {
		return Message{}, fmt.Errorf("encode log payload: %w", err)
	}
	return Message{WorkerID: workerID, Type: TypeLog, Payload: payload}, nil
}

// InfoPayload renders the positional INFO payload.
func InfoPayload(snap metrics.Snapshot) []any {
	return []any{
		snap.WorkerID,
		snap.PID,
		fmt.Sprintf("%d (%d)", snap.Opened, snap.Closed),
		snap.Interactions,
		snap.Errors,
		fmt.Sprintf("%.2f", snap.MemoryMB),
	}
}

// Text returns the payload of a LOG message.
func (m Message) Text() (string, error) {
	if m.Type != TypeLog {
		return "", fmt.Errorf("message type %s has no text payload", m.Type)
	}
	var text string
	if err := json.Unmarshal(m.Payload, &text); err != nil {
		return "", fmt.Errorf("decode log payload: %w", err)
	}
	return text, nil
}

// Snapshot returns the snapshot carried by an INFO message. When the sender
// omitted "stats" the positional payload is parsed instead, which recovers
// the counters it includes.
func (m Message) Snapshot() (metrics.Snapshot, error) {
	if m.Type != TypeInfo {
		return metrics.Snapshot{}, fmt.Errorf("message type %s has no snapshot", m.Type)
	}
	if m.Stats != nil {
		return *m.Stats, nil
	}
	return parseInfoPayload(m.WorkerID, m.Payload)
}

func parseInfoPayload(workerID int, payload json.RawMessage) (metrics.Snapshot, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("decode info payload: %w", err)
	}
	if len(fields) != 6 {
		return metrics.Snapshot{}, fmt.Errorf("info payload has %d fields, want 6", len(fields))
	}

	snap := metrics.Snapshot{WorkerID: workerID}
	var sessions, memory string
	targets := []any{&snap.WorkerID, &snap.PID, &sessions, &snap.Interactions, &snap.Errors, &memory}
	for i, target := range targets {
		if err := json.Unmarshal(fields[i], target); err != nil {
			return metrics.Snapshot{}, fmt.Errorf("decode info field %d: %w", i, err)
		}
	}
	if _, err := fmt.Sscanf(sessions, "%d (%d)", &snap.Opened, &snap.Closed); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("decode session counts %q: %w", sessions, err)
	}
	if _, err := fmt.Sscanf(memory, "%g", &snap.MemoryMB); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("decode memory %q: %w", memory, err)
	}
	snap.Active = int(snap.Opened - snap.Closed)
	return snap, nil
}

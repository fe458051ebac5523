package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
)

func sampleSnapshot() metrics.Snapshot {
	return metrics.Snapshot{
		WorkerID:     2,
		PID:          1234,
		Started:      6,
		Active:       3,
		Opened:       4,
		Closed:       1,
		FailedToOpen: 2,
		Interactions: 17,
		Errors:       2,
		MemoryMB:     41.256,
		Timestamp:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInfoWireFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 2)
	if err := w.ReportSnapshot(sampleSnapshot()); err != nil {
		t.Fatalf("ReportSnapshot() error = %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if got := string(raw["type"]); got != `"INFO"` {
		t.Fatalf("type = %s", got)
	}
	if got := string(raw["workerId"]); got != "2" {
		t.Fatalf("workerId = %s", got)
	}
	want := `[2,1234,"4 (1)",17,2,"41.26"]`
	if got := string(raw["payload"]); got != want {
		t.Fatalf("payload = %s, want %s", got, want)
	}
	if _, ok := raw["stats"]; !ok {
		t.Fatal("missing stats")
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("messages must be newline terminated")
	}
}

func TestLogWireFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, 7).ReportLog(`said "hi"`); err != nil {
		t.Fatalf("ReportLog() error = %v", err)
	}
	want := `{"workerId":7,"type":"LOG","payload":"said \"hi\""}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 2)
	_ = w.ReportLog("starting")
	_ = w.ReportSnapshot(sampleSnapshot())
	buf.WriteString("\n")
	_ = w.ReportLog("done")

	r := NewReader(&buf)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if text, _ := first.Text(); text != "starting" {
		t.Fatalf("first text = %q", text)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	snap, err := second.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Opened != 4 || snap.FailedToOpen != 2 || !snap.Timestamp.Equal(sampleSnapshot().Timestamp) {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}

	third, err := r.Next()
	if err != nil || third.Type != TypeLog {
		t.Fatalf("third = %+v, %v", third, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderSkipsGarbage(t *testing.T) {
	input := "not json\n" + `{"workerId":1,"type":"PING","payload":null}` + "\n" + `{"workerId":1,"type":"LOG","payload":"ok"}` + "\n"
	r := NewReader(strings.NewReader(input))

	_, err := r.Next()
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Line != "not json" {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := r.Next(); err == nil || !strings.Contains(err.Error(), "PING") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	msg, err := r.Next()
	if err != nil {
		t.Fatalf("reader should recover, got %v", err)
	}
	if text, _ := msg.Text(); text != "ok" {
		t.Fatalf("text = %q", text)
	}
}

func TestSnapshotFromPositionalPayload(t *testing.T) {
	line := `{"workerId":5,"type":"INFO","payload":[5,99,"10 (3)",42,1,"12.50"]}`
	msg, err := NewReader(strings.NewReader(line)).Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	snap, err := msg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	want := metrics.Snapshot{WorkerID: 5, PID: 99, Opened: 10, Closed: 3, Active: 7, Interactions: 42, Errors: 1, MemoryMB: 12.5}
	if snap.WorkerID != want.WorkerID || snap.PID != want.PID || snap.Opened != want.Opened ||
		snap.Closed != want.Closed || snap.Active != want.Active || snap.Interactions != want.Interactions ||
		snap.Errors != want.Errors || snap.MemoryMB != want.MemoryMB {
		t.Fatalf("got %+v, want %+v", snap, want)
	}

	bad := Message{Type: TypeInfo, Payload: json.RawMessage(`[1,2,3]`)}
	if _, err := bad.Snapshot(); err == nil {
		t.Fatal("expected error for short payload")
	}
	if _, err := (Message{Type: TypeLog}).Snapshot(); err == nil {
		t.Fatal("LOG message has no snapshot")
	}
}

func TestWriterConcurrentLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.ReportLog(strings.Repeat("x", 500))
		}()
	}
	wg.Wait()

	r := NewReader(&buf)
	count := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("interleaved output: %v", err)
		}
		count++
	}
	if count != 20 {
		t.Fatalf("read %d messages, want 20", count)
	}
}

func TestChannelReporter(t *testing.T) {
	ch := make(chan Message, 2)
	rep := NewChannelReporter(3, ch)
	_ = rep.ReportLog("hello")
	_ = rep.ReportSnapshot(sampleSnapshot())

	first := <-ch
	if first.WorkerID != 3 || first.Type != TypeLog {
		t.Fatalf("first = %+v", first)
	}
	second := <-ch
	if second.Type != TypeInfo || second.Stats == nil || second.Stats.Interactions != 17 {
		t.Fatalf("second = %+v", second)
	}
}

package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/torosent/loadsurge/internal/metrics"
)

// maxLineSize bounds a single message line.
const maxLineSize = 1 << 20

// Writer encodes messages for one worker, one JSON object per line. It is
// safe for concurrent use and implements the worker's reporter contract.
type Writer struct {
	mu       sync.Mutex
	enc      *json.Encoder
	workerID int
}

func NewWriter(w io.Writer, workerID int) *Writer {
	return &Writer{enc: json.NewEncoder(w), workerID: workerID}
}

func (w *Writer) Send(msg Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(msg); err != nil {
		return fmt.Errorf("write %s message: %w", msg.Type, err)
	}
	return nil
}

func (w *Writer) ReportSnapshot(snap metrics.Snapshot) error {
	msg, err := NewInfo(snap)
	if err != nil {
		return err
	}
	return w.Send(msg)
}

func (w *Writer) ReportLog(text string) error {
	msg, err := NewLog(w.workerID, text)
	if err != nil {
		return err
	}
	return w.Send(msg)
}

// DecodeError reports a line that is not a valid message. Reading may
// continue after it.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reader decodes a stream produced by Writer.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next message, or io.EOF at the end of the stream. Blank
// lines are skipped. A line that is not a valid message yields a
// *DecodeError; the following call continues with the next line. Any other
// error is final.
func (r *Reader) Next() (Message, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return Message{}, &DecodeError{Line: truncate(line, 80), Err: err}
		}
		if msg.Type != TypeInfo && msg.Type != TypeLog {
			return Message{}, &DecodeError{Line: truncate(line, 80), Err: fmt.Errorf("unknown message type %q", msg.Type)}
		}
		return msg, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ChannelReporter delivers messages for an in-process worker over a channel.
// Sends block until the consumer receives, preserving per-worker order.
type ChannelReporter struct {
	workerID int
	out      chan<- Message
}

func NewChannelReporter(workerID int, out chan<- Message) *ChannelReporter {
	return &ChannelReporter{workerID: workerID, out: out}
}

func (c *ChannelReporter) ReportSnapshot(snap metrics.Snapshot) error {
	msg, err := NewInfo(snap)
	if err != nil {
		return err
	}
	c.out <- msg
	return nil
}

func (c *ChannelReporter) ReportLog(text string) error {
	msg, err := NewLog(c.workerID, text)
	if err != nil {
		return err
	}
	c.out <- msg
	return nil
}

package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/loadsurge/internal/ipc"
	"github.com/torosent/loadsurge/internal/runner"
	"github.com/torosent/loadsurge/internal/scenario"
)

// SpecEnv is the environment variable a worker process reads its spec from.
const SpecEnv = "LOADSURGE_WORKER_SPEC"

// ExitStatus describes how a worker ended.
type ExitStatus struct {
	Code   int
	Signal string // set when the process was killed by a signal
	Err    error  // set when the worker could not be run or waited for
}

func (s ExitStatus) Success() bool {
	return s.Code == 0 && s.Err == nil
}

func (s ExitStatus) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("error: %v", s.Err)
	case s.Signal != "":
		return fmt.Sprintf("killed by %s (code %d)", s.Signal, s.Code)
	default:
		return fmt.Sprintf("exit code %d", s.Code)
	}
}

// Handle is a running worker.
type Handle interface {
	PID() int
	// Messages yields the worker's reports in order and is closed when the
	// worker stops producing output.
	Messages() <-chan ipc.Message
	// Wait blocks until the worker has exited. Call it after Messages is
	// drained.
	Wait() ExitStatus
}

// Spawner starts workers.
type Spawner interface {
	Spawn(ctx context.Context, spec runner.Spec) (Handle, error)
}

// ProcessSpawner runs every worker as a child process of the current binary.
// Cancelling the spawn context interrupts the child, which then ramps down;
// a child still alive KillDelay later is killed.
type ProcessSpawner struct {
	Path      string   // executable; defaults to os.Executable()
	Args      []string // arguments selecting worker mode; defaults to {"worker"}
	Env       []string // extra environment
	KillDelay time.Duration
}

func (p *ProcessSpawner) Spawn(ctx context.Context, spec runner.Spec) (Handle, error) {
	path := p.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}
	args := p.Args
	if args == nil {
		args = []string{"worker"}
	}
	encoded, err := spec.Encode()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(append(os.Environ(), p.Env...), SpecEnv+"="+encoded)
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = p.KillDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = time.Minute
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d stdout: %w", spec.ID, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d stderr: %w", spec.ID, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %d: %w", spec.ID, err)
	}

	h := &processHandle{
		cmd:      cmd,
		workerID: spec.ID,
		messages: make(chan ipc.Message, 64),
		done:     make(chan struct{}),
	}
	go h.pump(stdout, stderr)
	return h, nil
}

type processHandle struct {
	cmd      *exec.Cmd
	workerID int
	messages chan ipc.Message
	done     chan struct{}
	status   ExitStatus
}

func (h *processHandle) PID() int                     { return h.cmd.Process.Pid }
func (h *processHandle) Messages() <-chan ipc.Message { return h.messages }

func (h *processHandle) Wait() ExitStatus {
	<-h.done
	return h.status
}

// pump forwards stdout messages and stderr lines, then reaps the process.
// Pipes must be fully read before cmd.Wait.
func (h *processHandle) pump(stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r := ipc.NewReader(stdout)
		for {
			msg, err := r.Next()
			var decodeErr *ipc.DecodeError
			switch {
			case err == nil:
				h.messages <- msg
			case errors.As(err, &decodeErr):
				h.log(decodeErr.Error())
			case errors.Is(err, io.EOF):
				return
			default:
				h.log(fmt.Sprintf("read worker output: %v", err))
				_, _ = io.Copy(io.Discard, stdout)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				h.log(line)
			}
		}
		_, _ = io.Copy(io.Discard, stderr)
	}()
	wg.Wait()
	close(h.messages)

	err := h.cmd.Wait()
	h.status = exitStatus(h.cmd.ProcessState, err)
	close(h.done)
}

func (h *processHandle) log(text string) {
	msg, err := ipc.NewLog(h.workerID, text)
	if err == nil {
		h.messages <- msg
	}
}

func exitStatus(state *os.ProcessState, err error) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1, Err: err}
	}
	status := ExitStatus{Code: state.ExitCode()}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = ws.Signal().String()
		status.Code = 128 + int(ws.Signal())
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		status.Err = err
	}
	return status
}

// InProcessSpawner runs every worker as a goroutine of the current process,
// reporting over a channel.
type InProcessSpawner struct {
	Adapters *scenario.Registry
	Tracer   trace.Tracer
}

func (s *InProcessSpawner) Spawn(ctx context.Context, spec runner.Spec) (Handle, error) {
	if s.Adapters == nil {
		return nil, errors.New("in-process spawner: no scenario registry")
	}
	h := &inProcessHandle{
		messages: make(chan ipc.Message, 64),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer close(h.messages)
		defer func() {
			if r := recover(); r != nil {
				h.status = ExitStatus{Code: 1, Err: fmt.Errorf("worker %d panicked: %v", spec.ID, r)}
			}
		}()
		code := runner.Execute(ctx, spec, s.Adapters, ipc.NewChannelReporter(spec.ID, h.messages), s.Tracer)
		h.status = ExitStatus{Code: code}
	}()
	return h, nil
}

type inProcessHandle struct {
	messages chan ipc.Message
	done     chan struct{}
	status   ExitStatus
}

func (h *inProcessHandle) PID() int                     { return os.Getpid() }
func (h *inProcessHandle) Messages() <-chan ipc.Message { return h.messages }

func (h *inProcessHandle) Wait() ExitStatus {
	<-h.done
	return h.status
}

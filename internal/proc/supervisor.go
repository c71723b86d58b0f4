// Package proc owns the lifecycle of one live child process per task:
// spawn, stream capture, exit observation, termination.
package proc

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"tequio/internal/readiness"
	"tequio/pkg/models"
)

// maxLineSize bounds a single output event. Longer lines are delivered in
// chunks of this size; the readiness matcher still sees them as one line.
const maxLineSize = 64 * 1024

// EventKind identifies the type of a supervisor event.
type EventKind string

const (
	// EventOutput carries one line of task output.
	EventOutput EventKind = "output"
	// EventReady signals that the task's ready marker was observed.
	EventReady EventKind = "ready"
	// EventExit signals that the task's process has exited.
	EventExit EventKind = "exit"
)

// Event is a message from a supervisor to the orchestrator's loop.
type Event struct {
	Kind    EventKind
	Task    string
	Source  models.OutputSource
	Line    string
	Outcome models.ExitOutcome
}

// Supervisor supervises a single spawned process. It owns the OS process
// handle and both stream readers while the process is alive, and emits
// Output, Ready, and Exit events into the channel handed to Spawn.
type Supervisor struct {
	name    string
	cmd     *exec.Cmd
	matcher *readiness.Matcher
	events  chan<- Event

	// done closes once the process exit has been observed.
	done chan struct{}

	mu         sync.Mutex
	terminated bool
}

// Spawn starts the task's command through the shell interpreter with its
// working directory applied, wires up both output streams, and begins
// supervision. The returned Supervisor has already begun emitting events;
// an error here means the process never started.
//
// The command runs in its own process group so termination can reach any
// children the shell spawns.
func Spawn(def *models.TaskDefinition, events chan<- Event) (*Supervisor, error) {
	cmd := exec.Command("sh", "-c", def.Command)
	if def.WorkDir != "" {
		cmd.Dir = def.WorkDir
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("piping stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %q: %w", def.Command, err)
	}

	s := &Supervisor{
		name:    def.Name,
		cmd:     cmd,
		matcher: readiness.NewMatcher(def.ReadyCheck),
		events:  events,
		done:    make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go s.readStream(stdout, models.SourceStdout, &readers)
	go s.readStream(stderr, models.SourceStderr, &readers)

	go s.wait(&readers)

	return s, nil
}

// Pid returns the process ID of the spawned shell.
func (s *Supervisor) Pid() int {
	return s.cmd.Process.Pid
}

// Done returns a channel that closes once the process exit is observed.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// readStream consumes one output stream until EOF. Each chunk is scanned
// for the ready marker first, then forwarded as an output event, so the
// sink sees the line no later than the orchestrator reacts to readiness.
// A line longer than maxLineSize is emitted as multiple output events; the
// matcher's chunk mode still catches a marker split across them.
func (s *Supervisor) readStream(r io.Reader, source models.OutputSource, readers *sync.WaitGroup) {
	defer readers.Done()

	reader := bufio.NewReaderSize(r, maxLineSize)
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			// Both streams share the matcher; readiness may appear on either.
			s.mu.Lock()
			fired := s.matcher.Feed(string(chunk))
			s.mu.Unlock()

			line := strings.TrimSuffix(string(chunk), "\n")
			line = strings.TrimSuffix(line, "\r")
			s.events <- Event{Kind: EventOutput, Task: s.name, Source: source, Line: line}
			if fired {
				s.events <- Event{Kind: EventReady, Task: s.name}
			}
		}
		switch err {
		case nil, bufio.ErrBufferFull:
			// ErrBufferFull means an over-long line; keep reading it.
		default:
			// EOF or a broken pipe. The stream must drain fully either way
			// or the child can block writing and never exit.
			return
		}
	}
}

// wait blocks until both streams drain and the process exits, then emits
// the exit event and invalidates the process handle.
func (s *Supervisor) wait(readers *sync.WaitGroup) {
	readers.Wait()
	err := s.cmd.Wait()
	close(s.done)

	outcome := models.ExitOutcome{Code: 0, FinishedAt: time.Now()}
	if err != nil {
		outcome.Err = err
		outcome.Code = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			outcome.Code = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				outcome.Signaled = true
			}
		}
	}

	s.events <- Event{Kind: EventExit, Task: s.name, Outcome: outcome}
}

// Terminate asks the process group to exit and escalates to SIGKILL if it
// is still alive after the grace period. Terminating an already-exited
// process is a no-op, and repeated calls are ignored.
func (s *Supervisor) Terminate(grace time.Duration) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	pgid := -s.cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	select {
	case <-s.done:
	case <-time.After(grace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	}
}

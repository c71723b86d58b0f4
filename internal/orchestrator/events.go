// Package orchestrator schedules tasks against the dependency graph and
// supervises their processes through a single-writer event loop.
package orchestrator

import (
	"time"

	"tequio/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskStarted indicates a task's process has spawned.
	EventTaskStarted EventType = "task_started"
	// EventTaskReady indicates a task has signaled readiness.
	EventTaskReady EventType = "task_ready"
	// EventTaskOutput carries one line of task output.
	EventTaskOutput EventType = "task_output"
	// EventTaskSucceeded indicates a task's process exited zero.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskFailed indicates a task failed to spawn or exited nonzero.
	EventTaskFailed EventType = "task_failed"
	// EventTaskKilled indicates a task was terminated during shutdown.
	EventTaskKilled EventType = "task_killed"
	// EventShutdown indicates shutdown has begun.
	EventShutdown EventType = "shutdown"
	// EventRunDone indicates the whole run has finished.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the orchestrator for the output sink: per-task output
// lines plus the lifecycle notifications that drive a status display.
// Events are pushed in occurrence order; per task, output order matches the
// order lines were read from the process.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Task is the name of the related task, if applicable.
	Task string
	// State is the task's state after this event, for lifecycle events.
	State models.TaskState
	// Source is the stream a task_output line came from.
	Source models.OutputSource
	// Line is the raw text of a task_output event.
	Line string
	// Err carries failure detail for task_failed events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Summary reports the terminal (or still-pending) state of every task once
// the run ends.
type Summary struct {
	// States maps task name to its final state.
	States map[string]models.TaskState
	// Outcomes maps task name to its exit outcome, for tasks that spawned.
	Outcomes map[string]models.ExitOutcome
	// ShutdownRequested is true if the run was cut short by a shutdown
	// request rather than running to completion.
	ShutdownRequested bool
}

// Failed returns true if any task failed or never became eligible to start.
// Work cut short by a requested shutdown does not count as failure: neither
// killed tasks nor dependents left pending because no new tasks start once
// shutdown is observed.
func (s Summary) Failed() bool {
	for _, state := range s.States {
		if state == models.StateFailed {
			return true
		}
		if state == models.StatePending && !s.ShutdownRequested {
			return true
		}
	}
	return false
}

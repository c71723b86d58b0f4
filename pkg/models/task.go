// Package models defines the shared data types for tequio tasks.
package models

import "time"

// TaskState represents the current state of a task in a run.
type TaskState string

const (
	// StatePending indicates the task is waiting for its dependencies.
	StatePending TaskState = "pending"
	// StateStarting indicates the task is being spawned.
	StateStarting TaskState = "starting"
	// StateRunning indicates the task's process is alive but not yet ready.
	StateRunning TaskState = "running"
	// StateReady indicates the task has signaled readiness; its process may
	// still be running. Dependents are unblocked by this state, not by exit.
	StateReady TaskState = "ready"
	// StateSucceeded indicates the task's process exited with status zero.
	StateSucceeded TaskState = "succeeded"
	// StateFailed indicates the task failed to spawn or exited nonzero.
	StateFailed TaskState = "failed"
	// StateKilled indicates the task was terminated during shutdown.
	StateKilled TaskState = "killed"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case StatePending, StateStarting, StateRunning, StateReady,
		StateSucceeded, StateFailed, StateKilled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is one the task can never leave.
func (s TaskState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateKilled:
		return true
	default:
		return false
	}
}

// OutputSource identifies which stream a line of task output came from.
type OutputSource string

const (
	// SourceStdout is the task's standard output stream.
	SourceStdout OutputSource = "stdout"
	// SourceStderr is the task's standard error stream.
	SourceStderr OutputSource = "stderr"
)

// TaskDefinition describes one task as declared in the task file.
// Definitions are immutable once loaded.
type TaskDefinition struct {
	// Name is the unique identifier for this task.
	Name string `yaml:"-"`
	// Command is the shell command text executed through the interpreter.
	Command string `yaml:"command"`
	// WorkDir is the working directory for the command. Empty means the
	// runner's current directory.
	WorkDir string `yaml:"work_dir,omitempty"`
	// DependsOn lists task names that must be ready before this task starts.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// ReadyCheck is a substring whose first occurrence in the task's output
	// marks the task ready. Empty means ready immediately on spawn.
	ReadyCheck string `yaml:"ready_check,omitempty"`
}

// ExitOutcome records how a task's process ended.
type ExitOutcome struct {
	// Code is the process exit code. -1 when killed by a signal or when the
	// process never spawned.
	Code int
	// Signaled is true if the process was terminated by a signal.
	Signaled bool
	// Err holds the spawn or wait error, if any.
	Err error
	// FinishedAt is when the exit was observed.
	FinishedAt time.Time
}

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tequio/internal/graph"
	"tequio/internal/pidfile"
	"tequio/internal/proc"
	"tequio/pkg/models"
)

// Handle is the orchestrator's grip on one live process.
type Handle interface {
	Pid() int
	Terminate(grace time.Duration)
}

// Spawner starts a task's process and begins feeding supervisor events into
// the given channel. The default spawner runs real processes via
// internal/proc; tests substitute scripted ones.
type Spawner interface {
	Spawn(def *models.TaskDefinition, events chan<- proc.Event) (Handle, error)
}

// procSpawner is the real-process Spawner.
type procSpawner struct{}

func (procSpawner) Spawn(def *models.TaskDefinition, events chan<- proc.Event) (Handle, error) {
	return proc.Spawn(def, events)
}

// runtimeTask pairs a definition with its mutable run state. The table of
// runtimeTasks is owned exclusively by the orchestrator's loop; nothing
// else reads or writes it while Run is in progress.
type runtimeTask struct {
	def   *models.TaskDefinition
	state models.TaskState
	// everReady is sticky: once readiness is observed it stays true through
	// the task's exit, so dependents unblocked by it are never re-blocked.
	everReady bool
	handle    Handle
	outcome   *models.ExitOutcome
}

// live returns true while the task's process may still emit events.
func (rt *runtimeTask) live() bool {
	switch rt.state {
	case models.StateStarting, models.StateRunning, models.StateReady:
		return true
	default:
		return false
	}
}

// Config contains configuration options for the Orchestrator.
type Config struct {
	// Graph is the validated task graph. Required.
	Graph *graph.Graph
	// GracePeriod bounds graceful termination during shutdown.
	GracePeriod time.Duration
	// Spawner overrides process spawning. Nil means real processes.
	Spawner Spawner
	// PidFile records live pids for crash recovery. Nil disables it.
	PidFile *pidfile.File
	// RunID identifies this run in logs. Empty means a fresh UUID.
	RunID string
	// EventBuffer sizes the sink-facing event channel.
	EventBuffer int
}

// Orchestrator walks the task graph, starts tasks whose dependencies are
// ready, reacts to readiness and exit events, and drives shutdown. All
// state transitions happen on the single goroutine running Run; supervisors
// deliver their events as messages rather than touching shared state.
type Orchestrator struct {
	graph   *graph.Graph
	grace   time.Duration
	spawner Spawner
	pids    *pidfile.File
	runID   string
	log     *logrus.Entry

	tasks map[string]*runtimeTask
	// order caches the topological sort for deterministic scheduling passes.
	order []string

	// procEvents receives messages from all supervisors.
	procEvents chan proc.Event
	// events is the sink-facing stream; closed when the run ends.
	events chan Event

	// shutdownReq closes when shutdown is requested, via RequestShutdown
	// or context cancellation.
	shutdownReq  chan struct{}
	shutdownOnce sync.Once
	shuttingDown bool

	summary Summary
}

// New creates an Orchestrator for the given graph.
func New(cfg Config) *Orchestrator {
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()[:8]
	}
	spawner := cfg.Spawner
	if spawner == nil {
		spawner = procSpawner{}
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	bufSize := cfg.EventBuffer
	if bufSize <= 0 {
		bufSize = 1024
	}

	o := &Orchestrator{
		graph:       cfg.Graph,
		grace:       grace,
		spawner:     spawner,
		pids:        cfg.PidFile,
		runID:       runID,
		log:         logrus.WithField("run", runID),
		tasks:       make(map[string]*runtimeTask, cfg.Graph.Size()),
		order:       cfg.Graph.TopologicalSort(),
		procEvents:  make(chan proc.Event, 256),
		events:      make(chan Event, bufSize),
		shutdownReq: make(chan struct{}),
	}
	for _, name := range o.order {
		o.tasks[name] = &runtimeTask{
			def:   cfg.Graph.Definition(name),
			state: models.StatePending,
		}
	}
	return o
}

// Events returns the sink-facing event stream. It is closed when Run
// returns; consumers should drain it to completion.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// RunID returns this run's identifier.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// TaskOrder returns the task names in scheduling order.
func (o *Orchestrator) TaskOrder() []string {
	return append([]string{}, o.order...)
}

// RequestShutdown asks the run to stop: no new tasks start, and every live
// process is terminated within the grace period. Safe to call from any
// goroutine; repeated calls are no-ops.
func (o *Orchestrator) RequestShutdown() {
	o.shutdownOnce.Do(func() {
		close(o.shutdownReq)
	})
}

// Run executes the whole graph and blocks until every task reaches a
// terminal state or can no longer make progress. Cancelling ctx is
// equivalent to RequestShutdown. The final per-task states are available
// from Summary after Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.WithField("tasks", o.graph.Size()).Info("run starting")

	o.schedule()

	for !o.finished() {
		select {
		case <-ctx.Done():
			o.beginShutdown()
		case <-o.shutdownReq:
			o.beginShutdown()
		case ev := <-o.procEvents:
			o.handleProcEvent(ev)
			if !o.shuttingDown {
				o.schedule()
			}
		}
	}

	o.summary = o.buildSummary()
	o.emit(Event{Type: EventRunDone, Timestamp: time.Now()})
	close(o.events)
	o.log.Info("run finished")
	return nil
}

// Summary reports final task states. Valid only after Run has returned.
func (o *Orchestrator) Summary() Summary {
	return o.summary
}

// finished reports whether the loop can stop: no live process remains, and
// either every task is terminal or the remaining pending tasks can never
// become eligible (a dependency exited without readiness, or shutdown cut
// them off). Pending tasks are reported as such in the summary rather than
// blocking the run forever.
func (o *Orchestrator) finished() bool {
	for _, rt := range o.tasks {
		if rt.live() {
			return false
		}
	}
	if o.shuttingDown {
		return true
	}
	for _, rt := range o.tasks {
		if rt.state == models.StatePending && o.eligible(rt) {
			return false
		}
	}
	return true
}

// eligible returns true if every dependency of the task has observed
// readiness. Readiness is sticky: a dependency that became ready and later
// exited still counts.
func (o *Orchestrator) eligible(rt *runtimeTask) bool {
	for _, dep := range o.graph.Dependencies(rt.def.Name) {
		if !o.tasks[dep].everReady {
			return false
		}
	}
	return true
}

// schedule starts every pending task whose dependencies are all ready.
// Starting a no-marker task marks it ready immediately, so the pass loops
// until it makes no further progress. Never starts anything once shutdown
// has been observed.
func (o *Orchestrator) schedule() {
	if o.shuttingDown {
		return
	}
	for progress := true; progress; {
		progress = false
		for _, name := range o.order {
			rt := o.tasks[name]
			if rt.state != models.StatePending || !o.eligible(rt) {
				continue
			}
			o.start(rt)
			progress = true
		}
	}
}

// start spawns one task's process and applies the resulting transitions.
func (o *Orchestrator) start(rt *runtimeTask) {
	name := rt.def.Name
	o.transition(rt, models.StateStarting)

	handle, err := o.spawner.Spawn(rt.def, o.procEvents)
	if err != nil {
		// Spawn failures are task-local: recorded, never retried, and the
		// run continues without this task's subtree.
		o.log.WithField("task", name).WithError(err).Error("spawn failed")
		rt.outcome = &models.ExitOutcome{Code: -1, Err: err, FinishedAt: time.Now()}
		o.transition(rt, models.StateFailed)
		o.emit(Event{Type: EventTaskFailed, Task: name, State: rt.state, Err: err, Timestamp: time.Now()})
		return
	}

	rt.handle = handle
	if o.pids != nil {
		o.pids.Register(handle.Pid())
	}
	o.transition(rt, models.StateRunning)
	o.emit(Event{Type: EventTaskStarted, Task: name, State: rt.state, Timestamp: time.Now()})

	// Without a ready check, spawn confirmation is readiness.
	if rt.def.ReadyCheck == "" {
		o.markReady(rt)
	}
}

// handleProcEvent applies one supervisor message to the state table.
func (o *Orchestrator) handleProcEvent(ev proc.Event) {
	rt, ok := o.tasks[ev.Task]
	if !ok {
		return
	}

	switch ev.Kind {
	case proc.EventOutput:
		o.emit(Event{
			Type:      EventTaskOutput,
			Task:      ev.Task,
			Source:    ev.Source,
			Line:      ev.Line,
			Timestamp: time.Now(),
		})

	case proc.EventReady:
		if rt.state == models.StateRunning {
			o.markReady(rt)
		}

	case proc.EventExit:
		o.handleExit(rt, ev.Outcome)
	}
}

// markReady transitions a task to Ready and records sticky readiness.
func (o *Orchestrator) markReady(rt *runtimeTask) {
	rt.everReady = true
	o.transition(rt, models.StateReady)
	o.emit(Event{Type: EventTaskReady, Task: rt.def.Name, State: rt.state, Timestamp: time.Now()})
}

// handleExit resolves a live task to its terminal state. A task killed
// during shutdown lands in Killed; otherwise the exit code decides. A task
// that exits before its marker ever matched resolves without readiness, and
// dependents gated on it stay pending.
func (o *Orchestrator) handleExit(rt *runtimeTask, outcome models.ExitOutcome) {
	name := rt.def.Name
	if !rt.live() {
		return
	}

	if o.pids != nil && rt.handle != nil {
		o.pids.Unregister(rt.handle.Pid())
	}
	rt.handle = nil
	rt.outcome = &outcome

	switch {
	case o.shuttingDown && outcome.Signaled:
		o.transition(rt, models.StateKilled)
		o.emit(Event{Type: EventTaskKilled, Task: name, State: rt.state, Timestamp: time.Now()})
	case outcome.Code == 0 && outcome.Err == nil:
		o.transition(rt, models.StateSucceeded)
		o.emit(Event{Type: EventTaskSucceeded, Task: name, State: rt.state, Timestamp: time.Now()})
	default:
		o.log.WithFields(logrus.Fields{"task": name, "code": outcome.Code}).Warn("task failed")
		o.transition(rt, models.StateFailed)
		o.emit(Event{Type: EventTaskFailed, Task: name, State: rt.state, Err: outcome.Err, Timestamp: time.Now()})
	}
}

// beginShutdown stops scheduling and broadcasts termination to every live
// supervisor. Dependency order is irrelevant here; each process terminates
// independently within the grace period.
func (o *Orchestrator) beginShutdown() {
	if o.shuttingDown {
		return
	}
	o.shuttingDown = true
	o.log.Info("shutdown requested")
	o.emit(Event{Type: EventShutdown, Timestamp: time.Now()})

	for _, rt := range o.tasks {
		if rt.live() && rt.handle != nil {
			go rt.handle.Terminate(o.grace)
		}
	}

	// Keep draining supervisor events until every live task has exited.
	for !o.finished() {
		o.handleProcEvent(<-o.procEvents)
	}
}

// transition applies a state change. The orchestrator's loop is the sole
// writer, so no locking is needed; transitions are monotonic.
func (o *Orchestrator) transition(rt *runtimeTask, to models.TaskState) {
	o.log.WithFields(logrus.Fields{
		"task": rt.def.Name,
		"from": rt.state,
		"to":   to,
	}).Debug("state transition")
	rt.state = to
}

// emit delivers one event to the sink stream. Delivery blocks rather than
// drops: per-task output order is part of the sink contract.
func (o *Orchestrator) emit(ev Event) {
	o.events <- ev
}

// buildSummary snapshots final task states.
func (o *Orchestrator) buildSummary() Summary {
	s := Summary{
		States:            make(map[string]models.TaskState, len(o.tasks)),
		Outcomes:          make(map[string]models.ExitOutcome, len(o.tasks)),
		ShutdownRequested: o.shuttingDown,
	}
	for name, rt := range o.tasks {
		s.States[name] = rt.state
		if rt.outcome != nil {
			s.Outcomes[name] = *rt.outcome
		}
	}
	return s
}

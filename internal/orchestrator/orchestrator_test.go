package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tequio/internal/graph"
	"tequio/internal/proc"
	"tequio/pkg/models"
)

// script describes how a fake task process behaves.
type script struct {
	// spawnErr makes Spawn itself fail.
	spawnErr error
	// lines are emitted as stdout output events, in order.
	lines []string
	// readyAfter emits a ready event after that many lines (0 = never).
	readyAfter int
	// exitCode is the exit status once the process ends.
	exitCode int
	// hold keeps the process alive until released or terminated. Created
	// by the test; close it to release.
	hold chan struct{}
}

type fakeHandle struct {
	pid  int
	term chan struct{}
	once sync.Once
}

func (h *fakeHandle) Pid() int { return h.pid }

func (h *fakeHandle) Terminate(grace time.Duration) {
	h.once.Do(func() { close(h.term) })
}

// fakeSpawner runs scripted processes and records spawn order.
type fakeSpawner struct {
	mu      sync.Mutex
	scripts map[string]*script
	spawned []string
	// spawnedCh receives each task name as it spawns.
	spawnedCh chan string
	nextPid   int
}

func newFakeSpawner(scripts map[string]*script) *fakeSpawner {
	return &fakeSpawner{
		scripts:   scripts,
		spawnedCh: make(chan string, 16),
		nextPid:   1000,
	}
}

func (f *fakeSpawner) Spawn(def *models.TaskDefinition, events chan<- proc.Event) (Handle, error) {
	f.mu.Lock()
	s := f.scripts[def.Name]
	if s.spawnErr != nil {
		f.mu.Unlock()
		return nil, s.spawnErr
	}
	f.nextPid++
	h := &fakeHandle{pid: f.nextPid, term: make(chan struct{})}
	f.spawned = append(f.spawned, def.Name)
	f.mu.Unlock()
	f.spawnedCh <- def.Name

	go func() {
		for i, line := range s.lines {
			events <- proc.Event{Kind: proc.EventOutput, Task: def.Name, Source: models.SourceStdout, Line: line}
			if s.readyAfter > 0 && i+1 == s.readyAfter {
				events <- proc.Event{Kind: proc.EventReady, Task: def.Name}
			}
		}

		outcome := models.ExitOutcome{Code: s.exitCode, FinishedAt: time.Now()}
		if s.hold != nil {
			select {
			case <-s.hold:
			case <-h.term:
				outcome = models.ExitOutcome{Code: -1, Signaled: true, FinishedAt: time.Now()}
			}
		}
		if s.exitCode != 0 && !outcome.Signaled {
			outcome.Err = assert.AnError
		}
		events <- proc.Event{Kind: proc.EventExit, Task: def.Name, Outcome: outcome}
	}()

	return h, nil
}

func (f *fakeSpawner) spawnOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.spawned...)
}

// runOrch builds a graph from defs, runs the orchestrator with the fake
// spawner, and returns the collected events plus the summary.
func runOrch(t *testing.T, defs []*models.TaskDefinition, sp Spawner) ([]Event, Summary) {
	t.Helper()
	g, err := graph.Build(defs)
	require.NoError(t, err)

	o := New(Config{Graph: g, Spawner: sp, GracePeriod: time.Second, RunID: "test"})

	var (
		events []Event
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range o.Events() {
			events = append(events, ev)
		}
	}()

	done := make(chan struct{})
	go func() {
		_ = o.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
	wg.Wait()
	return events, o.Summary()
}

func eventTypes(events []Event, task string) []EventType {
	var types []EventType
	for _, ev := range events {
		if ev.Task == task && ev.Type != EventTaskOutput {
			types = append(types, ev.Type)
		}
	}
	return types
}

func TestSingleTaskLifecycle(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"build": {lines: []string{"compiling", "done"}},
	})
	events, summary := runOrch(t, []*models.TaskDefinition{
		{Name: "build", Command: "make"},
	}, sp)

	assert.Equal(t, models.StateSucceeded, summary.States["build"])
	assert.False(t, summary.Failed())
	// No marker: ready fires on spawn, before any output.
	assert.Equal(t,
		[]EventType{EventTaskStarted, EventTaskReady, EventTaskSucceeded},
		eventTypes(events, "build"))
}

func TestOutputForwardedInOrder(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"build": {lines: []string{"one", "two", "three"}},
	})
	events, _ := runOrch(t, []*models.TaskDefinition{
		{Name: "build", Command: "make"},
	}, sp)

	var lines []string
	for _, ev := range events {
		if ev.Type == EventTaskOutput {
			lines = append(lines, ev.Line)
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestMarkerGatesDependent(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"serve": {lines: []string{"starting…", "listening on port 8080", "serving"}, readyAfter: 2},
		"smoke": {},
	})
	events, summary := runOrch(t, []*models.TaskDefinition{
		{Name: "serve", Command: "./serve", ReadyCheck: "listening on port"},
		{Name: "smoke", Command: "curl localhost", DependsOn: []string{"serve"}},
	}, sp)

	assert.Equal(t, []string{"serve", "smoke"}, sp.spawnOrder())
	assert.Equal(t, models.StateSucceeded, summary.States["smoke"])

	// smoke's start event comes after serve's ready event.
	var serveReadyIdx, smokeStartIdx int
	for i, ev := range events {
		if ev.Type == EventTaskReady && ev.Task == "serve" {
			serveReadyIdx = i
		}
		if ev.Type == EventTaskStarted && ev.Task == "smoke" {
			smokeStartIdx = i
		}
	}
	assert.Greater(t, smokeStartIdx, serveReadyIdx)
}

func TestPartialReadinessUnblocksBeforeExit(t *testing.T) {
	hold := make(chan struct{})
	sp := newFakeSpawner(map[string]*script{
		"serve": {lines: []string{"listening"}, readyAfter: 1, hold: hold},
		"smoke": {},
	})
	defs := []*models.TaskDefinition{
		{Name: "serve", Command: "./serve", ReadyCheck: "listening"},
		{Name: "smoke", Command: "curl localhost", DependsOn: []string{"serve"}},
	}

	g, err := graph.Build(defs)
	require.NoError(t, err)
	o := New(Config{Graph: g, Spawner: sp, GracePeriod: time.Second})

	go func() {
		for range o.Events() {
		}
	}()
	done := make(chan struct{})
	go func() {
		_ = o.Run(context.Background())
		close(done)
	}()

	// serve spawns first; smoke must spawn while serve is still alive.
	require.Equal(t, "serve", <-sp.spawnedCh)
	select {
	case name := <-sp.spawnedCh:
		assert.Equal(t, "smoke", name)
	case <-time.After(5 * time.Second):
		t.Fatal("dependent never started while dependency was still running")
	}

	close(hold)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	assert.Equal(t, models.StateSucceeded, o.Summary().States["serve"])
	assert.Equal(t, models.StateSucceeded, o.Summary().States["smoke"])
}

func TestExitWithoutReadinessBlocksDependents(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"serve": {lines: []string{"crashed before listening"}}, // marker never emitted
		"smoke": {},
	})
	_, summary := runOrch(t, []*models.TaskDefinition{
		{Name: "serve", Command: "./serve", ReadyCheck: "listening"},
		{Name: "smoke", Command: "curl localhost", DependsOn: []string{"serve"}},
	}, sp)

	// serve exited zero but never signaled readiness; a clean exit does not
	// retroactively count as ready.
	assert.Equal(t, models.StateSucceeded, summary.States["serve"])
	assert.Equal(t, models.StatePending, summary.States["smoke"])
	assert.True(t, summary.Failed())
	assert.NotContains(t, sp.spawnOrder(), "smoke")
}

func TestFailedDependencyBlocksDependents(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"build": {exitCode: 2},
		"test":  {},
	})
	_, summary := runOrch(t, []*models.TaskDefinition{
		{Name: "build", Command: "make", ReadyCheck: "never matches"},
		{Name: "test", Command: "make test", DependsOn: []string{"build"}},
	}, sp)

	assert.Equal(t, models.StateFailed, summary.States["build"])
	assert.Equal(t, models.StatePending, summary.States["test"])
}

func TestReadyThenFailureKeepsDependentsUnblocked(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"serve": {lines: []string{"listening"}, readyAfter: 1, exitCode: 1},
		"smoke": {},
	})
	_, summary := runOrch(t, []*models.TaskDefinition{
		{Name: "serve", Command: "./serve", ReadyCheck: "listening"},
		{Name: "smoke", Command: "curl localhost", DependsOn: []string{"serve"}},
	}, sp)

	// serve reached ready first, then failed; smoke is not retroactively blocked.
	assert.Equal(t, models.StateFailed, summary.States["serve"])
	assert.Equal(t, models.StateSucceeded, summary.States["smoke"])
}

func TestSpawnErrorIsTaskLocal(t *testing.T) {
	sp := newFakeSpawner(map[string]*script{
		"broken": {spawnErr: assert.AnError},
		"other":  {},
		"child":  {},
	})
	events, summary := runOrch(t, []*models.TaskDefinition{
		{Name: "broken", Command: "nope"},
		{Name: "other", Command: "true"},
		{Name: "child", Command: "true", DependsOn: []string{"broken"}},
	}, sp)

	assert.Equal(t, models.StateFailed, summary.States["broken"])
	assert.Equal(t, models.StateSucceeded, summary.States["other"])
	assert.Equal(t, models.StatePending, summary.States["child"])
	assert.Equal(t, []EventType{EventTaskFailed}, eventTypes(events, "broken"))
}

func TestShutdownKillsLiveTasks(t *testing.T) {
	holdA := make(chan struct{})
	holdB := make(chan struct{})
	sp := newFakeSpawner(map[string]*script{
		"a": {hold: holdA},
		"b": {hold: holdB},
	})
	defs := []*models.TaskDefinition{
		{Name: "a", Command: "sleep 100"},
		{Name: "b", Command: "sleep 100"},
	}

	g, err := graph.Build(defs)
	require.NoError(t, err)
	o := New(Config{Graph: g, Spawner: sp, GracePeriod: time.Second})

	var sawShutdown bool
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for ev := range o.Events() {
			if ev.Type == EventShutdown {
				sawShutdown = true
			}
		}
	}()
	done := make(chan struct{})
	go func() {
		_ = o.Run(context.Background())
		close(done)
	}()

	<-sp.spawnedCh
	<-sp.spawnedCh

	// Requesting shutdown twice must not panic or double-signal.
	o.RequestShutdown()
	o.RequestShutdown()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	<-collected

	assert.True(t, sawShutdown)
	assert.Equal(t, models.StateKilled, o.Summary().States["a"])
	assert.Equal(t, models.StateKilled, o.Summary().States["b"])
	assert.False(t, o.Summary().Failed())
}

func TestShutdownPreventsNewStarts(t *testing.T) {
	hold := make(chan struct{})
	sp := newFakeSpawner(map[string]*script{
		"serve": {hold: hold}, // never ready, never exits until killed
		"smoke": {},
	})
	defs := []*models.TaskDefinition{
		{Name: "serve", Command: "./serve", ReadyCheck: "listening"},
		{Name: "smoke", Command: "curl localhost", DependsOn: []string{"serve"}},
	}

	g, err := graph.Build(defs)
	require.NoError(t, err)
	o := New(Config{Graph: g, Spawner: sp, GracePeriod: time.Second})

	go func() {
		for range o.Events() {
		}
	}()
	done := make(chan struct{})
	go func() {
		_ = o.Run(context.Background())
		close(done)
	}()

	<-sp.spawnedCh
	o.RequestShutdown()
	<-done

	assert.Equal(t, models.StateKilled, o.Summary().States["serve"])
	assert.Equal(t, models.StatePending, o.Summary().States["smoke"])
	assert.Equal(t, []string{"serve"}, sp.spawnOrder())

	// A dependent left pending only because the user stopped the run is not
	// a failure; the run exits clean.
	assert.True(t, o.Summary().ShutdownRequested)
	assert.False(t, o.Summary().Failed())
}

func TestContextCancelActsAsShutdown(t *testing.T) {
	hold := make(chan struct{})
	sp := newFakeSpawner(map[string]*script{
		"a": {hold: hold},
	})
	g, err := graph.Build([]*models.TaskDefinition{{Name: "a", Command: "sleep 100"}})
	require.NoError(t, err)
	o := New(Config{Graph: g, Spawner: sp, GracePeriod: time.Second})

	go func() {
		for range o.Events() {
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	<-sp.spawnedCh
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not end the run")
	}
	assert.Equal(t, models.StateKilled, o.Summary().States["a"])
}

func TestEndToEndScenario(t *testing.T) {
	// build: no deps, no marker. serve: depends on build, marker. test:
	// depends on build, no marker.
	holdServe := make(chan struct{})
	sp := newFakeSpawner(map[string]*script{
		"build": {lines: []string{"compiling"}},
		"serve": {lines: []string{"boot", "listening :8080"}, readyAfter: 2, hold: holdServe},
		"test":  {lines: []string{"ok"}},
	})
	defs := []*models.TaskDefinition{
		{Name: "build", Command: "make"},
		{Name: "serve", Command: "./serve", DependsOn: []string{"build"}, ReadyCheck: "listening"},
		{Name: "test", Command: "make test", DependsOn: []string{"build"}},
	}

	g, err := graph.Build(defs)
	require.NoError(t, err)
	o := New(Config{Graph: g, Spawner: sp, GracePeriod: time.Second})

	go func() {
		for range o.Events() {
		}
	}()
	done := make(chan struct{})
	go func() {
		_ = o.Run(context.Background())
		close(done)
	}()

	// build spawns first and unblocks both dependents on spawn.
	require.Equal(t, "build", <-sp.spawnedCh)
	second := <-sp.spawnedCh
	third := <-sp.spawnedCh
	assert.ElementsMatch(t, []string{"serve", "test"}, []string{second, third})

	close(holdServe)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	summary := o.Summary()
	assert.Equal(t, models.StateSucceeded, summary.States["build"])
	assert.Equal(t, models.StateSucceeded, summary.States["serve"])
	assert.Equal(t, models.StateSucceeded, summary.States["test"])
}

func TestEmptyGraphFinishesImmediately(t *testing.T) {
	_, summary := runOrch(t, nil, newFakeSpawner(nil))
	assert.Empty(t, summary.States)
	assert.False(t, summary.Failed())
}

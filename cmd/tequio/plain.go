package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"

	"tequio/internal/orchestrator"
	"tequio/pkg/models"
)

// palette holds the prefix colors assigned to tasks round-robin, the way
// foreman-style runners do.
var palette = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgMagenta),
	color.New(color.FgBlue),
	color.New(color.FgHiCyan),
	color.New(color.FgHiGreen),
	color.New(color.FgHiYellow),
}

var (
	systemColor = color.New(color.FgWhite, color.Bold)
	errColor    = color.New(color.FgRed)
	okColor     = color.New(color.FgGreen)
	dimColor    = color.New(color.FgHiBlack)
)

// plainSink streams prefixed task output line by line, for pipes and
// --plain mode.
type plainSink struct {
	colors map[string]*color.Color
	width  int
}

func newPlainSink(names []string) *plainSink {
	s := &plainSink{colors: make(map[string]*color.Color, len(names))}
	for i, name := range names {
		s.colors[name] = palette[i%len(palette)]
		if len(name) > s.width {
			s.width = len(name)
		}
	}
	if w := len("tequio"); w > s.width {
		s.width = w
	}
	return s
}

// prefix renders the aligned, colored task name column.
func (s *plainSink) prefix(task string) string {
	c, ok := s.colors[task]
	if !ok {
		c = dimColor
	}
	return c.Sprintf("%-*s |", s.width, task)
}

// handle prints one orchestrator event.
func (s *plainSink) handle(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventTaskOutput:
		line := ev.Line
		if ev.Source == models.SourceStderr {
			line = errColor.Sprint(line)
		}
		fmt.Printf("%s %s\n", s.prefix(ev.Task), line)

	case orchestrator.EventTaskStarted:
		fmt.Printf("%s %s\n", s.prefix(ev.Task), dimColor.Sprint("started"))

	case orchestrator.EventTaskReady:
		fmt.Printf("%s %s\n", s.prefix(ev.Task), dimColor.Sprint("ready"))

	case orchestrator.EventTaskSucceeded:
		fmt.Printf("%s %s\n", s.prefix(ev.Task), okColor.Sprint("succeeded"))

	case orchestrator.EventTaskFailed:
		msg := "failed"
		if ev.Err != nil {
			msg = fmt.Sprintf("failed: %v", ev.Err)
		}
		fmt.Printf("%s %s\n", s.prefix(ev.Task), errColor.Sprint(msg))

	case orchestrator.EventTaskKilled:
		fmt.Printf("%s %s\n", s.prefix(ev.Task), dimColor.Sprint("killed"))

	case orchestrator.EventShutdown:
		fmt.Printf("%s %s\n", systemColor.Sprintf("%-*s |", s.width, "tequio"), "shutting down")
	}
}

// runPlain runs the orchestrator and streams events to stdout.
func runPlain(ctx context.Context, orch *orchestrator.Orchestrator) error {
	sink := newPlainSink(orch.TaskOrder())

	done := make(chan error, 1)
	go func() {
		done <- orch.Run(ctx)
	}()

	for ev := range orch.Events() {
		sink.handle(ev)
	}
	return <-done
}

// printSummary writes the final per-task report.
func printSummary(summary orchestrator.Summary) {
	names := make([]string, 0, len(summary.States))
	for name := range summary.States {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	for _, name := range names {
		state := summary.States[name]
		var c *color.Color
		switch state {
		case models.StateSucceeded:
			c = okColor
		case models.StateFailed:
			c = errColor
		default:
			c = dimColor
		}
		fmt.Printf("  %s %s\n", c.Sprintf("%-9s", state), name)
	}
}

package main

import (
	"context"
	"fmt"

	"tequio/internal/logger"
	"tequio/internal/orchestrator"
	"tequio/internal/tui"
)

// runWithTUI runs the orchestrator behind the interactive TUI.
func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator, logFile string) (retErr error) {
	// Log lines corrupt the alt-screen display, so they go to a file for
	// the duration of the TUI.
	logPath, restore, err := logger.RedirectToFile(logFile)
	if err != nil {
		return fmt.Errorf("redirect logs: %w", err)
	}
	defer restore()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in TUI: %v", r)
		}
	}()

	app := tui.New(orch.RunID(), orch.TaskOrder(), orch.RequestShutdown)
	program := tui.NewProgram(app)

	orchDone := make(chan error, 1)
	go func() {
		orchDone <- orch.Run(ctx)
	}()
	go tui.Forward(program, orch.Events(), orch.Summary)

	if _, err := program.Run(); err != nil {
		// The TUI died; stop the run before reporting.
		orch.RequestShutdown()
		<-orchDone
		return fmt.Errorf("tui: %w", err)
	}

	if err := <-orchDone; err != nil {
		return err
	}
	fmt.Printf("logs written to %s\n", logPath)
	return nil
}

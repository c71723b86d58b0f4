package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tequio/internal/config"
	"tequio/internal/graph"
	"tequio/internal/logger"
	"tequio/internal/orchestrator"
	"tequio/internal/pidfile"
)

// DefaultTaskFile is loaded when no task file argument is given.
const DefaultTaskFile = "tasks.ini"

func runTasks(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	// Flags win over the settings file and environment.
	if cmd.Flags().Changed("plain") {
		settings.Plain = rootPlain
	}
	if cmd.Flags().Changed("verbose") {
		settings.Verbose = rootVerbose
	}
	if cmd.Flags().Changed("grace") {
		settings.GracePeriod = rootGrace
	}
	if cmd.Flags().Changed("log-file") {
		settings.LogFile = rootLogFile
	}

	logger.Setup(settings.Verbose)

	path := DefaultTaskFile
	if len(args) == 1 {
		path = args[0]
	}
	defs, err := config.LoadTasks(path)
	if err != nil {
		return err
	}
	g, err := graph.Build(defs)
	if err != nil {
		return err
	}

	runID := uuid.New().String()[:8]
	pids := pidfile.New(runID)
	// Kill anything a crashed previous run left behind before spawning.
	pids.KillStale()
	defer pids.Cleanup()

	orch := orchestrator.New(orchestrator.Config{
		Graph:       g,
		GracePeriod: settings.GracePeriod,
		PidFile:     pids,
		RunID:       runID,
	})

	// First signal asks for graceful shutdown; a second one aborts hard.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		orch.RequestShutdown()
		<-sigCh
		pids.Cleanup()
		os.Exit(130)
	}()

	useTUI := !settings.Plain && isatty.IsTerminal(os.Stdout.Fd())

	var runErr error
	if useTUI {
		runErr = runWithTUI(context.Background(), orch, settings.LogFile)
	} else {
		runErr = runPlain(context.Background(), orch)
	}
	if runErr != nil {
		return runErr
	}

	summary := orch.Summary()
	printSummary(summary)
	if summary.Failed() {
		logrus.WithField("run", runID).Debug("run finished with failures")
		return fmt.Errorf("one or more tasks did not succeed")
	}
	return nil
}

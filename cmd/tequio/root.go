package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	rootPlain   bool
	rootVerbose bool
	rootGrace   time.Duration
	rootLogFile string
)

var rootCmd = &cobra.Command{
	Use:   "tequio [taskfile]",
	Short: "Dependency-aware shell task runner",
	Long: `Tequio runs a set of shell tasks that depend on one another,
starting each task as soon as its prerequisites are ready.

Tasks are declared in an INI or YAML file. A task with a ready_check
marker counts as ready once that marker appears in its output, so
dependents of a long-running server start as soon as the server is
listening rather than waiting for it to exit.

With a terminal attached, tequio shows a live TUI with per-task output.
Pipe the output or pass --plain for prefixed line streaming instead.

Press Ctrl-C (or q in the TUI) to stop: running tasks receive SIGTERM,
then SIGKILL after the grace period.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&rootPlain, "plain", false, "Stream prefixed lines instead of the TUI")
	rootCmd.Flags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().DurationVar(&rootGrace, "grace", 0, "SIGTERM grace period before SIGKILL (default 5s)")
	rootCmd.Flags().StringVar(&rootLogFile, "log-file", "", "Write logs to this file")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

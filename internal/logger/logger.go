// Package logger configures operational logging for the runner.
//
// Task output never goes through here; it flows to the output sink. This
// logger carries the runner's own diagnostics: spawns, state transitions,
// shutdown progress.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger for plain-mode runs: text
// output on stderr, debug level when verbose.
func Setup(verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   isatty.IsTerminal(os.Stderr.Fd()),
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// RedirectToFile sends log output to a file instead of stderr, for use
// while the TUI owns the terminal. If path is empty a file under the OS
// temp dir is used. Returns the resolved path and a close function.
func RedirectToFile(path string) (string, func(), error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "tequio.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	logrus.SetOutput(f)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	restore := func() {
		logrus.SetOutput(os.Stderr)
		_ = f.Close()
	}
	return path, restore, nil
}

// Discard silences the logger entirely. Used by tests.
func Discard() {
	logrus.SetOutput(io.Discard)
}

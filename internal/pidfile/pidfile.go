// Package pidfile tracks the process IDs of spawned tasks in a file under
// the OS temp dir, so a crashed run's orphans can be reaped on the next
// start.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

const fileName = "tequio-pids.txt"

// File is a pid registry backed by a single file. All methods are safe for
// concurrent use.
type File struct {
	path  string
	runID string

	mu   sync.Mutex
	pids map[int]struct{}
}

// New creates a registry at the default temp-dir path. The runID is written
// as a comment header so a leftover file can be traced to its run.
func New(runID string) *File {
	return NewAt(filepath.Join(os.TempDir(), fileName), runID)
}

// NewAt creates a registry at an explicit path.
func NewAt(path, runID string) *File {
	return &File{
		path:  path,
		runID: runID,
		pids:  make(map[int]struct{}),
	}
}

// KillStale kills any process groups recorded by a previous run that never
// cleaned up, then removes the file. Errors are logged and swallowed; a
// corrupt or unreadable pidfile must not block a new run.
func (f *File) KillStale() {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		logrus.WithField("pid", pid).Warn("killing stale task process from previous run")
		killGroup(pid)
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("removing stale pidfile")
	}
}

// Register records a live pid and rewrites the file.
func (f *File) Register(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pids[pid] = struct{}{}
	f.write()
}

// Unregister drops an exited pid. The file is removed once empty.
func (f *File) Unregister(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pids, pid)
	if len(f.pids) == 0 {
		_ = os.Remove(f.path)
		return
	}
	f.write()
}

// Cleanup kills every still-registered process group and removes the file.
// Called on the shutdown path after supervisors have had their chance to
// terminate gracefully.
func (f *File) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pid := range f.pids {
		killGroup(pid)
		delete(f.pids, pid)
	}
	_ = os.Remove(f.path)
}

// Path returns the pidfile location.
func (f *File) Path() string {
	return f.path
}

// write rewrites the file with the current pid set. Caller holds f.mu.
func (f *File) write() {
	var b strings.Builder
	fmt.Fprintf(&b, "# tequio run %s\n", f.runID)
	for pid := range f.pids {
		fmt.Fprintf(&b, "%d\n", pid)
	}
	if err := os.WriteFile(f.path, []byte(b.String()), 0o644); err != nil {
		logrus.WithError(err).Warn("writing pidfile")
	}
}

// killGroup kills the process group of pid, falling back to the process
// itself if it was not a group leader.
func killGroup(pid int) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

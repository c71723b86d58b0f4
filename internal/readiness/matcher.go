// Package readiness decides when a task's live output marks it ready.
package readiness

import "strings"

// Matcher incrementally scans a task's output for its ready marker. The
// first occurrence of the marker fires; firing is idempotent and later
// input is ignored. A Matcher is not safe for concurrent use; the owning
// supervisor serializes calls across the task's streams.
type Matcher struct {
	marker string
	// tail holds the bytes of an unterminated line that could still be the
	// start of a match when the rest of the line arrives.
	tail  string
	fired bool
}

// NewMatcher creates a Matcher for the given marker. An empty marker never
// fires; tasks without a ready check signal readiness on spawn instead.
func NewMatcher(marker string) *Matcher {
	return &Matcher{marker: marker}
}

// FeedLine consumes one complete line of output (no trailing newline) and
// reports whether it contained the first match. The marker may occur
// anywhere within the line, including mid-line.
func (m *Matcher) FeedLine(line string) bool {
	if m.fired || m.marker == "" {
		return false
	}
	m.tail = ""
	if strings.Contains(line, m.marker) {
		m.fired = true
		return true
	}
	return false
}

// Feed consumes a raw chunk that may end mid-line. Markers split across
// chunk boundaries still match, but never across a line break: a newline in
// the input resets the partial-match state, since the marker must occur
// within a single line.
func (m *Matcher) Feed(chunk string) bool {
	if m.fired || m.marker == "" {
		return false
	}
	rest := m.tail + chunk
	for {
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		if strings.Contains(rest[:nl], m.marker) {
			m.fired = true
			m.tail = ""
			return true
		}
		rest = rest[nl+1:]
	}
	if strings.Contains(rest, m.marker) {
		m.fired = true
		m.tail = ""
		return true
	}
	// Keep only what could still prefix a match on the unterminated line.
	if keep := len(m.marker) - 1; len(rest) > keep {
		m.tail = rest[len(rest)-keep:]
	} else {
		m.tail = rest
	}
	return false
}

// Fired returns true once the marker has been observed.
func (m *Matcher) Fired() bool {
	return m.fired
}

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tequio/pkg/models"
)

// OutputPanel shows the captured output of one task at a time. Lines for
// every task are retained in per-task ring buffers so switching the
// selection replays what that task has printed so far.
type OutputPanel struct {
	buffers  map[string]*RingBuffer
	current  string
	viewport viewport.Model
	follow   bool
	width    int
	height   int

	titleStyle  lipgloss.Style
	stderrStyle lipgloss.Style
	normalStyle lipgloss.Style
}

// NewOutputPanel creates an OutputPanel with an empty buffer per task.
func NewOutputPanel(names []string) *OutputPanel {
	buffers := make(map[string]*RingBuffer, len(names))
	for _, name := range names {
		buffers[name] = NewRingBuffer(DefaultBufferSize)
	}

	p := &OutputPanel{
		buffers:  buffers,
		viewport: viewport.New(0, 0),
		follow:   true,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		stderrStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),

		normalStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
	if len(names) > 0 {
		p.current = names[0]
	}
	return p
}

// Append records an output line for a task. Stderr lines are tinted so they
// stand out from stdout.
func (p *OutputPanel) Append(task string, source models.OutputSource, line string) {
	buf, ok := p.buffers[task]
	if !ok {
		return
	}
	if source == models.SourceStderr {
		line = p.stderrStyle.Render(line)
	}
	buf.Append(line)
	if task == p.current {
		p.refresh()
	}
}

// Show switches the panel to the given task's buffer.
func (p *OutputPanel) Show(task string) {
	if task == p.current {
		return
	}
	p.current = task
	p.follow = true
	p.refresh()
}

// SetSize updates the panel dimensions.
func (p *OutputPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	// Border eats two columns and rows, the title line one more row.
	p.viewport.Width = width - 2
	p.viewport.Height = height - 3
	if p.viewport.Height < 1 {
		p.viewport.Height = 1
	}
	p.refresh()
}

// Update handles scroll input. Scrolling up disengages follow mode;
// scrolling back to the bottom re-engages it.
func (p *OutputPanel) Update(msg tea.Msg) (*OutputPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "pgup", "ctrl+u":
			p.viewport.HalfViewUp()
			p.follow = false
		case "pgdown", "ctrl+d":
			p.viewport.HalfViewDown()
			p.follow = p.viewport.AtBottom()
		case "end", "G":
			p.viewport.GotoBottom()
			p.follow = true
		case "home", "g":
			p.viewport.GotoTop()
			p.follow = false
		}
	}
	return p, nil
}

// refresh rebuilds the viewport content from the current buffer.
func (p *OutputPanel) refresh() {
	buf, ok := p.buffers[p.current]
	if !ok {
		p.viewport.SetContent("")
		return
	}
	p.viewport.SetContent(strings.Join(buf.Lines(), "\n"))
	if p.follow {
		p.viewport.GotoBottom()
	}
}

// View renders the output panel.
func (p *OutputPanel) View() string {
	var b strings.Builder
	b.WriteString(p.titleStyle.Render("Output: " + p.current))
	b.WriteString("\n")
	b.WriteString(p.viewport.View())

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(p.width - 2).
		Height(p.height - 2).
		Render(b.String())
}

// LineCount returns the number of buffered lines for a task.
func (p *OutputPanel) LineCount(task string) int {
	if buf, ok := p.buffers[task]; ok {
		return buf.Count()
	}
	return 0
}

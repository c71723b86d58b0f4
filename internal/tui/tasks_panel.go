package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tequio/pkg/models"
)

// Status icons for task states.
const (
	iconRunning = "[●]"
	iconWaiting = "[◐]"
	iconReady   = "[◉]"
	iconDone    = "[✓]"
	iconFailed  = "[✗]"
	iconKilled  = "[◌]"
	iconPending = "[○]"
)

// taskRow is one entry in the task list.
type taskRow struct {
	name  string
	state models.TaskState
}

// TasksPanel displays the task list with status indicators and tracks the
// selected task whose output is shown in the output panel.
type TasksPanel struct {
	rows         []taskRow
	index        map[string]int
	selected     int
	scrollOffset int
	width        int
	height       int

	// Styles
	titleStyle    lipgloss.Style
	selectedStyle lipgloss.Style
	normalStyle   lipgloss.Style
	sectionStyle  lipgloss.Style
	pendingStyle  lipgloss.Style
	startingStyle lipgloss.Style
	runningStyle  lipgloss.Style
	readyStyle    lipgloss.Style
	doneStyle     lipgloss.Style
	failedStyle   lipgloss.Style
	killedStyle   lipgloss.Style
}

// NewTasksPanel creates a TasksPanel listing the given tasks in order. Every
// task starts out pending.
func NewTasksPanel(names []string) *TasksPanel {
	p := &TasksPanel{
		rows:  make([]taskRow, 0, len(names)),
		index: make(map[string]int, len(names)),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		selectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true),

		normalStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		sectionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		startingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		readyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")), // Cyan

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		killedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")), // Dim
	}

	for i, name := range names {
		p.rows = append(p.rows, taskRow{name: name, state: models.StatePending})
		p.index[name] = i
	}
	return p
}

// SetState updates the displayed state of a task.
func (p *TasksPanel) SetState(name string, state models.TaskState) {
	if i, ok := p.index[name]; ok {
		p.rows[i].state = state
	}
}

// SetSize updates the panel dimensions.
func (p *TasksPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Update handles input messages.
func (p *TasksPanel) Update(msg tea.Msg) (*TasksPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if p.selected > 0 {
				p.selected--
				p.ensureVisible()
			}
		case "down", "j":
			if p.selected < len(p.rows)-1 {
				p.selected++
				p.ensureVisible()
			}
		}
	}
	return p, nil
}

// ensureVisible adjusts the scroll offset to keep the selection on screen.
func (p *TasksPanel) ensureVisible() {
	visibleRows := p.height - 4
	if visibleRows < 1 {
		visibleRows = 1
	}

	if p.selected < p.scrollOffset {
		p.scrollOffset = p.selected
	} else if p.selected >= p.scrollOffset+visibleRows {
		p.scrollOffset = p.selected - visibleRows + 1
	}
}

// View renders the task list panel.
func (p *TasksPanel) View() string {
	var b strings.Builder

	b.WriteString(p.titleStyle.Render("Tasks"))
	b.WriteString("\n")

	if len(p.rows) == 0 {
		b.WriteString(p.normalStyle.Render("  No tasks"))
	} else {
		live := 0
		done := 0
		for _, row := range p.rows {
			if row.state.Terminal() {
				done++
			} else if row.state != models.StatePending {
				live++
			}
		}
		b.WriteString(p.sectionStyle.Render(fmt.Sprintf(" %d live, %d done", live, done)))
		b.WriteString("\n")

		visibleRows := p.height - 4
		if visibleRows < 1 {
			visibleRows = 1
		}
		end := p.scrollOffset + visibleRows
		if end > len(p.rows) {
			end = len(p.rows)
		}

		for i := p.scrollOffset; i < end; i++ {
			b.WriteString(p.renderRow(p.rows[i], i == p.selected))
			if i < end-1 {
				b.WriteString("\n")
			}
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(p.width - 2).
		Height(p.height - 2).
		Render(b.String())
}

// renderRow renders a single task line.
func (p *TasksPanel) renderRow(row taskRow, selected bool) string {
	icon := p.stateIcon(row.state)

	maxNameLen := p.width - 10
	if maxNameLen < 8 {
		maxNameLen = 8
	}
	name := row.name
	if len(name) > maxNameLen {
		name = name[:maxNameLen-3] + "..."
	}

	line := fmt.Sprintf(" %s %s", icon, name)
	if selected {
		return p.selectedStyle.Render(line)
	}
	return p.normalStyle.Render(line)
}

// stateIcon returns the icon for a task state.
func (p *TasksPanel) stateIcon(state models.TaskState) string {
	switch state {
	case models.StatePending:
		return p.pendingStyle.Render(iconPending)
	case models.StateStarting:
		return p.startingStyle.Render(iconWaiting)
	case models.StateRunning:
		return p.runningStyle.Render(iconRunning)
	case models.StateReady:
		return p.readyStyle.Render(iconReady)
	case models.StateSucceeded:
		return p.doneStyle.Render(iconDone)
	case models.StateFailed:
		return p.failedStyle.Render(iconFailed)
	case models.StateKilled:
		return p.killedStyle.Render(iconKilled)
	default:
		return p.pendingStyle.Render(iconPending)
	}
}

// Selected returns the name of the currently selected task, or "" if the
// list is empty.
func (p *TasksPanel) Selected() string {
	if p.selected < 0 || p.selected >= len(p.rows) {
		return ""
	}
	return p.rows[p.selected].name
}

// TaskCount returns the total number of tasks.
func (p *TasksPanel) TaskCount() int {
	return len(p.rows)
}

// Package tui provides the terminal user interface for tequio.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tequio/internal/orchestrator"
)

// EventMsg wraps an orchestrator event for the TUI.
type EventMsg struct {
	Event orchestrator.Event
}

// RunDoneMsg signals that the run has completed.
type RunDoneMsg struct {
	Summary orchestrator.Summary
}

// App is the main bubbletea model for the tequio TUI.
type App struct {
	// runID identifies the run shown in the header.
	runID string
	// tasks is the task list panel.
	tasks *TasksPanel
	// output is the output panel for the selected task.
	output *OutputPanel
	// layout computes panel dimensions from the terminal size.
	layout *LayoutManager
	// requestShutdown asks the orchestrator to stop the run.
	requestShutdown func()
	// shuttingDown is set after the first quit keypress.
	shuttingDown bool
	// done is set once the run has completed.
	done bool
	// summary holds final task states once the run is done.
	summary orchestrator.Summary
	// startedAt is when the run began, for the footer clock.
	startedAt time.Time

	headerStyle lipgloss.Style
	footerStyle lipgloss.Style
	okStyle     lipgloss.Style
	failStyle   lipgloss.Style
}

// New creates an App showing the given tasks in order. requestShutdown is
// invoked when the user asks to quit; the app exits once the run reports
// completion.
func New(runID string, taskNames []string, requestShutdown func()) *App {
	return &App{
		runID:           runID,
		tasks:           NewTasksPanel(taskNames),
		output:          NewOutputPanel(taskNames),
		layout:          NewLayoutManager(80, 24),
		requestShutdown: requestShutdown,
		startedAt:       time.Now(),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		okStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if a.done || a.shuttingDown {
				return a, tea.Quit
			}
			a.shuttingDown = true
			if a.requestShutdown != nil {
				a.requestShutdown()
			}
			return a, nil
		}
		a.tasks, _ = a.tasks.Update(msg)
		a.output.Show(a.tasks.Selected())
		a.output, _ = a.output.Update(msg)

	case tea.WindowSizeMsg:
		a.layout.SetSize(msg.Width, msg.Height)
		dims := a.layout.Calculate()
		a.tasks.SetSize(dims.TasksWidth, dims.ContentHeight)
		a.output.SetSize(dims.OutputWidth, dims.ContentHeight)

	case EventMsg:
		a.handleEvent(msg.Event)

	case RunDoneMsg:
		a.done = true
		a.summary = msg.Summary
		return a, tea.Quit
	}

	return a, nil
}

// handleEvent applies an orchestrator event to the panels.
func (a *App) handleEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventTaskOutput:
		a.output.Append(ev.Task, ev.Source, ev.Line)
	case orchestrator.EventShutdown:
		a.shuttingDown = true
	default:
		if ev.State != "" {
			a.tasks.SetState(ev.Task, ev.State)
		}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.done {
		return ""
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top, a.tasks.View(), a.output.View())
	return fmt.Sprintf("%s\n%s\n%s", a.viewHeader(), panels, a.viewFooter())
}

// viewHeader renders the title bar.
func (a *App) viewHeader() string {
	return a.headerStyle.Render(fmt.Sprintf(" tequio · run %s", a.runID))
}

// viewFooter renders key help and run status.
func (a *App) viewFooter() string {
	if a.shuttingDown {
		return a.failStyle.Render(" shutting down…")
	}
	elapsed := time.Since(a.startedAt).Round(time.Second)
	return a.footerStyle.Render(fmt.Sprintf(" ↑/↓ select task · pgup/pgdn scroll · q quit · %s", elapsed))
}

// NewProgram creates a bubbletea program for the app. The returned program
// receives orchestrator events via Send().
func NewProgram(app *App) *tea.Program {
	return tea.NewProgram(app, tea.WithAltScreen())
}

// Forward pumps orchestrator events into the program until the channel
// closes, then delivers the final summary. Run it on its own goroutine.
func Forward(p *tea.Program, events <-chan orchestrator.Event, summary func() orchestrator.Summary) {
	for ev := range events {
		if ev.Type == orchestrator.EventRunDone {
			continue
		}
		p.Send(EventMsg{Event: ev})
	}
	p.Send(RunDoneMsg{Summary: summary()})
}

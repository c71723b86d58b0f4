package tui

// PanelDimensions holds calculated dimensions for the two panels.
type PanelDimensions struct {
	// TasksWidth is the width of the task list panel (left).
	TasksWidth int
	// OutputWidth is the width of the output panel (right).
	OutputWidth int
	// ContentHeight is the height available for panel content.
	ContentHeight int
}

// LayoutManager calculates panel dimensions based on terminal size.
type LayoutManager struct {
	totalWidth   int
	totalHeight  int
	headerHeight int
	footerHeight int
}

// NewLayoutManager creates a LayoutManager with the given terminal dimensions.
func NewLayoutManager(width, height int) *LayoutManager {
	return &LayoutManager{
		totalWidth:   width,
		totalHeight:  height,
		headerHeight: 1,
		footerHeight: 1,
	}
}

// SetSize updates the terminal dimensions.
func (l *LayoutManager) SetSize(width, height int) {
	l.totalWidth = width
	l.totalHeight = height
}

// Calculate returns panel dimensions for the current terminal size.
// Layout ratios: Tasks 30%, Output 70%.
func (l *LayoutManager) Calculate() PanelDimensions {
	const (
		minTasksWidth  = 24
		minOutputWidth = 40
	)

	tasksWidth := int(float64(l.totalWidth) * 0.30)
	if tasksWidth < minTasksWidth {
		tasksWidth = minTasksWidth
	}
	outputWidth := l.totalWidth - tasksWidth
	if outputWidth < minOutputWidth {
		outputWidth = minOutputWidth
		tasksWidth = l.totalWidth - outputWidth
		if tasksWidth < 1 {
			tasksWidth = 1
		}
	}

	contentHeight := l.totalHeight - l.headerHeight - l.footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	return PanelDimensions{
		TasksWidth:    tasksWidth,
		OutputWidth:   outputWidth,
		ContentHeight: contentHeight,
	}
}

// TotalWidth returns the current terminal width.
func (l *LayoutManager) TotalWidth() int {
	return l.totalWidth
}

// TotalHeight returns the current terminal height.
func (l *LayoutManager) TotalHeight() int {
	return l.totalHeight
}

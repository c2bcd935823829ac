package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/kanban/internal/model"
	"github.com/idilsaglam/kanban/internal/notify"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	draggedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Reverse(true)
	hoverStyle    = lipgloss.NewStyle().Underline(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	laneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	focusedLaneStyle = laneStyle.BorderForeground(lipgloss.Color("12"))
	dropLaneStyle    = laneStyle.BorderForeground(lipgloss.Color("214")).BorderStyle(lipgloss.DoubleBorder())
	inputBarStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	bannerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("9")).PaddingLeft(1)

	boxChecked   = "☑"
	boxUnchecked = "☐"
	boxActive    = "◐"
)

func laneTitleStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusInProgress:
		return accentStyle.Bold(true)
	case model.StatusCompleted:
		return successStyle.Bold(true)
	}
	return pendingStyle.Bold(true)
}

func box(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return accentStyle.Render(boxActive)
	case model.StatusCompleted:
		return successStyle.Render(boxChecked)
	}
	return mutedStyle.Render(boxUnchecked)
}

func toastStyle(l notify.Level) lipgloss.Style {
	switch l {
	case notify.Success:
		return successStyle
	case notify.Warning:
		return warningStyle
	}
	return errorStyle
}

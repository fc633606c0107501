// Package tui renders a live terminal view of a research run.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

func taskStateStyle(s models.TaskState) lipgloss.Style {
	switch s {
	case models.TaskSucceeded:
		return successStyle
	case models.TaskFailed:
		return errorStyle
	case models.TaskCancelled:
		return warnStyle
	case models.TaskRunning, models.TaskAssigned:
		return runningStyle
	default:
		return dimStyle
	}
}

func agentStatusStyle(s models.AgentStatus) lipgloss.Style {
	switch s {
	case models.AgentStatusIdle:
		return successStyle
	case models.AgentStatusBusy:
		return runningStyle
	case models.AgentStatusError:
		return errorStyle
	default:
		return dimStyle
	}
}

func runStateStyle(s models.RunState) lipgloss.Style {
	switch s {
	case models.RunSucceeded:
		return successStyle
	case models.RunFailed:
		return errorStyle
	case models.RunPartial, models.RunCancelled:
		return warnStyle
	default:
		return runningStyle
	}
}

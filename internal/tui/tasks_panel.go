package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// TasksPanel shows every plan step with the state of its latest task.
type TasksPanel struct {
	plan   *models.Plan
	result *models.AggregatedResult
	width  int
}

// NewTasksPanel creates a panel for the plan.
func NewTasksPanel(plan *models.Plan) *TasksPanel {
	return &TasksPanel{plan: plan}
}

// SetResult replaces the run snapshot the panel renders.
func (p *TasksPanel) SetResult(res *models.AggregatedResult) {
	p.result = res
}

// SetWidth sets the render width.
func (p *TasksPanel) SetWidth(w int) {
	p.width = w
}

// latest returns the newest task for a capability, if any.
func (p *TasksPanel) latest(c models.Capability) *models.Task {
	if p.result == nil {
		return nil
	}
	var found *models.Task
	for i := range p.result.Tasks {
		if p.result.Tasks[i].Capability == c {
			found = &p.result.Tasks[i]
		}
	}
	return found
}

// View renders the panel. spin is drawn next to running tasks.
func (p *TasksPanel) View(spin string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Plan  %s", p.plan)))
	b.WriteString("\n")

	for i, stage := range p.plan.Stages {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" stage %d", i+1)))
		b.WriteString("\n")
		for _, step := range stage.Steps {
			b.WriteString(p.row(step, spin))
			b.WriteString("\n")
		}
	}

	style := borderStyle
	if p.width > 4 {
		style = style.Width(p.width - 2)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (p *TasksPanel) row(step models.Step, spin string) string {
	t := p.latest(step.Capability)
	marker := " "
	state := string(models.TaskPending)
	agent := step.Primary()
	detail := ""
	style := dimStyle

	if t != nil {
		state = string(t.State)
		style = taskStateStyle(t.State)
		if t.ServedBy != "" && t.ServedBy != t.AgentID {
			agent = t.AgentID + " -> " + t.ServedBy
		} else if t.AgentID != "" {
			agent = t.AgentID
		}
		switch {
		case t.State == models.TaskRunning:
			marker = spin
			if t.StartedAt != nil {
				detail = time.Since(*t.StartedAt).Round(100 * time.Millisecond).String()
			}
		case t.Error != "":
			detail = t.Error
		case t.StartedAt != nil && t.FinishedAt != nil:
			detail = t.FinishedAt.Sub(*t.StartedAt).Round(time.Millisecond).String()
		}
		if n := len(t.Attempts); n > 1 {
			detail = fmt.Sprintf("%s (%d attempts)", detail, n)
		}
	} else if p.result != nil && p.result.State.Terminal() {
		state = string(models.TaskCancelled)
		style = warnStyle
		detail = "not started"
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		"  ", marker, " ",
		lipgloss.NewStyle().Width(18).Render(string(step.Capability)),
		style.Width(11).Render(state),
		lipgloss.NewStyle().Width(28).Render(agent),
		dimStyle.Render(detail),
	)
}

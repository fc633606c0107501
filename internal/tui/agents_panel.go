package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// AgentsPanel lists the agents with their status and counters.
type AgentsPanel struct {
	agents []models.AgentSnapshot
	width  int
}

// NewAgentsPanel creates an empty AgentsPanel.
func NewAgentsPanel() *AgentsPanel {
	return &AgentsPanel{}
}

// SetAgents replaces the agent snapshots.
func (p *AgentsPanel) SetAgents(agents []models.AgentSnapshot) {
	p.agents = agents
}

// SetWidth sets the render width.
func (p *AgentsPanel) SetWidth(w int) {
	p.width = w
}

// View renders the panel.
func (p *AgentsPanel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Agents"))
	b.WriteString("\n")
	if len(p.agents) == 0 {
		b.WriteString(dimStyle.Render("  no agents"))
	}
	for _, a := range p.agents {
		stats := fmt.Sprintf("%d ok / %d failed", a.Stats.SuccessfulTasks, a.Stats.FailedTasks)
		if a.Stats.ConsecutiveFailures > 0 {
			stats += fmt.Sprintf(", %d in a row", a.Stats.ConsecutiveFailures)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			"  ",
			lipgloss.NewStyle().Width(24).Render(a.Descriptor.ID),
			agentStatusStyle(a.Status).Width(9).Render(string(a.Status)),
			dimStyle.Render(stats),
		))
		b.WriteString("\n")
	}

	style := borderStyle
	if p.width > 4 {
		style = style.Width(p.width - 2)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

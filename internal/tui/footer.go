package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// keyMap holds the view's key bindings.
type keyMap struct {
	Cancel key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel run"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// TaskCounts holds the number of tasks in each outcome.
type TaskCounts struct {
	Done      int
	Failed    int
	Cancelled int
	Running   int
}

// CountTasks tallies the tasks of a run snapshot.
func CountTasks(res *models.AggregatedResult) TaskCounts {
	var c TaskCounts
	if res == nil {
		return c
	}
	for _, t := range res.Tasks {
		switch t.State {
		case models.TaskSucceeded:
			c.Done++
		case models.TaskFailed:
			c.Failed++
		case models.TaskCancelled:
			c.Cancelled++
		case models.TaskRunning, models.TaskAssigned:
			c.Running++
		}
	}
	return c
}

// Footer renders the status line and key hints.
type Footer struct {
	message string
	isError bool
	counts  TaskCounts
	help    help.Model
	keys    keyMap
	width   int

	hintStyle lipgloss.Style
}

// NewFooter creates a Footer with the view's bindings.
func NewFooter(keys keyMap) *Footer {
	return &Footer{
		help:      help.New(),
		keys:      keys,
		hintStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, isError bool) {
	f.message = message
	f.isError = isError
}

// SetTaskCounts updates the counts shown on the status line.
func (f *Footer) SetTaskCounts(c TaskCounts) {
	f.counts = c
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(w int) {
	f.width = w
	f.help.Width = w
}

// View renders the footer.
func (f *Footer) View() string {
	counts := fmt.Sprintf("%s  %s  %s  %s",
		successStyle.Render(fmt.Sprintf("%d done", f.counts.Done)),
		errorStyle.Render(fmt.Sprintf("%d failed", f.counts.Failed)),
		warnStyle.Render(fmt.Sprintf("%d cancelled", f.counts.Cancelled)),
		runningStyle.Render(fmt.Sprintf("%d running", f.counts.Running)),
	)

	line := counts
	if f.message != "" {
		style := f.hintStyle
		if f.isError {
			style = errorStyle
		}
		line += "  " + style.Render(f.message)
	}
	return line + "\n" + f.help.View(f.keys)
}

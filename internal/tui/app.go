package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// DefaultRefreshInterval is how often the view polls run and agent state.
const DefaultRefreshInterval = 200 * time.Millisecond

// Config wires a RunView to a running orchestrator.
type Config struct {
	// RunID is the run to follow.
	RunID string
	// Plan is the run's plan.
	Plan *models.Plan
	// Status returns the current run snapshot.
	Status func() (*models.AggregatedResult, error)
	// Agents returns the current agent snapshots. Optional.
	Agents func() []models.AgentSnapshot
	// Cancel cancels the run. Optional.
	Cancel func() error
	// Events is the orchestrator event stream. Optional.
	Events <-chan orchestrator.OrchestratorEvent
	// Interval overrides DefaultRefreshInterval.
	Interval time.Duration
}

// EventMsg carries one orchestrator event into the view.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

// eventsClosedMsg signals the event channel was closed.
type eventsClosedMsg struct{}

// refreshMsg triggers a status poll.
type refreshMsg time.Time

// DoneMsg is sent once the run is terminal.
type DoneMsg struct {
	Result *models.AggregatedResult
}

// WaitForEvent returns a command that blocks for the next event on ch.
func WaitForEvent(ch <-chan orchestrator.OrchestratorEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func refresh(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// RunView is a bubbletea model following one run until it finishes.
type RunView struct {
	cfg     Config
	keys    keyMap
	spinner spinner.Model

	tasks  *TasksPanel
	agents *AgentsPanel
	logs   *LogsPanel
	footer *Footer

	result    *models.AggregatedResult
	err       error
	done      bool
	cancelled bool
	width     int
	height    int
}

// NewRunView creates a RunView for cfg.
func NewRunView(cfg Config) *RunView {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	if cfg.Plan == nil {
		cfg.Plan = &models.Plan{}
	}
	keys := defaultKeyMap()
	return &RunView{
		cfg:  cfg,
		keys: keys,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(runningStyle),
		),
		tasks:  NewTasksPanel(cfg.Plan),
		agents: NewAgentsPanel(),
		logs:   NewLogsPanel(0),
		footer: NewFooter(keys),
	}
}

// Init implements tea.Model.
func (v *RunView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.poll, WaitForEvent(v.cfg.Events))
}

// poll reads the run and agent state.
func (v *RunView) poll() tea.Msg {
	res, err := v.cfg.Status()
	if err != nil {
		return err
	}
	if res.State.Terminal() {
		return DoneMsg{Result: res}
	}
	return res
}

// Update implements tea.Model.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
		v.layout()
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Cancel):
			if v.cfg.Cancel != nil && !v.done && !v.cancelled {
				v.cancelled = true
				if err := v.cfg.Cancel(); err != nil {
					v.footer.SetMessage(fmt.Sprintf("cancel: %v", err), true)
				} else {
					v.footer.SetMessage("cancelling...", false)
				}
			}
		}
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case EventMsg:
		if msg.Event.RunID == v.cfg.RunID {
			v.logs.AddEvent(msg.Event)
		}
		if v.done {
			return v, nil
		}
		return v, WaitForEvent(v.cfg.Events)

	case eventsClosedMsg:
		v.cfg.Events = nil
		return v, nil

	case refreshMsg:
		if v.done {
			return v, nil
		}
		return v, v.poll

	case *models.AggregatedResult:
		v.setResult(msg)
		return v, refresh(v.cfg.Interval)

	case DoneMsg:
		v.setResult(msg.Result)
		v.done = true
		v.footer.SetMessage(fmt.Sprintf("run %s", msg.Result.State), msg.Result.State == models.RunFailed)
		return v, tea.Quit

	case error:
		v.err = msg
		v.footer.SetMessage(msg.Error(), true)
		return v, tea.Quit
	}
	return v, nil
}

func (v *RunView) setResult(res *models.AggregatedResult) {
	v.result = res
	v.tasks.SetResult(res)
	v.footer.SetTaskCounts(CountTasks(res))
	if v.cfg.Agents != nil {
		v.agents.SetAgents(v.cfg.Agents())
	}
}

func (v *RunView) layout() {
	v.tasks.SetWidth(v.width)
	v.agents.SetWidth(v.width)
	v.footer.SetWidth(v.width)
	lines := v.height - v.cfg.Plan.TaskCount() - len(v.cfg.Plan.Stages) - len(v.agents.agents) - 14
	if lines < 3 {
		lines = 3
	}
	v.logs.SetSize(v.width, lines)
}

// View implements tea.Model.
func (v *RunView) View() string {
	sections := []string{v.header(), v.tasks.View(v.spinner.View())}
	if v.cfg.Agents != nil {
		sections = append(sections, v.agents.View())
	}
	sections = append(sections, v.logs.View(), v.footer.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (v *RunView) header() string {
	state := models.RunPending
	elapsed := time.Duration(0)
	if v.result != nil {
		state = v.result.State
		if !v.result.StartedAt.IsZero() {
			elapsed = v.result.Duration()
		}
	}
	return titleStyle.Render("researchmind") +
		dimStyle.Render(" run "+v.cfg.RunID+" ") +
		runStateStyle(state).Render(string(state)) +
		dimStyle.Render(" "+elapsed.Round(100*time.Millisecond).String())
}

// Result returns the last run snapshot seen.
func (v *RunView) Result() *models.AggregatedResult {
	return v.result
}

// Err returns the error that stopped the view, if any.
func (v *RunView) Err() error {
	return v.err
}

// Run shows the view until the run finishes or the user quits, and returns
// the last snapshot seen.
func Run(cfg Config, opts ...tea.ProgramOption) (*models.AggregatedResult, error) {
	view := NewRunView(cfg)
	if _, err := tea.NewProgram(view, opts...).Run(); err != nil {
		return nil, err
	}
	return view.Result(), view.Err()
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/researchmind/internal/orchestrator"
)

// LogLevel represents the severity of a log line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is one line of the logs panel.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	AgentID   string
	Message   string
}

// LogsPanel keeps the most recent run events as log lines.
type LogsPanel struct {
	logs    []LogEntry
	maxLogs int
	width   int
	height  int

	infoStyle  lipgloss.Style
	timeStyle  lipgloss.Style
	agentStyle lipgloss.Style
}

// NewLogsPanel creates a LogsPanel that keeps up to maxLogs entries.
func NewLogsPanel(maxLogs int) *LogsPanel {
	if maxLogs <= 0 {
		maxLogs = 500
	}
	return &LogsPanel{
		maxLogs:    maxLogs,
		height:     8,
		infoStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		timeStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		agentStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
	}
}

// AddLog appends an entry, dropping the oldest past the limit.
func (p *LogsPanel) AddLog(entry LogEntry) {
	p.logs = append(p.logs, entry)
	if len(p.logs) > p.maxLogs {
		p.logs = p.logs[len(p.logs)-p.maxLogs:]
	}
}

// AddEvent converts an orchestrator event into a log entry.
func (p *LogsPanel) AddEvent(ev orchestrator.OrchestratorEvent) {
	p.AddLog(EntryFromEvent(ev))
}

// Len returns the number of stored entries.
func (p *LogsPanel) Len() int {
	return len(p.logs)
}

// SetSize updates the panel dimensions. height is the number of log lines shown.
func (p *LogsPanel) SetSize(width, height int) {
	p.width = width
	if height > 0 {
		p.height = height
	}
}

// EntryFromEvent describes an orchestrator event as a log line.
func EntryFromEvent(ev orchestrator.OrchestratorEvent) LogEntry {
	entry := LogEntry{
		Timestamp: ev.Timestamp,
		Level:     LogLevelInfo,
		AgentID:   ev.AgentID,
	}
	switch ev.Type {
	case orchestrator.EventRunStarted:
		entry.Message = "run started: " + ev.Message
	case orchestrator.EventRunFinished:
		entry.Message = fmt.Sprintf("run %s after %s", ev.RunState, ev.Duration.Round(time.Millisecond))
		if ev.Kind != "" {
			entry.Message += fmt.Sprintf(" (%s)", ev.Kind)
		}
	case orchestrator.EventStageStarted:
		entry.Message = fmt.Sprintf("stage %d started", ev.Stage+1)
	case orchestrator.EventStageFinished:
		entry.Message = fmt.Sprintf("stage %d finished", ev.Stage+1)
	case orchestrator.EventTaskStarted:
		entry.Message = fmt.Sprintf("%s started", ev.Capability)
	case orchestrator.EventTaskSucceeded:
		entry.Message = fmt.Sprintf("%s succeeded in %s", ev.Capability, ev.Duration.Round(time.Millisecond))
	case orchestrator.EventTaskRetried:
		entry.Level = LogLevelWarn
		entry.Message = fmt.Sprintf("%s retried after %s", ev.Capability, ev.Kind)
	case orchestrator.EventTaskCancelled:
		entry.Level = LogLevelWarn
		entry.Message = fmt.Sprintf("%s cancelled", ev.Capability)
	case orchestrator.EventTaskFailed:
		entry.Level = LogLevelError
		entry.Message = fmt.Sprintf("%s failed", ev.Capability)
	default:
		entry.Message = string(ev.Type)
	}
	if ev.Error != nil && ev.Type != orchestrator.EventRunStarted {
		entry.Message += ": " + ev.Error.Error()
	}
	return entry
}

// View renders the newest entries that fit the panel height.
func (p *LogsPanel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Events"))
	b.WriteString("\n")

	start := 0
	if len(p.logs) > p.height {
		start = len(p.logs) - p.height
	}
	if len(p.logs) == 0 {
		b.WriteString(dimStyle.Render("  waiting for events"))
	}
	for _, entry := range p.logs[start:] {
		b.WriteString(p.renderEntry(entry))
		b.WriteString("\n")
	}

	style := borderStyle
	if p.width > 4 {
		style = style.Width(p.width - 2)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (p *LogsPanel) renderEntry(e LogEntry) string {
	level := p.infoStyle
	switch e.Level {
	case LogLevelWarn:
		level = warnStyle
	case LogLevelError:
		level = errorStyle
	}

	line := p.timeStyle.Render(e.Timestamp.Format("15:04:05")) + " " +
		level.Render(fmt.Sprintf("%-5s", e.Level)) + " "
	if e.AgentID != "" {
		line += p.agentStyle.Render("["+e.AgentID+"]") + " "
	}
	line += e.Message

	if p.width > 8 && lipgloss.Width(line) > p.width-4 {
		line = truncate(line, p.width-4)
	}
	return line
}

// truncate shortens s to at most n visible cells.
func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > n-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

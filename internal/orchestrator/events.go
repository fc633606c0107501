package orchestrator

import (
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has started executing its plan.
	EventRunStarted EventType = "run_started"
	// EventRunFinished indicates a run reached a terminal state.
	EventRunFinished EventType = "run_finished"
	// EventStageStarted indicates a stage's tasks were created.
	EventStageStarted EventType = "stage_started"
	// EventStageFinished indicates every task of a stage is terminal.
	EventStageFinished EventType = "stage_finished"
	// EventTaskStarted indicates a task is running on its first agent.
	EventTaskStarted EventType = "task_started"
	// EventTaskRetried indicates a task is being retried.
	EventTaskRetried EventType = "task_retried"
	// EventTaskSucceeded indicates a task returned a result.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskCancelled indicates a task was cancelled.
	EventTaskCancelled EventType = "task_cancelled"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
// These events are used to update the TUI and track progress.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the run the event belongs to.
	RunID string
	// Stage is the zero-based stage index, if applicable.
	Stage int
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Capability is the capability of the related task, if applicable.
	Capability models.Capability
	// RunState is set on run events.
	RunState models.RunState
	// Kind classifies failures.
	Kind models.ErrorKind
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time of the task or run.
	Duration time.Duration
}

package models

import (
	"encoding/json"
	"time"
)

// RunState is the overall state of a run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	// RunPartial means a best-effort run finished every stage but some
	// capability slot has no successful result.
	RunPartial   RunState = "partial"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Valid returns true if the state is a known value.
func (s RunState) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunSucceeded, RunPartial, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true once the run can no longer change.
func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunPartial || s == RunFailed || s == RunCancelled
}

// SlotState summarises the outcome for one capability.
type SlotState string

const (
	SlotPending   SlotState = "pending"
	SlotSucceeded SlotState = "succeeded"
	SlotFailed    SlotState = "failed"
	SlotCancelled SlotState = "cancelled"
)

// Slot is the aggregated outcome for one capability across the run.
type Slot struct {
	Capability Capability      `json:"capability"`
	State      SlotState       `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  ErrorKind       `json:"error_kind,omitempty"`
	TaskIDs    []string        `json:"task_ids"`
}

// AggregatedResult is the run outcome returned to callers. It is valid at
// any point in the run; partial results are present even on failure.
type AggregatedResult struct {
	RunID       string               `json:"run_id"`
	Description string               `json:"description,omitempty"`
	State       RunState             `json:"state"`
	Cause       ErrorKind            `json:"cause,omitempty"`
	Error       string               `json:"error,omitempty"`
	Topology    Topology             `json:"topology"`
	Policy      ContinuationPolicy   `json:"policy"`
	Stages      int                  `json:"stages"`
	Slots       map[Capability]*Slot `json:"slots"`
	Tasks       []Task               `json:"tasks"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
}

// Succeeded returns the capabilities whose slot succeeded.
func (r *AggregatedResult) Succeeded() []Capability {
	var caps []Capability
	for _, c := range AllCapabilities() {
		if s, ok := r.Slots[c]; ok && s.State == SlotSucceeded {
			caps = append(caps, c)
		}
	}
	return caps
}

// Duration returns the run's wall time, or the time so far if it is still running.
func (r *AggregatedResult) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is what the proxy reports to the agent manager when a call finishes.
type Outcome struct {
	TaskID   string        `json:"task_id"`
	AgentID  string        `json:"agent_id"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Duration time.Duration `json:"duration"`
	Finished time.Time     `json:"finished"`
}

// Success reports whether the call returned a result.
func (o Outcome) Success() bool {
	return o.Kind == ErrorKindNone
}

// SystemStats is a process-wide summary of agent activity.
type SystemStats struct {
	TotalAgents     int                 `json:"total_agents"`
	ByStatus        map[AgentStatus]int `json:"by_status"`
	TotalTasks      int                 `json:"total_tasks"`
	SuccessfulTasks int                 `json:"successful_tasks"`
	FailedTasks     int                 `json:"failed_tasks"`
	SuccessRate     float64             `json:"success_rate"`
	AverageTime     time.Duration       `json:"average_time"`
}

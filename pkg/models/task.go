package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// TaskPending indicates the task was created but has no agent yet.
	TaskPending TaskState = "pending"
	// TaskAssigned indicates an agent was chosen.
	TaskAssigned TaskState = "assigned"
	// TaskRunning indicates the proxy invocation is in flight.
	TaskRunning TaskState = "running"
	// TaskSucceeded indicates the worker returned a result.
	TaskSucceeded TaskState = "succeeded"
	// TaskFailed indicates retries were exhausted or the failure was not retryable.
	TaskFailed TaskState = "failed"
	// TaskCancelled indicates the run was cancelled or hit its deadline.
	TaskCancelled TaskState = "cancelled"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskAssigned, TaskRunning, TaskSucceeded, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true for succeeded, failed and cancelled.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCancelled
}

// rank orders the non-terminal states; terminal states share the top rank.
func (s TaskState) rank() int {
	switch s {
	case TaskPending:
		return 0
	case TaskAssigned:
		return 1
	case TaskRunning:
		return 2
	default:
		return 3
	}
}

// CanTransition reports whether moving from s to next goes strictly forward.
// Cancellation is reachable from every non-terminal state; success and
// failure require the task to be running.
func (s TaskState) CanTransition(next TaskState) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	switch next {
	case TaskCancelled:
		return true
	case TaskSucceeded, TaskFailed:
		return s == TaskRunning
	default:
		return next.rank() > s.rank()
	}
}

// Attempt records one proxy invocation made on behalf of a task.
type Attempt struct {
	// AgentID is the agent invoked.
	AgentID string `json:"agent_id"`
	// ErrorKind is empty when the attempt succeeded.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`
	// StartedAt is when the invocation began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the invocation returned.
	FinishedAt time.Time `json:"finished_at"`
}

// Task is the unit of work executed against one worker agent.
type Task struct {
	// ID is unique and monotonically assigned (task_000001, task_000002, ...).
	ID string `json:"id"`
	// RunID is the run this task belongs to.
	RunID string `json:"run_id"`
	// Stage is the zero-based plan stage index.
	Stage int `json:"stage"`
	// Capability is the capability this task requires.
	Capability Capability `json:"capability"`
	// Payload is the opaque request data sent to the worker.
	Payload json.RawMessage `json:"payload,omitempty"`
	// State is the current lifecycle state.
	State TaskState `json:"state"`
	// AgentID is the agent assigned at TaskAssigned. It never changes afterwards.
	AgentID string `json:"agent_id,omitempty"`
	// ServedBy is the agent that produced the final outcome. It differs from
	// AgentID when an unreachable agent was replaced by an alternate.
	ServedBy string `json:"served_by,omitempty"`
	// Attempts records every invocation made for this task.
	Attempts []Attempt `json:"attempts,omitempty"`
	// Result is set when the task succeeded.
	Result json.RawMessage `json:"result,omitempty"`
	// Error is set when the task failed or was cancelled.
	Error string `json:"error,omitempty"`
	// ErrorKind classifies Error.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	// CreatedAt is when the engine created the task.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the first invocation began.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// FinishedAt is when the task reached a terminal state.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FormatTaskID renders the sequence number of a task as its ID.
func FormatTaskID(seq uint64) string {
	return fmt.Sprintf("task_%06d", seq)
}

// Transition moves the task to next, stamping timestamps.
// It returns an error if the move would revisit or skip backwards.
func (t *Task) Transition(next TaskState, at time.Time) error {
	if !t.State.CanTransition(next) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.ID, t.State, next)
	}
	t.State = next
	switch {
	case next == TaskRunning && t.StartedAt == nil:
		t.StartedAt = &at
	case next.Terminal():
		t.FinishedAt = &at
	}
	return nil
}

// Clone returns a deep copy safe to hand to callers.
func (t *Task) Clone() Task {
	c := *t
	if t.Payload != nil {
		c.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.Attempts != nil {
		c.Attempts = append([]Attempt(nil), t.Attempts...)
	}
	if t.StartedAt != nil {
		s := *t.StartedAt
		c.StartedAt = &s
	}
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		c.FinishedAt = &f
	}
	return c
}

package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskState_Valid(t *testing.T) {
	for _, s := range []TaskState{TaskPending, TaskAssigned, TaskRunning, TaskSucceeded, TaskFailed, TaskCancelled} {
		if !s.Valid() {
			t.Errorf("TaskState(%q).Valid() = false, want true", s)
		}
	}
	for _, s := range []TaskState{"", "done", "in_progress"} {
		if s.Valid() {
			t.Errorf("TaskState(%q).Valid() = true, want false", s)
		}
	}
}

func TestTaskState_CanTransition(t *testing.T) {
	tests := []struct {
		from TaskState
		to   TaskState
		want bool
	}{
		{TaskPending, TaskAssigned, true},
		{TaskPending, TaskRunning, true},
		{TaskPending, TaskCancelled, true},
		{TaskPending, TaskSucceeded, false},
		{TaskPending, TaskFailed, false},
		{TaskAssigned, TaskRunning, true},
		{TaskAssigned, TaskCancelled, true},
		{TaskAssigned, TaskPending, false},
		{TaskAssigned, TaskFailed, false},
		{TaskRunning, TaskSucceeded, true},
		{TaskRunning, TaskFailed, true},
		{TaskRunning, TaskCancelled, true},
		{TaskRunning, TaskAssigned, false},
		{TaskRunning, TaskRunning, false},
		{TaskSucceeded, TaskFailed, false},
		{TaskFailed, TaskRunning, false},
		{TaskCancelled, TaskCancelled, false},
		{TaskState("bogus"), TaskRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%s.CanTransition(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTask_Transition(t *testing.T) {
	now := time.Now()
	task := &Task{ID: FormatTaskID(1), State: TaskPending, CreatedAt: now}

	steps := []TaskState{TaskAssigned, TaskRunning, TaskSucceeded}
	for i, next := range steps {
		if err := task.Transition(next, now.Add(time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("Transition(%s) error = %v", next, err)
		}
	}

	if task.StartedAt == nil || !task.StartedAt.Equal(now.Add(2*time.Second)) {
		t.Errorf("StartedAt = %v, want %v", task.StartedAt, now.Add(2*time.Second))
	}
	if task.FinishedAt == nil || !task.FinishedAt.Equal(now.Add(3*time.Second)) {
		t.Errorf("FinishedAt = %v, want %v", task.FinishedAt, now.Add(3*time.Second))
	}
	if err := task.Transition(TaskFailed, now); err == nil {
		t.Error("Transition from terminal state succeeded, want error")
	}
}

func TestFormatTaskID(t *testing.T) {
	tests := []struct {
		seq  uint64
		want string
	}{
		{1, "task_000001"},
		{42, "task_000042"},
		{1234567, "task_1234567"},
	}
	for _, tt := range tests {
		if got := FormatTaskID(tt.seq); got != tt.want {
			t.Errorf("FormatTaskID(%d) = %q, want %q", tt.seq, got, tt.want)
		}
	}
}

func TestTask_CloneIsIndependent(t *testing.T) {
	started := time.Now()
	task := &Task{
		ID:        "task_000001",
		Payload:   json.RawMessage(`{"q":"a"}`),
		Result:    json.RawMessage(`{"r":1}`),
		Attempts:  []Attempt{{AgentID: "lit"}},
		StartedAt: &started,
	}

	c := task.Clone()
	c.Payload[2] = 'x'
	c.Result[2] = 'x'
	c.Attempts[0].AgentID = "other"
	*c.StartedAt = started.Add(time.Hour)

	if string(task.Payload) != `{"q":"a"}` {
		t.Errorf("original Payload = %s, modified through clone", task.Payload)
	}
	if string(task.Result) != `{"r":1}` {
		t.Errorf("original Result = %s, modified through clone", task.Result)
	}
	if task.Attempts[0].AgentID != "lit" {
		t.Errorf("original Attempts[0].AgentID = %q, want lit", task.Attempts[0].AgentID)
	}
	if !task.StartedAt.Equal(started) {
		t.Errorf("original StartedAt = %v, want %v", task.StartedAt, started)
	}
}

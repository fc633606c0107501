package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// Run is one execution of a plan. The engine owns its tasks and mutates
// them under the run lock; callers only ever see snapshots.
type Run struct {
	ID      string
	Request models.Request
	Plan    *models.Plan

	mu       sync.RWMutex
	state    models.RunState
	cause    models.ErrorKind
	err      string
	tasks    []*models.Task
	started  time.Time
	finished *time.Time
	cancel   context.CancelCauseFunc

	done chan struct{}
}

// NewRun creates a pending run for a routed request.
func NewRun(id string, req models.Request, plan *models.Plan) *Run {
	return &Run{
		ID:      id,
		Request: req,
		Plan:    plan,
		state:   models.RunPending,
		done:    make(chan struct{}),
	}
}

// State returns the current run state.
func (r *Run) State() models.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Done is closed once the run is terminal.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel asks a live run to stop. It returns false if the run is already
// terminal or was never started with a cancellable context.
func (r *Run) Cancel() bool {
	r.mu.RLock()
	cancel, state := r.cancel, r.state
	r.mu.RUnlock()
	if cancel == nil || state.Terminal() {
		return false
	}
	cancel(models.ErrCancelled)
	return true
}

func (r *Run) setCancel(cancel context.CancelCauseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = cancel
}

func (r *Run) begin(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = models.RunRunning
	r.started = at
}

// finish records the terminal state. Only the first call has effect.
func (r *Run) finish(state models.RunState, cause models.ErrorKind, msg string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = state
	r.cause = cause
	r.err = msg
	r.finished = &at
	close(r.done)
}

func (r *Run) addTask(t *models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
}

// update applies fn to a task under the run lock.
func (r *Run) update(t *models.Task, fn func(t *models.Task) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(t)
}

// priorResults returns the results of succeeded tasks keyed by capability.
// A later task overwrites an earlier one for the same capability.
func (r *Run) priorResults() map[models.Capability]json.RawMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.Capability]json.RawMessage)
	for _, t := range r.tasks {
		if t.State == models.TaskSucceeded {
			out[t.Capability] = append(json.RawMessage(nil), t.Result...)
		}
	}
	return out
}

// Snapshot returns the aggregated result as of now. It is safe to call at
// any point in the run and always carries the partial results obtained.
func (r *Run) Snapshot() *models.AggregatedResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := &models.AggregatedResult{
		RunID:       r.ID,
		Description: r.Request.Description,
		State:       r.state,
		Cause:       r.cause,
		Error:       r.err,
		Slots:       make(map[models.Capability]*models.Slot),
		StartedAt:   r.started,
		Tasks:       make([]models.Task, 0, len(r.tasks)),
	}
	if r.Plan != nil {
		res.Topology = r.Plan.Topology
		res.Policy = r.Plan.Policy
		res.Stages = len(r.Plan.Stages)
		for _, c := range r.Plan.Capabilities() {
			if _, ok := res.Slots[c]; !ok {
				res.Slots[c] = &models.Slot{Capability: c, State: models.SlotPending}
			}
		}
	}
	if r.finished != nil {
		f := *r.finished
		res.FinishedAt = &f
	}

	for _, t := range r.tasks {
		res.Tasks = append(res.Tasks, t.Clone())
		s, ok := res.Slots[t.Capability]
		if !ok {
			s = &models.Slot{Capability: t.Capability}
			res.Slots[t.Capability] = s
		}
		s.TaskIDs = append(s.TaskIDs, t.ID)
		s.Result, s.Error, s.ErrorKind = nil, "", models.ErrorKindNone
		switch t.State {
		case models.TaskSucceeded:
			s.State = models.SlotSucceeded
			s.Result = append(json.RawMessage(nil), t.Result...)
		case models.TaskFailed:
			s.State = models.SlotFailed
			s.Error, s.ErrorKind = t.Error, t.ErrorKind
		case models.TaskCancelled:
			s.State = models.SlotCancelled
			s.Error, s.ErrorKind = t.Error, t.ErrorKind
		default:
			s.State = models.SlotPending
		}
	}

	if r.state.Terminal() {
		for _, s := range res.Slots {
			if len(s.TaskIDs) == 0 {
				s.State = models.SlotCancelled
				s.Error = "stage not started"
				s.ErrorKind = models.ErrorKindCancelled
			}
		}
	}
	return res
}

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/orchestrator/policy"
	"github.com/ShayCichocki/researchmind/internal/router"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// errStageTimeout is the cancellation cause of a stage context whose
// stage timeout expired.
var errStageTimeout = fmt.Errorf("stage timeout: %w", models.ErrTimeout)

// Observer receives execution outcomes. Implementations must be safe for
// concurrent use; they are called from task goroutines.
type Observer interface {
	TaskFinished(t models.Task)
	TaskRetried(c models.Capability, reason models.ErrorKind)
	RunFinished(res *models.AggregatedResult)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Invoker calls worker agents. Required.
	Invoker agent.Invoker
	// Manager supplies alternates for failover. Required.
	Manager *manager.Manager
	// Policy holds timeouts and retry limits. Zero values take defaults.
	Policy policy.ExecutionPolicy
	// Emitter receives lifecycle events. Optional.
	Emitter *EventEmitter
	// Observer receives outcomes. Optional.
	Observer Observer
	// Logger receives debug output. Optional.
	Logger *DebugLogger
}

// Engine executes plans stage by stage. One Engine serves every run of a
// process; task IDs are unique across all of them.
type Engine struct {
	invoker  agent.Invoker
	mgr      *manager.Manager
	policy   policy.ExecutionPolicy
	emitter  *EventEmitter
	observer Observer
	log      *DebugLogger
	seq      atomic.Uint64
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	p := policy.Config{Execution: cfg.Policy}
	_ = p.Validate()
	return &Engine{
		invoker:  cfg.Invoker,
		mgr:      cfg.Manager,
		policy:   p.Execution,
		emitter:  cfg.Emitter,
		observer: cfg.Observer,
		log:      cfg.Logger,
	}
}

// Run executes the run's plan and returns the aggregated result.
//
// Stages run in order and stage N+1 tasks are created only after every
// stage N task is terminal. Cancelling ctx, or calling run.Cancel, stops
// the run: running tasks become cancelled and later stages are never
// created. When the plan deadline expires the run fails with cause
// deadline_exceeded. Partial results are returned in every case.
func (e *Engine) Run(ctx context.Context, run *Run) *models.AggregatedResult {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	run.setCancel(cancel)

	ctx, stop := context.WithDeadlineCause(ctx, time.Now().Add(e.policy.PlanDeadline), models.ErrDeadlineExceeded)
	defer stop()

	run.begin(time.Now())
	if run.Plan == nil {
		return e.conclude(run, models.RunFailed, models.ErrorKindInternal, "run has no plan")
	}

	e.log.Log("[engine] run %s started: %s", run.ID, run.Plan)
	e.emitter.Emit(OrchestratorEvent{Type: EventRunStarted, RunID: run.ID, Message: run.Plan.String()})

	for i, stage := range run.Plan.Stages {
		if ctx.Err() != nil {
			break
		}
		failed := e.runStage(ctx, run, i, stage)
		if ctx.Err() != nil {
			break
		}
		if failed != nil {
			msg := fmt.Sprintf("stage %d: %s %s: %s", i, failed.Capability, failed.State, failed.Error)
			return e.conclude(run, models.RunFailed, failed.ErrorKind, msg)
		}
	}

	if ctx.Err() != nil {
		kind := stopKind(ctx)
		if kind == models.ErrorKindDeadlineExceeded {
			return e.conclude(run, models.RunFailed, kind, models.ErrDeadlineExceeded.Error())
		}
		return e.conclude(run, models.RunCancelled, models.ErrorKindCancelled, "run cancelled")
	}

	for _, s := range run.Snapshot().Slots {
		if s.State != models.SlotSucceeded {
			return e.conclude(run, models.RunPartial, models.ErrorKindNone, "")
		}
	}
	return e.conclude(run, models.RunSucceeded, models.ErrorKindNone, "")
}

func (e *Engine) conclude(run *Run, state models.RunState, cause models.ErrorKind, msg string) *models.AggregatedResult {
	run.finish(state, cause, msg, time.Now())
	res := run.Snapshot()

	e.log.Log("[engine] run %s finished: state=%s cause=%s duration=%s", run.ID, res.State, res.Cause, res.Duration())
	e.emitter.Emit(OrchestratorEvent{
		Type:     EventRunFinished,
		RunID:    run.ID,
		RunState: res.State,
		Kind:     res.Cause,
		Message:  res.Error,
		Duration: res.Duration(),
	})
	if e.observer != nil {
		e.observer.RunFinished(res)
	}
	return res
}

// runStage creates the stage's tasks, runs them concurrently and waits for
// all of them. It returns the first unsuccessful task when the stage fails
// the plan's continuation policy, or nil.
func (e *Engine) runStage(ctx context.Context, run *Run, idx int, stage models.Stage) *models.Task {
	ctx, cancel := context.WithTimeoutCause(ctx, e.policy.StageTimeout, errStageTimeout)
	defer cancel()

	var prior map[models.Capability]json.RawMessage
	for _, step := range stage.Steps {
		if step.UsePriorResults {
			prior = run.priorResults()
			break
		}
	}

	// Agent state has moved since planning; rank again with the planned
	// order as the tie-break.
	steps := router.AssignStage(e.mgr, stage.Steps)

	now := time.Now()
	tasks := make([]*models.Task, len(steps))
	for j, step := range steps {
		t := &models.Task{
			ID:         models.FormatTaskID(e.seq.Add(1)),
			RunID:      run.ID,
			Stage:      idx,
			Capability: step.Capability,
			Payload:    step.Payload,
			State:      models.TaskPending,
			CreatedAt:  now,
		}
		run.addTask(t)
		tasks[j] = t
	}
	e.log.Log("[engine] run %s stage %d: %d tasks", run.ID, idx, len(tasks))
	e.emitter.Emit(OrchestratorEvent{Type: EventStageStarted, RunID: run.ID, Stage: idx})

	// A plain Group: one task failing must not cancel its siblings.
	var g errgroup.Group
	for j, step := range steps {
		g.Go(func() error {
			e.runTask(ctx, run, tasks[j], step, prior)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	var firstFailed *models.Task
	for _, t := range tasks {
		if t.State == models.TaskSucceeded {
			succeeded++
		} else if firstFailed == nil {
			firstFailed = t
		}
	}
	e.emitter.Emit(OrchestratorEvent{
		Type:    EventStageFinished,
		RunID:   run.ID,
		Stage:   idx,
		Message: fmt.Sprintf("%d/%d succeeded", succeeded, len(tasks)),
	})

	switch {
	case firstFailed == nil:
		return nil
	case run.Plan.Policy == models.PolicyBestEffort && succeeded > 0:
		return nil
	default:
		return firstFailed
	}
}

// runTask drives one task to a terminal state.
//
// Retry rules:
//   - timeout: retry on the same agent up to MaxRetries times
//   - unreachable: fail over once to an alternate agent not yet tried
//   - remote error: no retry
func (e *Engine) runTask(ctx context.Context, run *Run, t *models.Task, step models.Step, prior map[models.Capability]json.RawMessage) {
	if ctx.Err() != nil {
		e.stopTask(ctx, run, t, "")
		return
	}

	candidates := step.Candidates
	if len(candidates) == 0 {
		e.finishTask(run, t, models.TaskCancelled, "", nil, models.ErrorKindNoEligibleAgent,
			fmt.Sprintf("%s: %s", models.ErrNoEligibleAgent, step.Capability))
		return
	}

	agentID := candidates[0]
	now := time.Now()
	if err := run.update(t, func(t *models.Task) error {
		t.AgentID = agentID
		if err := t.Transition(models.TaskAssigned, now); err != nil {
			return err
		}
		return t.Transition(models.TaskRunning, now)
	}); err != nil {
		e.log.Log("[engine] %v", err)
	}
	e.emitter.Emit(OrchestratorEvent{
		Type:       EventTaskStarted,
		RunID:      run.ID,
		Stage:      t.Stage,
		TaskID:     t.ID,
		AgentID:    agentID,
		Capability: step.Capability,
	})

	inv := models.Invocation{TaskID: t.ID, Capability: step.Capability, Payload: step.Payload}
	if step.UsePriorResults {
		inv.Context = prior
	}

	tried := map[string]bool{agentID: true}
	timeouts, failedOver := 0, false
	for {
		started := time.Now()
		result, err := e.invoker.Invoke(ctx, agentID, inv, e.policy.TaskTimeout)
		kind := models.KindOf(err)

		attempt := models.Attempt{AgentID: agentID, ErrorKind: kind, StartedAt: started, FinishedAt: time.Now()}
		if err != nil {
			attempt.Error = err.Error()
		}
		_ = run.update(t, func(t *models.Task) error {
			t.Attempts = append(t.Attempts, attempt)
			return nil
		})

		if err == nil {
			e.finishTask(run, t, models.TaskSucceeded, agentID, result, models.ErrorKindNone, "")
			return
		}
		if ctx.Err() != nil {
			e.stopTask(ctx, run, t, agentID)
			return
		}

		switch {
		case kind == models.ErrorKindTimeout && timeouts < e.policy.MaxRetries:
			timeouts++
			e.retried(run, t, agentID, kind, fmt.Sprintf("retry %d on %s", timeouts, agentID))
			continue
		case kind == models.ErrorKindUnreachable && !failedOver:
			if alt := e.alternate(step.Capability, tried); alt != "" {
				failedOver = true
				tried[alt] = true
				e.retried(run, t, alt, kind, fmt.Sprintf("failing over from %s to %s", agentID, alt))
				agentID = alt
				continue
			}
		}

		e.finishTask(run, t, models.TaskFailed, agentID, nil, kind, err.Error())
		return
	}
}

// alternate returns the best-ranked agent for c that has not been tried
// and is not in the Error state, or "".
func (e *Engine) alternate(c models.Capability, tried map[string]bool) string {
	for _, id := range e.mgr.Recommend(c) {
		if tried[id] {
			continue
		}
		if status, err := e.mgr.Status(id); err != nil || status == models.AgentStatusError {
			continue
		}
		return id
	}
	return ""
}

// stopTask ends a task whose context is done. A stage timeout fails a
// running task; caller cancellation and the plan deadline cancel it.
func (e *Engine) stopTask(ctx context.Context, run *Run, t *models.Task, agentID string) {
	kind := stopKind(ctx)
	state := models.TaskCancelled
	if kind == models.ErrorKindTimeout && agentID != "" {
		state = models.TaskFailed
	}
	e.finishTask(run, t, state, agentID, nil, kind, context.Cause(ctx).Error())
}

func (e *Engine) finishTask(run *Run, t *models.Task, state models.TaskState, agentID string, result json.RawMessage, kind models.ErrorKind, msg string) {
	var snap models.Task
	err := run.update(t, func(t *models.Task) error {
		if agentID != "" {
			t.ServedBy = agentID
		}
		if state == models.TaskSucceeded {
			t.Result = result
		} else {
			t.Error, t.ErrorKind = msg, kind
		}
		if err := t.Transition(state, time.Now()); err != nil {
			return err
		}
		snap = t.Clone()
		return nil
	})
	if err != nil {
		e.log.Log("[engine] %v", err)
		return
	}

	ev := OrchestratorEvent{
		RunID:      run.ID,
		Stage:      snap.Stage,
		TaskID:     snap.ID,
		AgentID:    snap.ServedBy,
		Capability: snap.Capability,
		Kind:       snap.ErrorKind,
		Message:    snap.Error,
	}
	if snap.StartedAt != nil && snap.FinishedAt != nil {
		ev.Duration = snap.FinishedAt.Sub(*snap.StartedAt)
	}
	switch state {
	case models.TaskSucceeded:
		ev.Type = EventTaskSucceeded
	case models.TaskFailed:
		ev.Type = EventTaskFailed
	default:
		ev.Type = EventTaskCancelled
	}
	e.log.Log("[engine] task %s (%s) %s via %s %s", snap.ID, snap.Capability, snap.State, snap.ServedBy, snap.Error)
	e.emitter.Emit(ev)
	if e.observer != nil {
		e.observer.TaskFinished(snap)
	}
}

func (e *Engine) retried(run *Run, t *models.Task, agentID string, reason models.ErrorKind, msg string) {
	e.log.Log("[engine] task %s: %s after %s", t.ID, msg, reason)
	e.emitter.Emit(OrchestratorEvent{
		Type:       EventTaskRetried,
		RunID:      run.ID,
		Stage:      t.Stage,
		TaskID:     t.ID,
		AgentID:    agentID,
		Capability: t.Capability,
		Kind:       reason,
		Message:    msg,
	})
	if e.observer != nil {
		e.observer.TaskRetried(t.Capability, reason)
	}
}

// stopKind classifies why ctx is done.
func stopKind(ctx context.Context) models.ErrorKind {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, models.ErrDeadlineExceeded):
		return models.ErrorKindDeadlineExceeded
	case errors.Is(cause, errStageTimeout):
		return models.ErrorKindTimeout
	default:
		return models.ErrorKindCancelled
	}
}

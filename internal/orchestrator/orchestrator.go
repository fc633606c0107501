package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/orchestrator/policy"
	"github.com/ShayCichocki/researchmind/internal/router"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

var (
	// ErrRunNotFound is returned for run IDs that are unknown or were evicted.
	ErrRunNotFound = errors.New("run not found")
	// ErrStopped is returned by Submit and Execute after Stop.
	ErrStopped = errors.New("orchestrator stopped")
)

// historyTimeout bounds a single history write.
const historyTimeout = 5 * time.Second

// Orchestrator is the run service: it routes requests, executes plans in
// the background or inline, and answers status queries.
type Orchestrator struct {
	mgr     *manager.Manager
	router  *router.Router
	engine  *Engine
	emitter *EventEmitter
	logger  *DebugLogger
	history HistoryStore
	policy  *policy.Config
	queue   *runQueue

	mu      sync.RWMutex
	runs    map[string]*Run
	order   []string
	stopped bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an Orchestrator.
func New(cfg RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("orchestrator: manager is required")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("orchestrator: invoker is required")
	}

	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.policyConfig == nil {
		o.policyConfig = policy.Default()
	}
	_ = o.policyConfig.Validate()
	if o.logger == nil {
		o.logger = NopLogger()
	}

	if o.statusObserver != nil {
		cfg.Manager.SetObserver(o.statusObserver)
	}

	routerOpts := []router.Option{
		router.WithDefaultComplexity(o.policyConfig.Routing.DefaultComplexity),
		router.WithPolicy(router.DefaultPolicy{UrgentParallel: o.policyConfig.Routing.UrgentParallel}),
		router.WithComplexityInference(o.policyConfig.Routing.InferComplexity),
		router.WithDebugLog(o.logger.Log),
	}
	if o.topology != nil {
		routerOpts = append(routerOpts, router.WithPolicy(o.topology))
	}

	emitter := NewEventEmitter(o.policyConfig.Events.BufferSize)
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		mgr:    cfg.Manager,
		router: router.New(cfg.Manager.Registry(), cfg.Manager, routerOpts...),
		engine: NewEngine(EngineConfig{
			Invoker:  cfg.Invoker,
			Manager:  cfg.Manager,
			Policy:   o.policyConfig.Execution,
			Emitter:  emitter,
			Observer: o.observer,
			Logger:   o.logger,
		}),
		emitter: emitter,
		logger:  o.logger,
		history: o.history,
		policy:  o.policyConfig,
		queue:   newRunQueue(o.policyConfig.Runs.MaxConcurrent),
		runs:    make(map[string]*Run),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Manager returns the agent manager.
func (o *Orchestrator) Manager() *manager.Manager {
	return o.mgr
}

// Policy returns the validated policy configuration.
func (o *Orchestrator) Policy() *policy.Config {
	return o.policy
}

// Plan routes a request without executing it.
func (o *Orchestrator) Plan(req models.Request) (*models.Plan, error) {
	return o.router.Plan(req)
}

// Submit routes the request and executes it in the background once a run
// slot is free. Routing errors are returned before any task is created.
// The run outlives ctx's cancellation but is stopped by Cancel or Stop.
func (o *Orchestrator) Submit(ctx context.Context, req models.Request) (string, error) {
	run, err := o.prepare(req)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	run.setCancel(cancel)
	unhook := context.AfterFunc(o.ctx, func() { cancel(models.ErrCancelled) })

	go func() {
		defer o.wg.Done()
		defer cancel(nil)
		defer unhook()
		o.execute(runCtx, run)
	}()
	return run.ID, nil
}

// Execute routes the request and runs it to completion, waiting for a run
// slot like Submit. Cancelling ctx cancels the run; the partial result is
// still returned.
func (o *Orchestrator) Execute(ctx context.Context, req models.Request) (*models.AggregatedResult, error) {
	run, err := o.prepare(req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	run.setCancel(cancel)
	unhook := context.AfterFunc(o.ctx, func() { cancel(models.ErrCancelled) })
	defer unhook()

	defer o.wg.Done()
	return o.execute(runCtx, run), nil
}

// prepare routes and registers a run. On success the caller owns one
// count on o.wg and must call Done when the run finishes.
func (o *Orchestrator) prepare(req models.Request) (*Run, error) {
	plan, err := o.router.Plan(req)
	if err != nil {
		return nil, err
	}

	run := NewRun(uuid.New().String(), req, plan)
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil, ErrStopped
	}
	o.wg.Add(1)
	o.runs[run.ID] = run
	o.order = append(o.order, run.ID)
	o.evictLocked()
	o.mu.Unlock()

	o.logger.Log("[orchestrator] run %s planned: %s", run.ID, plan)
	return run, nil
}

// execute waits for a run slot, then runs the plan. A run cancelled while
// queued still goes through the engine, which concludes it without
// creating tasks.
func (o *Orchestrator) execute(ctx context.Context, run *Run) *models.AggregatedResult {
	admitted := o.queue.acquire(ctx, run.ID, run.Request.Priority)
	res := o.engine.Run(ctx, run)
	if admitted {
		o.queue.release()
	}
	if o.history != nil {
		hctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := o.history.SaveRun(hctx, res, run.Request); err != nil {
			log.Printf("[orchestrator] warning: failed to save run %s: %v", run.ID, err)
		}
	}
	return res
}

// evictLocked drops the oldest finished runs beyond the retention limit.
// Live runs are never evicted.
func (o *Orchestrator) evictLocked() {
	excess := len(o.order) - o.policy.Runs.Retain
	if excess <= 0 {
		return
	}
	kept := o.order[:0]
	for _, id := range o.order {
		if excess > 0 && o.runs[id].State().Terminal() {
			delete(o.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	o.order = kept
}

func (o *Orchestrator) run(id string) (*Run, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}

// Status returns a snapshot of the run, including partial results.
func (o *Orchestrator) Status(id string) (*models.AggregatedResult, error) {
	r, err := o.run(id)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

// Cancel stops a run. Cancelling a finished run is a no-op.
func (o *Orchestrator) Cancel(id string) error {
	r, err := o.run(id)
	if err != nil {
		return err
	}
	if r.Cancel() {
		o.logger.Log("[orchestrator] run %s cancel requested", id)
	}
	return nil
}

// Queued returns the IDs of runs waiting for a slot, next to start first.
func (o *Orchestrator) Queued() []string {
	return o.queue.queued()
}

// Wait blocks until the run is terminal or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, id string) (*models.AggregatedResult, error) {
	r, err := o.run(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-r.Done():
		return r.Snapshot(), nil
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

// Runs returns snapshots of the retained runs, oldest first.
func (o *Orchestrator) Runs() []*models.AggregatedResult {
	o.mu.RLock()
	runs := make([]*Run, 0, len(o.order))
	for _, id := range o.order {
		runs = append(runs, o.runs[id])
	}
	o.mu.RUnlock()

	out := make([]*models.AggregatedResult, len(runs))
	for i, r := range runs {
		out[i] = r.Snapshot()
	}
	return out
}

// Events returns the channel of lifecycle events for every run.
func (o *Orchestrator) Events() <-chan OrchestratorEvent {
	return o.emitter.Events()
}

// DroppedEventCount returns the number of events dropped on a full channel.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// Stop cancels every live run, waits for them to finish and closes the
// events channel.
func (o *Orchestrator) Stop() error {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()
		o.cancel()
		o.wg.Wait()
		o.emitter.Close()
	})
	return nil
}

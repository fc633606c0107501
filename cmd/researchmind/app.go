package main

import (
	"fmt"
	"log"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/internal/config"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/metrics"
	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/internal/state"
)

// app is the wired orchestrator stack shared by run, plan and serve.
type app struct {
	cfg     *config.Config
	reg     *registry.Registry
	mgr     *manager.Manager
	proxy   *agent.Proxy
	orch    *orchestrator.Orchestrator
	metrics *metrics.Metrics
	history *state.DB
	logger  *orchestrator.DebugLogger
}

// appOptions selects the optional parts of the stack.
type appOptions struct {
	// history records finished runs when state is enabled.
	history bool
	// metrics registers Prometheus collectors.
	metrics bool
	// runtimeMetrics adds Go and process collectors.
	runtimeMetrics bool
}

// newApp builds the registry, transports, agent manager and orchestrator
// described by cfg.
func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	if err := config.CheckCredentials(cfg, reg.Agents()); err != nil {
		return nil, err
	}

	transports, err := agent.BuildTransports(reg, agent.Deps{Anthropic: cfg.AnthropicDeps()})
	if err != nil {
		return nil, fmt.Errorf("build transports: %w", err)
	}

	a := &app{cfg: cfg, reg: reg}
	a.mgr = manager.New(reg, cfg.ManagerConfig())
	a.proxy = agent.NewProxy(a.mgr, transports)

	a.logger, err = orchestrator.NewDebugLogger(cfg.Log.Path)
	if err != nil {
		log.Printf("[app] warning: debug log disabled: %v", err)
		a.logger = orchestrator.NopLogger()
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithPolicy(cfg.Policy()),
		orchestrator.WithLogger(a.logger),
	}

	if opts.history && cfg.State.Enabled {
		db, err := state.OpenMigrated(cfg.StatePath())
		if err != nil {
			log.Printf("[app] warning: run history disabled: %v", err)
		} else {
			a.history = db
			orchOpts = append(orchOpts, orchestrator.WithHistory(db))
		}
	}

	if opts.metrics && cfg.Metrics.Enabled {
		a.metrics = metrics.New(opts.runtimeMetrics)
		a.metrics.InitAgents(a.mgr.Snapshots())
		orchOpts = append(orchOpts,
			orchestrator.WithObserver(a.metrics),
			orchestrator.WithStatusObserver(a.metrics.StatusChanged),
		)
	}

	a.orch, err = orchestrator.New(orchestrator.RequiredConfig{
		Manager: a.mgr,
		Invoker: a.proxy,
	}, orchOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the orchestrator and releases the history and log files.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Stop()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Printf("[app] warning: close history: %v", err)
		}
	}
	a.logger.Close()
}

// drainEvents consumes the orchestrator event stream until it is closed,
// handing each event to fn when fn is non-nil.
func drainEvents(ch <-chan orchestrator.OrchestratorEvent, fn func(orchestrator.OrchestratorEvent)) {
	for ev := range ch {
		if fn != nil {
			fn(ev)
		}
	}
}

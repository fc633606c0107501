package orchestrator

import (
	"context"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/orchestrator/policy"
	"github.com/ShayCichocki/researchmind/internal/router"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Manager holds live agent state; its registry is used for routing.
	Manager *manager.Manager
	// Invoker calls worker agents, normally an *agent.Proxy.
	Invoker agent.Invoker
}

// HistoryStore persists finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, res *models.AggregatedResult, req models.Request) error
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	policyConfig   *policy.Config
	topology       router.TopologyPolicy
	logger         *DebugLogger
	history        HistoryStore
	observer       Observer
	statusObserver manager.StatusObserver
}

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithTopologyPolicy replaces the router's topology policy.
func WithTopologyPolicy(p router.TopologyPolicy) Option {
	return func(o *orchestratorOptions) { o.topology = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithHistory persists every finished run to h.
func WithHistory(h HistoryStore) Option {
	return func(o *orchestratorOptions) { o.history = h }
}

// WithObserver reports task and run outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(o *orchestratorOptions) { o.observer = obs }
}

// WithStatusObserver is called on every agent status change.
func WithStatusObserver(fn manager.StatusObserver) Option {
	return func(o *orchestratorOptions) { o.statusObserver = fn }
}

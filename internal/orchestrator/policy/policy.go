// Package policy defines configurable policy parameters for orchestrator behavior.
// This centralizes the timeouts, retry limits and thresholds used by the
// router, the execution engine and the agent manager.
package policy

import (
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Execution policies
	Execution ExecutionPolicy

	// Routing policies
	Routing RoutingPolicy

	// Agent health policies
	Agents AgentPolicy

	// Event policies
	Events EventPolicy

	// Run retention policies
	Runs RunPolicy
}

// ExecutionPolicy controls timeouts and retries in the execution engine.
type ExecutionPolicy struct {
	// TaskTimeout bounds every proxy invocation.
	TaskTimeout time.Duration

	// StageTimeout bounds a whole stage. Tasks still running when it
	// expires fail with a timeout; siblings that finished are unaffected.
	StageTimeout time.Duration

	// PlanDeadline bounds a whole run. When it expires outstanding tasks are
	// cancelled and the run fails with cause deadline_exceeded.
	PlanDeadline time.Duration

	// MaxRetries is the number of extra attempts on the same agent after a timeout.
	MaxRetries int
}

// RoutingPolicy controls topology selection.
type RoutingPolicy struct {
	// DefaultComplexity is assumed when a request has none.
	DefaultComplexity models.Complexity

	// UrgentParallel lets urgent medium-complexity requests run parallel.
	UrgentParallel bool

	// InferComplexity estimates a missing complexity from the description.
	InferComplexity bool
}

// AgentPolicy controls agent status transitions.
type AgentPolicy struct {
	// FailureThreshold is the number of consecutive remote or unreachable
	// failures an agent may have before it is marked Error.
	FailureThreshold int

	// OutcomeLogSize bounds the log of recent task outcomes.
	OutcomeLogSize int
}

// EventPolicy controls the event emitter.
type EventPolicy struct {
	// BufferSize is the buffer size for the events channel.
	BufferSize int
}

// RunPolicy controls run admission and how many finished runs stay
// queryable in memory.
type RunPolicy struct {
	// Retain is the number of finished runs kept for Status and Runs.
	Retain int
	// MaxConcurrent is the number of runs executing at once. Further runs
	// wait in priority order.
	MaxConcurrent int
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Execution: ExecutionPolicy{
			TaskTimeout:  2 * time.Minute,
			StageTimeout: 10 * time.Minute,
			PlanDeadline: 30 * time.Minute,
			MaxRetries:   1,
		},
		Routing: RoutingPolicy{
			DefaultComplexity: models.ComplexityMedium,
		},
		Agents: AgentPolicy{
			FailureThreshold: 3,
			OutcomeLogSize:   256,
		},
		Events: EventPolicy{
			BufferSize: 100,
		},
		Runs: RunPolicy{
			Retain:        100,
			MaxConcurrent: 8,
		},
	}
}

// Validate checks that policy values are within acceptable ranges,
// resetting out-of-range values to their defaults.
func (c *Config) Validate() error {
	if c.Execution.TaskTimeout <= 0 {
		c.Execution.TaskTimeout = 2 * time.Minute
	}
	if c.Execution.StageTimeout <= 0 {
		c.Execution.StageTimeout = 10 * time.Minute
	}
	if c.Execution.PlanDeadline <= 0 {
		c.Execution.PlanDeadline = 30 * time.Minute
	}
	if c.Execution.MaxRetries < 0 {
		c.Execution.MaxRetries = 1
	}
	if !c.Routing.DefaultComplexity.Valid() {
		c.Routing.DefaultComplexity = models.ComplexityMedium
	}
	if c.Agents.FailureThreshold < 1 {
		c.Agents.FailureThreshold = 3
	}
	if c.Agents.OutcomeLogSize < 1 {
		c.Agents.OutcomeLogSize = 256
	}
	if c.Events.BufferSize < 1 {
		c.Events.BufferSize = 100
	}
	if c.Runs.Retain < 1 {
		c.Runs.Retain = 100
	}
	if c.Runs.MaxConcurrent < 1 {
		c.Runs.MaxConcurrent = 8
	}
	return nil
}

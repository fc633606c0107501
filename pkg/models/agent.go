package models

import "time"

// AgentStatus represents the runtime state of a worker agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent has no outstanding task.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusBusy indicates the agent is serving at least one task.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusError indicates the agent exceeded its consecutive failure threshold.
	AgentStatusError AgentStatus = "error"
	// AgentStatusOffline indicates the agent must not receive work.
	AgentStatusOffline AgentStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusBusy, AgentStatusError, AgentStatusOffline:
		return true
	default:
		return false
	}
}

// AgentCategory groups agents the way the catalog presents them.
type AgentCategory string

const (
	// CategorySpecialist is a single-capability domain agent.
	CategorySpecialist AgentCategory = "specialist"
	// CategoryWorkflow is a composite agent that serves several capabilities.
	CategoryWorkflow AgentCategory = "workflow"
	// CategoryCoordinator is a general agent able to serve any capability.
	CategoryCoordinator AgentCategory = "coordinator"
)

// TransportKind names how the worker agent proxy reaches an agent.
type TransportKind string

const (
	// TransportSimulated runs an in-process simulated worker.
	TransportSimulated TransportKind = "simulated"
	// TransportExec runs a subprocess speaking JSON on stdin/stdout.
	TransportExec TransportKind = "exec"
	// TransportHTTP posts JSON to a remote endpoint.
	TransportHTTP TransportKind = "http"
	// TransportAnthropic calls the Anthropic Messages API.
	TransportAnthropic TransportKind = "anthropic"
)

// TransportSpec holds the settings for an agent's transport.
// Only the fields relevant to Kind are read.
type TransportSpec struct {
	// Kind selects the transport implementation.
	Kind TransportKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	// Command is the executable for exec transports.
	Command string `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	// Args are extra arguments for exec transports.
	Args []string `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
	// URL is the endpoint for http transports.
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	// Model is the model name for anthropic transports.
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	// Instruction is the system prompt for anthropic transports.
	Instruction string `json:"instruction,omitempty" yaml:"instruction,omitempty" mapstructure:"instruction"`
	// Delay is the simulated work duration for simulated transports.
	Delay time.Duration `json:"delay,omitempty" yaml:"delay,omitempty" mapstructure:"delay"`
}

// AgentDescriptor is the static description of a worker agent.
type AgentDescriptor struct {
	// ID is the stable identifier, unique across the registry.
	ID string `json:"id" yaml:"id" mapstructure:"id"`
	// Capabilities lists the capabilities this agent serves, in preference order.
	Capabilities []Capability `json:"capabilities" yaml:"capabilities" mapstructure:"capabilities"`
	// Category groups the agent for display.
	Category AgentCategory `json:"category,omitempty" yaml:"category,omitempty" mapstructure:"category"`
	// Description is a short human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	// Transport describes how to reach the agent.
	Transport TransportSpec `json:"transport" yaml:"transport" mapstructure:"transport"`
}

// Serves reports whether the agent advertises the capability.
func (d AgentDescriptor) Serves(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// AgentStats holds the counters the agent manager keeps per agent.
type AgentStats struct {
	// TotalTasks counts finished invocations.
	TotalTasks int `json:"total_tasks"`
	// SuccessfulTasks counts invocations that returned a result.
	SuccessfulTasks int `json:"successful_tasks"`
	// FailedTasks counts invocations that failed for any reason.
	FailedTasks int `json:"failed_tasks"`
	// ConsecutiveFailures counts degrading failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`
	// TotalExecutionTime is the cumulative invocation time.
	TotalExecutionTime time.Duration `json:"total_execution_time"`
}

// SuccessRate returns successful/total, or 0 with no history.
func (s AgentStats) SuccessRate() float64 {
	if s.TotalTasks == 0 {
		return 0
	}
	return float64(s.SuccessfulTasks) / float64(s.TotalTasks)
}

// AverageExecutionTime returns the mean invocation time, or 0 with no history.
func (s AgentStats) AverageExecutionTime() time.Duration {
	if s.TotalTasks == 0 {
		return 0
	}
	return s.TotalExecutionTime / time.Duration(s.TotalTasks)
}

// AgentSnapshot is a point-in-time copy of an agent's runtime state.
type AgentSnapshot struct {
	// Descriptor is the static description.
	Descriptor AgentDescriptor `json:"descriptor"`
	// Status is the runtime status.
	Status AgentStatus `json:"status"`
	// Stats are the accumulated counters.
	Stats AgentStats `json:"stats"`
	// ActiveTasks lists the task IDs currently outstanding on the agent.
	ActiveTasks []string `json:"active_tasks,omitempty"`
	// LastActivity is the time of the last start or finish report.
	LastActivity time.Time `json:"last_activity"`
}

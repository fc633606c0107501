package router

import "github.com/ShayCichocki/researchmind/pkg/models"

// TopologyInputs are the facts a TopologyPolicy decides on.
type TopologyInputs struct {
	// Complexity is the caller's estimate, defaulted when unset.
	Complexity models.Complexity
	// Slack is the number of Idle agents among every agent eligible for
	// any required capability.
	Slack int
	// Required is the number of sub-requests, one agent each.
	Required int
	// Urgency is the caller's urgency, defaulted when unset.
	Urgency models.Urgency
	// Dependent is true when any sub-request declares a dependency.
	Dependent bool
}

// TopologyPolicy selects the plan topology for a multi-capability request.
// Implementations must be deterministic.
type TopologyPolicy interface {
	Select(in TopologyInputs) models.Topology
}

// TopologyPolicyFunc adapts a function to TopologyPolicy.
type TopologyPolicyFunc func(in TopologyInputs) models.Topology

// Select calls f.
func (f TopologyPolicyFunc) Select(in TopologyInputs) models.Topology {
	return f(in)
}

// DefaultPolicy is the built-in topology rule:
//  1. high complexity, or fewer idle agents than required -> sequential
//  2. low complexity with enough idle agents -> parallel
//  3. otherwise -> hybrid
//
// A parallel choice is demoted to hybrid when sub-requests declare
// dependencies, since a single stage cannot order them.
type DefaultPolicy struct {
	// UrgentParallel lets urgent medium-complexity requests with enough
	// idle agents run parallel instead of hybrid.
	UrgentParallel bool
}

// Select applies the rule.
func (p DefaultPolicy) Select(in TopologyInputs) models.Topology {
	if in.Complexity == models.ComplexityHigh || in.Slack < in.Required {
		return models.TopologySequential
	}
	parallel := in.Complexity == models.ComplexityLow ||
		(p.UrgentParallel && in.Urgency == models.UrgencyUrgent)
	if parallel && !in.Dependent {
		return models.TopologyParallel
	}
	return models.TopologyHybrid
}

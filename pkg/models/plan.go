package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Topology is the shape of an execution plan.
type Topology string

const (
	// TopologySequential runs one step per stage.
	TopologySequential Topology = "sequential"
	// TopologyParallel runs every step in a single stage.
	TopologyParallel Topology = "parallel"
	// TopologyHybrid groups steps into dependency levels.
	TopologyHybrid Topology = "hybrid"
	// TopologySpecialized runs a pinned pipeline sequentially.
	TopologySpecialized Topology = "specialized"
)

// Valid returns true if the topology is a known value.
func (t Topology) Valid() bool {
	switch t {
	case TopologySequential, TopologyParallel, TopologyHybrid, TopologySpecialized:
		return true
	default:
		return false
	}
}

// ContinuationPolicy decides whether a run proceeds after task failures in a stage.
type ContinuationPolicy string

const (
	// PolicyAllMustSucceed aborts the run on any failed task.
	PolicyAllMustSucceed ContinuationPolicy = "all-must-succeed"
	// PolicyBestEffort proceeds unless a stage has zero successes.
	PolicyBestEffort ContinuationPolicy = "best-effort"
)

// Valid returns true if the policy is a known value.
func (p ContinuationPolicy) Valid() bool {
	return p == PolicyAllMustSucceed || p == PolicyBestEffort
}

// DefaultPolicy returns the continuation policy used when the request does not set one.
func (t Topology) DefaultPolicy() ContinuationPolicy {
	switch t {
	case TopologyParallel, TopologyHybrid:
		return PolicyBestEffort
	default:
		return PolicyAllMustSucceed
	}
}

// Step is one capability invocation within a stage.
type Step struct {
	// Capability is the capability to invoke.
	Capability Capability `json:"capability"`
	// Payload is sent to the worker.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Candidates are ranked agent IDs; the first is the primary.
	Candidates []string `json:"candidates"`
	// Preferred is the agent the caller asked for, if it serves Capability.
	Preferred string `json:"preferred,omitempty"`
	// UsePriorResults adds earlier successful results to the invocation context.
	UsePriorResults bool `json:"use_prior_results,omitempty"`
}

// Primary returns the first candidate, or "" if there is none.
func (s Step) Primary() string {
	if len(s.Candidates) == 0 {
		return ""
	}
	return s.Candidates[0]
}

// Stage is a set of steps that run concurrently.
type Stage struct {
	Steps []Step `json:"steps"`
}

// Capabilities returns the capabilities of the stage's steps in order.
func (s Stage) Capabilities() []Capability {
	caps := make([]Capability, len(s.Steps))
	for i, step := range s.Steps {
		caps[i] = step.Capability
	}
	return caps
}

// Plan is the router's output: an ordered list of stages.
// Plans carry no generated identifiers; routing the same request against
// the same agent state produces an equal plan.
type Plan struct {
	Topology Topology           `json:"topology"`
	Policy   ContinuationPolicy `json:"policy"`
	Pipeline string             `json:"pipeline,omitempty"`
	Stages   []Stage            `json:"stages"`
}

// TaskCount returns the number of steps across all stages.
func (p *Plan) TaskCount() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s.Steps)
	}
	return n
}

// Capabilities returns every capability in the plan in stage order.
func (p *Plan) Capabilities() []Capability {
	var caps []Capability
	for _, s := range p.Stages {
		caps = append(caps, s.Capabilities()...)
	}
	return caps
}

// String renders the plan as "topology: a | b, c".
func (p *Plan) String() string {
	stages := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names := make([]string, len(s.Steps))
		for j, step := range s.Steps {
			names[j] = string(step.Capability)
		}
		stages[i] = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s: %s", p.Topology, strings.Join(stages, " | "))
}

// Invocation is what the worker agent proxy sends to a worker.
type Invocation struct {
	// TaskID identifies the task on whose behalf the call is made.
	TaskID string `json:"task_id"`
	// Capability is the capability requested.
	Capability Capability `json:"capability"`
	// Payload is the opaque request data.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Context holds results of earlier stages keyed by capability.
	Context map[Capability]json.RawMessage `json:"context,omitempty"`
}

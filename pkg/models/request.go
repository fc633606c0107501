package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Complexity is the caller's estimate of how involved a request is.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// Urgency marks whether the caller wants results as soon as possible.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// Valid returns true if the urgency is a known value.
func (u Urgency) Valid() bool {
	return u == UrgencyNormal || u == UrgencyUrgent
}

// SubRequest is one capability a request needs, with its own payload and
// the capabilities whose results it depends on.
type SubRequest struct {
	Capability Capability      `json:"capability"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	DependsOn  []Capability    `json:"depends_on,omitempty"`
	// PreferredAgent overrides the request's preferred agent for this capability.
	PreferredAgent string `json:"preferred_agent,omitempty"`
}

// Request is the caller input to the router.
//
// Exactly one way of naming capabilities is honoured, checked in this
// order: Pipeline, Stages, Capability, SubRequests.
type Request struct {
	// Description is a free-form label recorded with the run.
	Description string `json:"description,omitempty"`
	// Capability names a single capability to invoke.
	Capability Capability `json:"capability,omitempty"`
	// SubRequests lists the capabilities required, with dependencies.
	SubRequests []SubRequest `json:"sub_requests,omitempty"`
	// Pipeline names a specialised pipeline from the registry catalog.
	Pipeline string `json:"pipeline,omitempty"`
	// Stages pins an explicit ordered pipeline of capabilities.
	Stages []Capability `json:"stages,omitempty"`
	// Payload is the default payload for steps without their own.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Complexity defaults to medium when empty.
	Complexity Complexity `json:"complexity,omitempty"`
	// Urgency defaults to normal when empty.
	Urgency Urgency `json:"urgency,omitempty"`
	// Policy overrides the topology's default continuation policy.
	Policy ContinuationPolicy `json:"policy,omitempty"`
	// Priority orders queued runs; higher runs first. Equal priorities
	// start in submission order.
	Priority int `json:"priority,omitempty"`
	// PreferredAgent is tried first for every step it serves, unless it is
	// offline, or failing while a healthy agent is available.
	PreferredAgent string `json:"preferred_agent,omitempty"`
}

// Specialized reports whether the request pins a fixed pipeline.
func (r Request) Specialized() bool {
	return r.Pipeline != "" || len(r.Stages) > 0
}

// Validate checks enum fields. Empty values are allowed and defaulted by the router.
func (r Request) Validate() error {
	if r.Complexity != "" && !r.Complexity.Valid() {
		return fmt.Errorf("invalid complexity %q", r.Complexity)
	}
	if r.Urgency != "" && !r.Urgency.Valid() {
		return fmt.Errorf("invalid urgency %q", r.Urgency)
	}
	if r.Policy != "" && !r.Policy.Valid() {
		return fmt.Errorf("invalid continuation policy %q", r.Policy)
	}
	return nil
}

// ParseNeed parses a command-line need of the form "cap" or "cap:dep,dep".
func ParseNeed(s string) (SubRequest, error) {
	name, deps, _ := strings.Cut(s, ":")
	c, err := ParseCapability(name)
	if err != nil {
		return SubRequest{}, err
	}
	sr := SubRequest{Capability: c}
	if strings.TrimSpace(deps) == "" {
		return sr, nil
	}
	sr.DependsOn, err = ParseCapabilities(strings.Split(deps, ","))
	if err != nil {
		return SubRequest{}, err
	}
	return sr, nil
}

// Package router turns requests into execution plans: which capabilities
// run, in which stages, and on which candidate agents.
package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShayCichocki/researchmind/internal/graph"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

var (
	// ErrEmptyRequest is returned when a request names no capability.
	ErrEmptyRequest = errors.New("request names no capability")
	// ErrCycleDetected is returned when sub-request dependencies form a cycle.
	ErrCycleDetected = graph.ErrCycleDetected
	// ErrUnknownPipeline is returned for pipeline names missing from the catalog.
	ErrUnknownPipeline = registry.ErrUnknownPipeline
	// ErrDuplicateCapability is returned when a request names a capability
	// twice. Results are aggregated per capability, so one would be lost.
	ErrDuplicateCapability = errors.New("capability requested more than once")
	// ErrUnknownPreferredAgent is returned when a request prefers an agent
	// missing from the registry.
	ErrUnknownPreferredAgent = errors.New("preferred agent not registered")
)

// Router builds plans from the registry and live agent state.
// It holds no mutable state of its own.
type Router struct {
	reg               *registry.Registry
	mgr               *manager.Manager
	policy            TopologyPolicy
	defaultComplexity models.Complexity
	inferComplexity   bool
	debugLog          func(format string, args ...interface{})
}

// Option configures a Router.
type Option func(*Router)

// WithPolicy replaces the topology policy.
func WithPolicy(p TopologyPolicy) Option {
	return func(r *Router) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithDefaultComplexity sets the complexity assumed when a request has none.
func WithDefaultComplexity(c models.Complexity) Option {
	return func(r *Router) {
		if c.Valid() {
			r.defaultComplexity = c
		}
	}
}

// WithComplexityInference estimates a missing complexity from the request
// description before falling back to the default complexity.
func WithComplexityInference(enabled bool) Option {
	return func(r *Router) {
		r.inferComplexity = enabled
	}
}

// WithDebugLog routes the dependency graph's debug output to fn.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(r *Router) {
		r.debugLog = fn
	}
}

// New creates a Router.
func New(reg *registry.Registry, mgr *manager.Manager, opts ...Option) *Router {
	r := &Router{
		reg:               reg,
		mgr:               mgr,
		policy:            DefaultPolicy{},
		defaultComplexity: models.ComplexityMedium,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan routes a request. Given the same request and the same agent state
// it always returns an equal plan.
//
// Routing order:
//  1. A named or pinned pipeline yields a sequential plan over exactly that
//     pipeline.
//  2. A single explicit capability yields one stage with one step.
//  3. Otherwise the sub-requests are planned with the topology chosen by
//     the TopologyPolicy.
func (r *Router) Plan(req models.Request) (*models.Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkPreferred(req); err != nil {
		return nil, err
	}

	switch {
	case req.Specialized():
		return r.planPipeline(req)
	case req.Capability != "":
		return r.planSingle(req)
	default:
		return r.planSubRequests(req)
	}
}

// complexityFor picks the complexity of a request that names none.
func (r *Router) complexityFor(description string) models.Complexity {
	if r.inferComplexity && description != "" {
		if sel := ClassifyComplexity(description); sel.MatchedKeyword != "" {
			return sel.Complexity
		}
	}
	return r.defaultComplexity
}

func (r *Router) planPipeline(req models.Request) (*models.Plan, error) {
	caps := req.Stages
	if req.Pipeline != "" {
		var err error
		if caps, err = r.reg.Pipeline(req.Pipeline); err != nil {
			return nil, err
		}
	}
	seen := make(map[models.Capability]bool, len(caps))
	for _, c := range caps {
		if seen[c] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCapability, c)
		}
		seen[c] = true
	}
	if err := r.checkEligible(caps); err != nil {
		return nil, err
	}

	plan := &models.Plan{
		Topology: models.TopologySpecialized,
		Policy:   policyFor(req, models.TopologySpecialized),
		Pipeline: req.Pipeline,
	}
	for i, c := range caps {
		steps := []models.Step{{
			Capability:      c,
			Payload:         req.Payload,
			Preferred:       r.preferredFor(c, req.PreferredAgent),
			UsePriorResults: i > 0,
		}}
		plan.Stages = append(plan.Stages, models.Stage{Steps: AssignStage(r.mgr, steps)})
	}
	return plan, nil
}

func (r *Router) planSingle(req models.Request) (*models.Plan, error) {
	if err := r.checkEligible([]models.Capability{req.Capability}); err != nil {
		return nil, err
	}
	return &models.Plan{
		Topology: models.TopologySequential,
		Policy:   policyFor(req, models.TopologySequential),
		Stages: []models.Stage{{Steps: AssignStage(r.mgr, []models.Step{{
			Capability: req.Capability,
			Payload:    req.Payload,
			Preferred:  r.preferredFor(req.Capability, req.PreferredAgent),
		}})}},
	}, nil
}

func (r *Router) planSubRequests(req models.Request) (*models.Plan, error) {
	subs := req.SubRequests
	if len(subs) == 0 {
		return nil, ErrEmptyRequest
	}

	caps := make([]models.Capability, len(subs))
	byCap := make(map[models.Capability]models.SubRequest, len(subs))
	nodes := make([]graph.Node, len(subs))
	dependent := false
	for i, s := range subs {
		if _, dup := byCap[s.Capability]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCapability, s.Capability)
		}
		caps[i] = s.Capability
		byCap[s.Capability] = s
		nodes[i] = graph.Node{ID: string(s.Capability)}
		for _, d := range s.DependsOn {
			nodes[i].DependsOn = append(nodes[i].DependsOn, string(d))
		}
		dependent = dependent || len(s.DependsOn) > 0
	}

	if err := r.checkEligible(caps); err != nil {
		return nil, err
	}

	g := graph.New()
	g.SetDebugLog(r.debugLog)
	if err := g.Build(nodes); err != nil {
		return nil, fmt.Errorf("plan sub-requests: %w", err)
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}

	in := TopologyInputs{
		Complexity: req.Complexity,
		Slack:      r.slack(caps),
		Required:   len(subs),
		Urgency:    req.Urgency,
		Dependent:  dependent,
	}
	if in.Complexity == "" {
		in.Complexity = r.complexityFor(req.Description)
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyNormal
	}
	topology := r.policy.Select(in)

	var groups [][]models.Capability
	switch topology {
	case models.TopologyParallel:
		groups = [][]models.Capability{caps}
	case models.TopologyHybrid:
		for _, level := range levels {
			group := make([]models.Capability, len(level))
			for i, id := range level {
				group[i] = models.Capability(id)
			}
			groups = append(groups, group)
		}
	case models.TopologySequential:
		order, err := g.TopologicalSort()
		if err != nil {
			return nil, err
		}
		for _, id := range order {
			groups = append(groups, []models.Capability{models.Capability(id)})
		}
	default:
		return nil, fmt.Errorf("topology policy returned unsupported topology %q", topology)
	}

	plan := &models.Plan{Topology: topology, Policy: policyFor(req, topology)}
	for i, group := range groups {
		steps := make([]models.Step, len(group))
		for j, c := range group {
			sub := byCap[c]
			steps[j] = models.Step{
				Capability:      c,
				Payload:         payloadFor(sub.Payload, req.Payload),
				Preferred:       r.preferredFor(c, preferredOf(sub, req)),
				UsePriorResults: i > 0 && (topology == models.TopologySequential || len(sub.DependsOn) > 0),
			}
		}
		plan.Stages = append(plan.Stages, models.Stage{Steps: AssignStage(r.mgr, steps)})
	}
	return plan, nil
}

// checkEligible fails with ErrUnknownCapability if any capability has no
// registered agent, then with ErrNoEligibleAgent if any has only Offline agents.
func (r *Router) checkEligible(caps []models.Capability) error {
	if len(caps) == 0 {
		return ErrEmptyRequest
	}
	for _, c := range caps {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", models.ErrUnknownCapability, c)
		}
		if _, err := r.reg.Lookup(c); err != nil {
			return err
		}
	}
	for _, c := range caps {
		if r.mgr.EligibleCount(c) == 0 {
			return fmt.Errorf("%w: every agent for %s is offline", models.ErrNoEligibleAgent, c)
		}
	}
	return nil
}

// slack counts Idle agents across the union of agents eligible for caps.
func (r *Router) slack(caps []models.Capability) int {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range caps {
		for _, id := range r.reg.AgentIDs(c) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return r.mgr.IdleCount(ids)
}

// checkPreferred fails if the request or a sub-request prefers an agent
// the registry does not know.
func (r *Router) checkPreferred(req models.Request) error {
	ids := []string{req.PreferredAgent}
	for _, s := range req.SubRequests {
		ids = append(ids, s.PreferredAgent)
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := r.reg.Agent(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPreferredAgent, id)
		}
	}
	return nil
}

// preferredFor returns id if that agent serves c, otherwise "".
func (r *Router) preferredFor(c models.Capability, id string) string {
	if id == "" {
		return ""
	}
	if d, ok := r.reg.Agent(id); ok && d.Serves(c) {
		return id
	}
	return ""
}

func preferredOf(sub models.SubRequest, req models.Request) string {
	if sub.PreferredAgent != "" {
		return sub.PreferredAgent
	}
	return req.PreferredAgent
}

func policyFor(req models.Request, t models.Topology) models.ContinuationPolicy {
	if req.Policy != "" {
		return req.Policy
	}
	return t.DefaultPolicy()
}

func payloadFor(own, shared json.RawMessage) json.RawMessage {
	if len(own) > 0 {
		return own
	}
	return shared
}

// Package registry holds the static catalog of worker agents and the
// capabilities they serve.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// ErrUnknownPipeline is returned when a named pipeline is not in the catalog.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// Registry maps capabilities to the agents that serve them.
// It is immutable after New returns and safe for concurrent reads without locking.
type Registry struct {
	agents       []models.AgentDescriptor
	byID         map[string]int
	byCapability map[models.Capability][]int
	pipelines    map[string][]models.Capability
}

// New validates the descriptors and pipelines and builds a Registry.
// Agent IDs must be unique and every agent must serve at least one valid
// capability. Declaration order is kept and used to break ties.
func New(descriptors []models.AgentDescriptor, pipelines map[string][]models.Capability) (*Registry, error) {
	r := &Registry{
		agents:       make([]models.AgentDescriptor, 0, len(descriptors)),
		byID:         make(map[string]int, len(descriptors)),
		byCapability: make(map[models.Capability][]int),
		pipelines:    make(map[string][]models.Capability, len(pipelines)),
	}

	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("agent descriptor missing id")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", d.ID)
		}
		if len(d.Capabilities) == 0 {
			return nil, fmt.Errorf("agent %q serves no capabilities", d.ID)
		}
		seen := make(map[models.Capability]bool, len(d.Capabilities))
		for _, c := range d.Capabilities {
			if !c.Valid() {
				return nil, fmt.Errorf("agent %q: %w: %q", d.ID, models.ErrUnknownCapability, c)
			}
			if seen[c] {
				return nil, fmt.Errorf("agent %q lists capability %q twice", d.ID, c)
			}
			seen[c] = true
		}
		if d.Transport.Kind == "" {
			d.Transport.Kind = models.TransportSimulated
		}
		if d.Category == "" {
			d.Category = models.CategorySpecialist
		}

		d.Capabilities = append([]models.Capability(nil), d.Capabilities...)
		idx := len(r.agents)
		r.agents = append(r.agents, d)
		r.byID[d.ID] = idx
		for _, c := range d.Capabilities {
			r.byCapability[c] = append(r.byCapability[c], idx)
		}
	}

	for name, caps := range pipelines {
		if name == "" {
			return nil, fmt.Errorf("pipeline with empty name")
		}
		if len(caps) == 0 {
			return nil, fmt.Errorf("pipeline %q has no stages", name)
		}
		seen := make(map[models.Capability]bool, len(caps))
		for _, c := range caps {
			if !c.Valid() {
				return nil, fmt.Errorf("pipeline %q: %w: %q", name, models.ErrUnknownCapability, c)
			}
			if seen[c] {
				return nil, fmt.Errorf("pipeline %q lists %s more than once", name, c)
			}
			seen[c] = true
		}
		r.pipelines[name] = append([]models.Capability(nil), caps...)
	}

	return r, nil
}

// Lookup returns the agents advertising the capability in declaration order.
// It fails with ErrUnknownCapability when none do.
func (r *Registry) Lookup(c models.Capability) ([]models.AgentDescriptor, error) {
	idx := r.byCapability[c]
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCapability, c)
	}
	out := make([]models.AgentDescriptor, len(idx))
	for i, j := range idx {
		out[i] = r.agents[j]
	}
	return out, nil
}

// AgentIDs returns the IDs of agents serving the capability in declaration order.
func (r *Registry) AgentIDs(c models.Capability) []string {
	idx := r.byCapability[c]
	ids := make([]string, len(idx))
	for i, j := range idx {
		ids[i] = r.agents[j].ID
	}
	return ids
}

// Agent returns the descriptor with the given ID.
func (r *Registry) Agent(id string) (models.AgentDescriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return models.AgentDescriptor{}, false
	}
	return r.agents[i], true
}

// Order returns the declaration index of an agent, or -1 if unknown.
func (r *Registry) Order(id string) int {
	i, ok := r.byID[id]
	if !ok {
		return -1
	}
	return i
}

// Agents returns all descriptors in declaration order.
func (r *Registry) Agents() []models.AgentDescriptor {
	return append([]models.AgentDescriptor(nil), r.agents...)
}

// ByCategory returns the descriptors in a category, in declaration order.
func (r *Registry) ByCategory(cat models.AgentCategory) []models.AgentDescriptor {
	var out []models.AgentDescriptor
	for _, d := range r.agents {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Capabilities returns the capabilities served by at least one agent, in canonical order.
func (r *Registry) Capabilities() []models.Capability {
	var caps []models.Capability
	for _, c := range models.AllCapabilities() {
		if len(r.byCapability[c]) > 0 {
			caps = append(caps, c)
		}
	}
	return caps
}

// Pipeline returns the ordered capabilities of a named pipeline.
func (r *Registry) Pipeline(name string) ([]models.Capability, error) {
	caps, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}
	return append([]models.Capability(nil), caps...), nil
}

// Pipelines returns the pipeline names, sorted.
func (r *Registry) Pipelines() []string {
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.agents)
}

package models

import (
	"fmt"
	"strings"
)

// Capability is a named class of work a worker agent can perform.
type Capability string

const (
	// CapabilityLiterature covers literature search and paper analysis.
	CapabilityLiterature Capability = "literature"
	// CapabilityDatabase covers materials database retrieval.
	CapabilityDatabase Capability = "database"
	// CapabilityStructureSearch covers crystal structure search and generation.
	CapabilityStructureSearch Capability = "structure-search"
	// CapabilitySimulation covers atomistic simulation runs.
	CapabilitySimulation Capability = "simulation"
	// CapabilityExperimentDesign covers experiment planning and protocol generation.
	CapabilityExperimentDesign Capability = "experiment-design"
)

// AllCapabilities lists every known capability in canonical order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityLiterature,
		CapabilityDatabase,
		CapabilityStructureSearch,
		CapabilitySimulation,
		CapabilityExperimentDesign,
	}
}

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityLiterature, CapabilityDatabase, CapabilityStructureSearch,
		CapabilitySimulation, CapabilityExperimentDesign:
		return true
	default:
		return false
	}
}

// String returns the capability tag.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a tag into a Capability.
// Matching is case-insensitive and tolerates underscores for dashes.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, s)
	}
	return c, nil
}

// ParseCapabilities parses a list of tags, stopping at the first invalid one.
func ParseCapabilities(tags []string) ([]Capability, error) {
	caps := make([]Capability, 0, len(tags))
	for _, t := range tags {
		c, err := ParseCapability(t)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

package registry

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// Catalog is the on-disk form of a registry.
type Catalog struct {
	Agents    []models.AgentDescriptor       `yaml:"agents"`
	Pipelines map[string][]models.Capability `yaml:"pipelines"`
}

// Build validates the catalog and returns a Registry.
func (c Catalog) Build() (*Registry, error) {
	return New(c.Agents, c.Pipelines)
}

// Merge returns a catalog with other's agents appended and its pipelines
// overriding pipelines of the same name.
func (c Catalog) Merge(other Catalog) Catalog {
	out := Catalog{
		Agents:    append(append([]models.AgentDescriptor(nil), c.Agents...), other.Agents...),
		Pipelines: make(map[string][]models.Capability, len(c.Pipelines)+len(other.Pipelines)),
	}
	for k, v := range c.Pipelines {
		out.Pipelines[k] = v
	}
	for k, v := range other.Pipelines {
		out.Pipelines[k] = v
	}
	return out
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// simulatedDelay matches the fixed per-call work time of the bundled agents.
const simulatedDelay = time.Second

// DefaultCatalog returns the bundled research agents and specialised pipelines.
// Every agent uses the simulated transport.
func DefaultCatalog() Catalog {
	sim := models.TransportSpec{Kind: models.TransportSimulated, Delay: simulatedDelay}
	return Catalog{
		Agents: []models.AgentDescriptor{
			{
				ID:           "literature_agent",
				Capabilities: []models.Capability{models.CapabilityLiterature},
				Category:     models.CategorySpecialist,
				Description:  "Literature search and paper analysis",
				Transport:    sim,
			},
			{
				ID:           "database_agent",
				Capabilities: []models.Capability{models.CapabilityDatabase, models.CapabilityStructureSearch},
				Category:     models.CategorySpecialist,
				Description:  "Materials database retrieval and structure generation",
				Transport:    sim,
			},
			{
				ID:           "simulation_agent",
				Capabilities: []models.Capability{models.CapabilitySimulation},
				Category:     models.CategorySpecialist,
				Description:  "Atomistic simulation and property calculation",
				Transport:    sim,
			},
			{
				ID:           "experiment_agent",
				Capabilities: []models.Capability{models.CapabilityExperimentDesign},
				Category:     models.CategorySpecialist,
				Description:  "Experiment design, risk assessment and protocols",
				Transport:    sim,
			},
			{
				ID:           "literature_workflow",
				Capabilities: []models.Capability{models.CapabilityLiterature},
				Category:     models.CategoryWorkflow,
				Description:  "Multi-source literature review",
				Transport:    sim,
			},
			{
				ID:           "materials_discovery",
				Capabilities: []models.Capability{models.CapabilityStructureSearch, models.CapabilityDatabase},
				Category:     models.CategoryWorkflow,
				Description:  "Candidate structure screening",
				Transport:    sim,
			},
			{
				ID:           "computational_workflow",
				Capabilities: []models.Capability{models.CapabilitySimulation},
				Category:     models.CategoryWorkflow,
				Description:  "Relaxation, property and stability runs",
				Transport:    sim,
			},
			{
				ID:           "experimental_workflow",
				Capabilities: []models.Capability{models.CapabilityExperimentDesign},
				Category:     models.CategoryWorkflow,
				Description:  "Design optimisation and protocol generation",
				Transport:    sim,
			},
		},
		Pipelines: map[string][]models.Capability{
			"materials-discovery": {
				models.CapabilityDatabase,
				models.CapabilityStructureSearch,
				models.CapabilitySimulation,
				models.CapabilityExperimentDesign,
			},
			"performance-optimization": {
				models.CapabilityDatabase,
				models.CapabilitySimulation,
				models.CapabilityExperimentDesign,
			},
			"mechanism-research": {
				models.CapabilityLiterature,
				models.CapabilitySimulation,
				models.CapabilityExperimentDesign,
			},
			"application-development": {
				models.CapabilityLiterature,
				models.CapabilityStructureSearch,
				models.CapabilitySimulation,
				models.CapabilityExperimentDesign,
			},
			"standardization": {
				models.CapabilityLiterature,
				models.CapabilityExperimentDesign,
			},
		},
	}
}

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

func testDescriptors() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		{ID: "lit-a", Capabilities: []models.Capability{models.CapabilityLiterature}},
		{ID: "db", Capabilities: []models.Capability{models.CapabilityDatabase, models.CapabilityStructureSearch}},
		{ID: "lit-b", Capabilities: []models.Capability{models.CapabilityLiterature}, Category: models.CategoryWorkflow},
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []models.AgentDescriptor
		pipelines   map[string][]models.Capability
		wantErr     bool
	}{
		{
			name:        "valid",
			descriptors: testDescriptors(),
		},
		{
			name:        "missing id",
			descriptors: []models.AgentDescriptor{{Capabilities: []models.Capability{models.CapabilityLiterature}}},
			wantErr:     true,
		},
		{
			name: "duplicate id",
			descriptors: []models.AgentDescriptor{
				{ID: "a", Capabilities: []models.Capability{models.CapabilityLiterature}},
				{ID: "a", Capabilities: []models.Capability{models.CapabilityDatabase}},
			},
			wantErr: true,
		},
		{
			name:        "no capabilities",
			descriptors: []models.AgentDescriptor{{ID: "a"}},
			wantErr:     true,
		},
		{
			name:        "unknown capability",
			descriptors: []models.AgentDescriptor{{ID: "a", Capabilities: []models.Capability{"alchemy"}}},
			wantErr:     true,
		},
		{
			name:        "empty pipeline",
			descriptors: testDescriptors(),
			pipelines:   map[string][]models.Capability{"empty": nil},
			wantErr:     true,
		},
		{
			name:        "repeated pipeline stage",
			descriptors: testDescriptors(),
			pipelines: map[string][]models.Capability{
				"loop": {models.CapabilityLiterature, models.CapabilityLiterature},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.descriptors, tt.pipelines)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookup_DeclarationOrder(t *testing.T) {
	r, err := New(testDescriptors(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Lookup(models.CapabilityLiterature)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "lit-a" || got[1].ID != "lit-b" {
		t.Errorf("Lookup(literature) = %v, want [lit-a lit-b]", got)
	}

	if ids := r.AgentIDs(models.CapabilityStructureSearch); len(ids) != 1 || ids[0] != "db" {
		t.Errorf("AgentIDs(structure-search) = %v, want [db]", ids)
	}
}

func TestLookup_UnknownCapability(t *testing.T) {
	r, _ := New(testDescriptors(), nil)

	_, err := r.Lookup(models.CapabilitySimulation)
	if !errors.Is(err, models.ErrUnknownCapability) {
		t.Errorf("Lookup(simulation) error = %v, want ErrUnknownCapability", err)
	}
}

func TestRegistry_Defaults(t *testing.T) {
	r, _ := New(testDescriptors(), nil)

	d, ok := r.Agent("lit-a")
	if !ok {
		t.Fatal("Agent(lit-a) not found")
	}
	if d.Transport.Kind != models.TransportSimulated {
		t.Errorf("Transport.Kind = %q, want simulated", d.Transport.Kind)
	}
	if d.Category != models.CategorySpecialist {
		t.Errorf("Category = %q, want specialist", d.Category)
	}
	if got := len(r.ByCategory(models.CategoryWorkflow)); got != 1 {
		t.Errorf("len(ByCategory(workflow)) = %d, want 1", got)
	}
	if got := r.Order("lit-b"); got != 2 {
		t.Errorf("Order(lit-b) = %d, want 2", got)
	}
	if got := r.Order("missing"); got != -1 {
		t.Errorf("Order(missing) = %d, want -1", got)
	}
}

func TestRegistry_Capabilities(t *testing.T) {
	r, _ := New(testDescriptors(), nil)

	got := r.Capabilities()
	want := []models.Capability{models.CapabilityLiterature, models.CapabilityDatabase, models.CapabilityStructureSearch}
	if len(got) != len(want) {
		t.Fatalf("Capabilities() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Capabilities()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultCatalog(t *testing.T) {
	r, err := DefaultCatalog().Build()
	if err != nil {
		t.Fatalf("DefaultCatalog().Build() error = %v", err)
	}

	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
	for _, c := range models.AllCapabilities() {
		if _, err := r.Lookup(c); err != nil {
			t.Errorf("Lookup(%s) error = %v", c, err)
		}
	}

	want := []string{
		"application-development",
		"materials-discovery",
		"mechanism-research",
		"performance-optimization",
		"standardization",
	}
	got := r.Pipelines()
	if len(got) != len(want) {
		t.Fatalf("Pipelines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pipelines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := r.Pipeline("alchemy"); !errors.Is(err, ErrUnknownPipeline) {
		t.Errorf("Pipeline(alchemy) error = %v, want ErrUnknownPipeline", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	content := `
agents:
  - id: lit
    capabilities: [literature]
    category: specialist
    transport:
      kind: simulated
      delay: 50ms
  - id: sim
    capabilities: [simulation]
    transport:
      kind: exec
      command: ./sim-worker
      args: ["--json"]
pipelines:
  quick-look: [literature, simulation]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	r, err := c.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	lit, _ := r.Agent("lit")
	if lit.Transport.Delay != 50*time.Millisecond {
		t.Errorf("lit delay = %v, want 50ms", lit.Transport.Delay)
	}
	sim, _ := r.Agent("sim")
	if sim.Transport.Kind != models.TransportExec || sim.Transport.Command != "./sim-worker" {
		t.Errorf("sim transport = %+v, want exec ./sim-worker", sim.Transport)
	}
	p, err := r.Pipeline("quick-look")
	if err != nil {
		t.Fatalf("Pipeline(quick-look) error = %v", err)
	}
	if len(p) != 2 || p[0] != models.CapabilityLiterature || p[1] != models.CapabilitySimulation {
		t.Errorf("Pipeline(quick-look) = %v, want [literature simulation]", p)
	}
}

func TestLoadCatalog_Missing(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadCatalog() on missing file succeeded, want error")
	}
}

func TestCatalog_Merge(t *testing.T) {
	base := Catalog{
		Agents:    testDescriptors()[:1],
		Pipelines: map[string][]models.Capability{"p": {models.CapabilityLiterature}},
	}
	extra := Catalog{
		Agents:    testDescriptors()[1:2],
		Pipelines: map[string][]models.Capability{"p": {models.CapabilityDatabase}},
	}

	m := base.Merge(extra)
	if len(m.Agents) != 2 {
		t.Errorf("len(Agents) = %d, want 2", len(m.Agents))
	}
	if m.Pipelines["p"][0] != models.CapabilityDatabase {
		t.Errorf("Pipelines[p] = %v, want override", m.Pipelines["p"])
	}
}

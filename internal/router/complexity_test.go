package router

import (
	"testing"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		description string
		want        models.Complexity
		keyword     string
	}{
		{"Quick lookup of silicon band gaps", models.ComplexityLow, "quick"},
		{"Comprehensive review of perovskite stability", models.ComplexityHigh, "comprehensive"},
		{"quick check of the reaction MECHANISM", models.ComplexityHigh, "mechanism"},
		{"band gaps of oxides", models.ComplexityMedium, ""},
		{"", models.ComplexityMedium, ""},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			got := ClassifyComplexity(tt.description)
			if got.Complexity != tt.want {
				t.Errorf("Complexity = %s, want %s", got.Complexity, tt.want)
			}
			if got.MatchedKeyword != tt.keyword {
				t.Errorf("MatchedKeyword = %q, want %q", got.MatchedKeyword, tt.keyword)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %v, want in (0, 1]", got.Confidence)
			}
		})
	}
}

func TestComplexityKeywords_Custom(t *testing.T) {
	k := ComplexityKeywords{Low: []string{"tiny"}}
	if got := k.Classify("a tiny comprehensive job"); got.Complexity != models.ComplexityLow {
		t.Errorf("Classify() = %s, want %s", got.Complexity, models.ComplexityLow)
	}
}

func TestPlan_ComplexityInference(t *testing.T) {
	tests := []struct {
		name        string
		infer       bool
		description string
		complexity  models.Complexity
		want        models.Topology
	}{
		{name: "disabled", description: "quick lookup", want: models.TopologyHybrid},
		{name: "low keyword", infer: true, description: "quick lookup", want: models.TopologyParallel},
		{name: "high keyword", infer: true, description: "systematic review", want: models.TopologySequential},
		{name: "no keyword uses default", infer: true, description: "band gaps", want: models.TopologyHybrid},
		{name: "explicit wins", infer: true, description: "quick lookup", complexity: models.ComplexityHigh, want: models.TopologySequential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRouter(t, twoAgents(), WithComplexityInference(tt.infer))
			plan, err := r.Plan(models.Request{
				Description: tt.description,
				SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
				Complexity:  tt.complexity,
			})
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if plan.Topology != tt.want {
				t.Errorf("Topology = %s, want %s", plan.Topology, tt.want)
			}
		})
	}
}

package router

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

func newRouter(t *testing.T, descs []models.AgentDescriptor, opts ...Option) (*Router, *manager.Manager) {
	t.Helper()
	reg, err := registry.New(descs, map[string][]models.Capability{
		"discovery": {models.CapabilityDatabase, models.CapabilitySimulation, models.CapabilityExperimentDesign},
	})
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	mgr := manager.New(reg, manager.DefaultConfig())
	return New(reg, mgr, opts...), mgr
}

func agent(id string, caps ...models.Capability) models.AgentDescriptor {
	return models.AgentDescriptor{ID: id, Capabilities: caps}
}

func twoAgents() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		agent("lit", models.CapabilityLiterature),
		agent("db", models.CapabilityDatabase),
	}
}

func needs(caps ...models.Capability) []models.SubRequest {
	out := make([]models.SubRequest, len(caps))
	for i, c := range caps {
		out[i] = models.SubRequest{Capability: c}
	}
	return out
}

func TestPlan_TopologySelection(t *testing.T) {
	tests := []struct {
		name       string
		complexity models.Complexity
		busy       []string
		want       models.Topology
		wantStages int
	}{
		{name: "low with slack", complexity: models.ComplexityLow, want: models.TopologyParallel, wantStages: 1},
		{name: "high", complexity: models.ComplexityHigh, want: models.TopologySequential, wantStages: 2},
		{name: "low without slack", complexity: models.ComplexityLow, busy: []string{"db"}, want: models.TopologySequential, wantStages: 2},
		{name: "medium with slack", complexity: models.ComplexityMedium, want: models.TopologyHybrid, wantStages: 1},
		{name: "default complexity", want: models.TopologyHybrid, wantStages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mgr := newRouter(t, twoAgents())
			for _, id := range tt.busy {
				if err := mgr.ReportStart(id, "task_x"); err != nil {
					t.Fatalf("ReportStart() error = %v", err)
				}
			}
			plan, err := r.Plan(models.Request{
				SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
				Complexity:  tt.complexity,
			})
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if plan.Topology != tt.want {
				t.Errorf("Topology = %s, want %s", plan.Topology, tt.want)
			}
			if len(plan.Stages) != tt.wantStages {
				t.Errorf("len(Stages) = %d, want %d", len(plan.Stages), tt.wantStages)
			}
			if plan.TaskCount() != 2 {
				t.Errorf("TaskCount() = %d, want 2", plan.TaskCount())
			}
		})
	}
}

func TestPlan_ParallelAssignsEachStep(t *testing.T) {
	r, _ := newRouter(t, twoAgents())
	plan, err := r.Plan(models.Request{
		SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
		Complexity:  models.ComplexityLow,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got := plan.String(); got != "parallel: literature, database" {
		t.Errorf("String() = %q, want %q", got, "parallel: literature, database")
	}
	steps := plan.Stages[0].Steps
	if steps[0].Primary() != "lit" || steps[1].Primary() != "db" {
		t.Errorf("primaries = %s, %s, want lit, db", steps[0].Primary(), steps[1].Primary())
	}
	if plan.Policy != models.PolicyBestEffort {
		t.Errorf("Policy = %s, want %s", plan.Policy, models.PolicyBestEffort)
	}
}

func TestPlan_SequentialUsesPriorResults(t *testing.T) {
	r, _ := newRouter(t, twoAgents())
	plan, err := r.Plan(models.Request{
		SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
		Complexity:  models.ComplexityHigh,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Stages[0].Steps[0].UsePriorResults {
		t.Error("first stage UsePriorResults = true, want false")
	}
	if !plan.Stages[1].Steps[0].UsePriorResults {
		t.Error("second stage UsePriorResults = false, want true")
	}
	if plan.Policy != models.PolicyAllMustSucceed {
		t.Errorf("Policy = %s, want %s", plan.Policy, models.PolicyAllMustSucceed)
	}
}

func TestPlan_HybridFollowsDependencies(t *testing.T) {
	descs := []models.AgentDescriptor{
		agent("lit", models.CapabilityLiterature),
		agent("db", models.CapabilityDatabase),
		agent("sim", models.CapabilitySimulation),
	}
	r, _ := newRouter(t, descs)

	plan, err := r.Plan(models.Request{
		SubRequests: []models.SubRequest{
			{Capability: models.CapabilityLiterature},
			{Capability: models.CapabilityDatabase},
			{Capability: models.CapabilitySimulation, DependsOn: []models.Capability{models.CapabilityDatabase}},
		},
		// Low would be parallel, but dependencies demote it.
		Complexity: models.ComplexityLow,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got, want := plan.String(), "hybrid: literature, database | simulation"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !plan.Stages[1].Steps[0].UsePriorResults {
		t.Error("dependent step UsePriorResults = false, want true")
	}
}

func TestPlan_SequentialRespectsDependencyOrder(t *testing.T) {
	descs := []models.AgentDescriptor{
		agent("lit", models.CapabilityLiterature),
		agent("sim", models.CapabilitySimulation),
	}
	r, _ := newRouter(t, descs)
	plan, err := r.Plan(models.Request{
		SubRequests: []models.SubRequest{
			{Capability: models.CapabilitySimulation, DependsOn: []models.Capability{models.CapabilityLiterature}},
			{Capability: models.CapabilityLiterature},
		},
		Complexity: models.ComplexityHigh,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got, want := plan.String(), "sequential: literature | simulation"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPlan_Single(t *testing.T) {
	r, _ := newRouter(t, twoAgents())
	payload := json.RawMessage(`{"query":"perovskite"}`)
	plan, err := r.Plan(models.Request{Capability: models.CapabilityLiterature, Payload: payload})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Topology != models.TopologySequential || plan.TaskCount() != 1 {
		t.Errorf("plan = %s, want one sequential step", plan)
	}
	if string(plan.Stages[0].Steps[0].Payload) != string(payload) {
		t.Errorf("Payload = %s, want %s", plan.Stages[0].Steps[0].Payload, payload)
	}
}

func TestPlan_Specialized(t *testing.T) {
	descs := []models.AgentDescriptor{
		agent("db", models.CapabilityDatabase),
		agent("sim", models.CapabilitySimulation),
		agent("exp", models.CapabilityExperimentDesign),
		agent("lit", models.CapabilityLiterature),
	}
	r, _ := newRouter(t, descs)

	tests := []struct {
		name string
		req  models.Request
		want string
	}{
		{
			name: "named pipeline",
			req:  models.Request{Pipeline: "discovery"},
			want: "specialized: database | simulation | experiment-design",
		},
		{
			name: "pinned stages",
			req:  models.Request{Stages: []models.Capability{models.CapabilityLiterature, models.CapabilitySimulation}},
			want: "specialized: literature | simulation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := r.Plan(tt.req)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if got := plan.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if plan.Policy != models.PolicyAllMustSucceed {
				t.Errorf("Policy = %s, want %s", plan.Policy, models.PolicyAllMustSucceed)
			}
		})
	}
}

func TestPlan_PolicyOverride(t *testing.T) {
	r, _ := newRouter(t, twoAgents())
	plan, err := r.Plan(models.Request{
		SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
		Complexity:  models.ComplexityHigh,
		Policy:      models.PolicyBestEffort,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Policy != models.PolicyBestEffort {
		t.Errorf("Policy = %s, want %s", plan.Policy, models.PolicyBestEffort)
	}
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     models.Request
		offline []string
		wantErr error
	}{
		{
			name:    "unregistered capability",
			req:     models.Request{SubRequests: needs(models.CapabilityLiterature, models.CapabilitySimulation)},
			wantErr: models.ErrUnknownCapability,
		},
		{
			name:    "all agents offline",
			req:     models.Request{Capability: models.CapabilityDatabase},
			offline: []string{"db"},
			wantErr: models.ErrNoEligibleAgent,
		},
		{
			name:    "unknown pipeline",
			req:     models.Request{Pipeline: "nope"},
			wantErr: ErrUnknownPipeline,
		},
		{
			name: "dependency cycle",
			req: models.Request{SubRequests: []models.SubRequest{
				{Capability: models.CapabilityLiterature, DependsOn: []models.Capability{models.CapabilityDatabase}},
				{Capability: models.CapabilityDatabase, DependsOn: []models.Capability{models.CapabilityLiterature}},
			}},
			wantErr: ErrCycleDetected,
		},
		{
			name:    "empty request",
			req:     models.Request{},
			wantErr: ErrEmptyRequest,
		},
		{
			name: "repeated pinned stage",
			req: models.Request{Stages: []models.Capability{
				models.CapabilityLiterature, models.CapabilityDatabase, models.CapabilityLiterature,
			}},
			wantErr: ErrDuplicateCapability,
		},
		{
			name:    "repeated sub-request",
			req:     models.Request{SubRequests: needs(models.CapabilityLiterature, models.CapabilityLiterature)},
			wantErr: ErrDuplicateCapability,
		},
		{
			name:    "unregistered preferred agent",
			req:     models.Request{Capability: models.CapabilityLiterature, PreferredAgent: "ghost"},
			wantErr: ErrUnknownPreferredAgent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mgr := newRouter(t, twoAgents())
			for _, id := range tt.offline {
				if err := mgr.SetOffline(id); err != nil {
					t.Fatalf("SetOffline() error = %v", err)
				}
			}
			_, err := r.Plan(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Plan() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlan_Deterministic(t *testing.T) {
	descs := []models.AgentDescriptor{
		agent("lit-a", models.CapabilityLiterature),
		agent("lit-b", models.CapabilityLiterature, models.CapabilityDatabase),
		agent("db-a", models.CapabilityDatabase),
	}
	r, _ := newRouter(t, descs)
	req := models.Request{SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase), Complexity: models.ComplexityLow}

	first, err := r.Plan(req)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := r.Plan(req)
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("Plan() run %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestPlan_DistinctPrimaries(t *testing.T) {
	// "both" ranks first for each capability by declaration order; the
	// second step should move to a different agent.
	descs := []models.AgentDescriptor{
		agent("both", models.CapabilityLiterature, models.CapabilityDatabase),
		agent("lit", models.CapabilityLiterature),
		agent("db", models.CapabilityDatabase),
	}
	r, _ := newRouter(t, descs)
	plan, err := r.Plan(models.Request{
		SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
		Complexity:  models.ComplexityLow,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	steps := plan.Stages[0].Steps
	if steps[0].Primary() != "both" {
		t.Errorf("literature primary = %s, want both", steps[0].Primary())
	}
	if got, want := steps[1].Candidates, []string{"db", "both"}; !reflect.DeepEqual(got, want) {
		t.Errorf("database candidates = %v, want %v", got, want)
	}
}

func TestDefaultPolicy_UrgentParallel(t *testing.T) {
	in := TopologyInputs{Complexity: models.ComplexityMedium, Slack: 3, Required: 2, Urgency: models.UrgencyUrgent}
	if got := (DefaultPolicy{}).Select(in); got != models.TopologyHybrid {
		t.Errorf("Select() = %s, want %s", got, models.TopologyHybrid)
	}
	if got := (DefaultPolicy{UrgentParallel: true}).Select(in); got != models.TopologyParallel {
		t.Errorf("Select() with UrgentParallel = %s, want %s", got, models.TopologyParallel)
	}
}

func TestWithPolicy(t *testing.T) {
	always := TopologyPolicyFunc(func(TopologyInputs) models.Topology { return models.TopologySequential })
	r, _ := newRouter(t, twoAgents(), WithPolicy(always))
	plan, err := r.Plan(models.Request{
		SubRequests: needs(models.CapabilityLiterature, models.CapabilityDatabase),
		Complexity:  models.ComplexityLow,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Topology != models.TopologySequential {
		t.Errorf("Topology = %s, want %s", plan.Topology, models.TopologySequential)
	}
}

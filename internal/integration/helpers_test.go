//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/internal/orchestrator/policy"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// stack is a fully wired orchestrator over real transports.
type stack struct {
	reg   *registry.Registry
	mgr   *manager.Manager
	proxy *agent.Proxy
	orch  *orchestrator.Orchestrator
}

func newStack(t *testing.T, agents []models.AgentDescriptor, pipelines map[string][]models.Capability, threshold int, opts ...orchestrator.Option) *stack {
	t.Helper()
	reg, err := registry.New(agents, pipelines)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	transports, err := agent.BuildTransports(reg, agent.Deps{})
	if err != nil {
		t.Fatalf("BuildTransports() error = %v", err)
	}

	mgr := manager.New(reg, manager.Config{FailureThreshold: threshold})
	proxy := agent.NewProxy(mgr, transports)

	p := policy.Default()
	p.Execution.TaskTimeout = 5 * time.Second
	opts = append([]orchestrator.Option{orchestrator.WithPolicy(p)}, opts...)

	orch, err := orchestrator.New(orchestrator.RequiredConfig{Manager: mgr, Invoker: proxy}, opts...)
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}
	go func() {
		for range orch.Events() {
		}
	}()
	t.Cleanup(func() { orch.Stop() })

	return &stack{reg: reg, mgr: mgr, proxy: proxy, orch: orch}
}

func (s *stack) execute(t *testing.T, req models.Request) *models.AggregatedResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := s.orch.Execute(ctx, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return res
}

// worker is an HTTP worker agent that records what it receives.
type worker struct {
	srv *httptest.Server

	mu          sync.Mutex
	invocations []models.Invocation
	userAgents  []string

	// status, when non-zero, is returned instead of a result.
	status atomic.Int32
}

func newWorker(t *testing.T, result func(inv models.Invocation) any) *worker {
	t.Helper()
	w := &worker{}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if code := int(w.status.Load()); code != 0 {
			http.Error(rw, http.StatusText(code), code)
			return
		}
		if r.Method == http.MethodGet {
			rw.WriteHeader(http.StatusOK)
			return
		}

		var inv models.Invocation
		if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		w.invocations = append(w.invocations, inv)
		w.userAgents = append(w.userAgents, r.UserAgent())
		w.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(result(inv))
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *worker) calls() []models.Invocation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Invocation(nil), w.invocations...)
}

func httpAgent(id, url string, caps ...models.Capability) models.AgentDescriptor {
	return models.AgentDescriptor{
		ID:           id,
		Capabilities: caps,
		Transport:    models.TransportSpec{Kind: models.TransportHTTP, URL: url},
	}
}

func simAgent(id string, caps ...models.Capability) models.AgentDescriptor {
	return models.AgentDescriptor{
		ID:           id,
		Capabilities: caps,
		Transport:    models.TransportSpec{Kind: models.TransportSimulated, Delay: 5 * time.Millisecond},
	}
}

// Package metrics exposes orchestrator activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

const namespace = "researchmind"

var agentStatuses = []models.AgentStatus{
	models.AgentStatusIdle,
	models.AgentStatusBusy,
	models.AgentStatusError,
	models.AgentStatusOffline,
}

// Metrics records task, run and agent activity on its own registry.
// It implements the orchestrator's Observer and the manager's status hook.
type Metrics struct {
	registry *prometheus.Registry

	tasks        *prometheus.CounterVec
	retries      *prometheus.CounterVec
	runs         *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	runDuration  *prometheus.HistogramVec
	agentStatus  *prometheus.GaugeVec
}

// New creates the metrics and registers them with a fresh registry.
// Go runtime and process collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Finished tasks by capability and final state.",
		}, []string{"capability", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_retries_total",
			Help:      "Task retries and failovers by capability and triggering error kind.",
		}, []string{"capability", "reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by topology and final state.",
		}, []string{"topology", "state"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of started tasks.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"capability"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"topology"}),
		agentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_status",
			Help:      "1 for the current status of each agent, 0 otherwise.",
		}, []string{"agent", "status"}),
	}

	m.registry.MustRegister(m.tasks, m.retries, m.runs, m.taskDuration, m.runDuration, m.agentStatus)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TaskFinished counts a terminal task and observes its duration.
func (m *Metrics) TaskFinished(t models.Task) {
	m.tasks.WithLabelValues(string(t.Capability), string(t.State)).Inc()
	if t.StartedAt != nil && t.FinishedAt != nil {
		m.taskDuration.WithLabelValues(string(t.Capability)).Observe(t.FinishedAt.Sub(*t.StartedAt).Seconds())
	}
}

// TaskRetried counts a retry or failover.
func (m *Metrics) TaskRetried(c models.Capability, reason models.ErrorKind) {
	m.retries.WithLabelValues(string(c), string(reason)).Inc()
}

// RunFinished counts a terminal run and observes its duration.
func (m *Metrics) RunFinished(res *models.AggregatedResult) {
	m.runs.WithLabelValues(string(res.Topology), string(res.State)).Inc()
	if res.FinishedAt != nil {
		m.runDuration.WithLabelValues(string(res.Topology)).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
}

// InitAgents sets the status gauge for every agent.
func (m *Metrics) InitAgents(snapshots []models.AgentSnapshot) {
	for _, s := range snapshots {
		m.setStatus(s.Descriptor.ID, s.Status)
	}
}

// StatusChanged updates the status gauge. Its signature matches
// manager.StatusObserver.
func (m *Metrics) StatusChanged(agentID string, _, to models.AgentStatus) {
	m.setStatus(agentID, to)
}

func (m *Metrics) setStatus(agentID string, current models.AgentStatus) {
	for _, s := range agentStatuses {
		v := 0.0
		if s == current {
			v = 1
		}
		m.agentStatus.WithLabelValues(agentID, string(s)).Set(v)
	}
}

// Package manager tracks the runtime state of worker agents: status,
// task statistics and recent outcomes used for recommendations.
package manager

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// ErrUnknownAgent is returned for agent IDs not present in the registry.
var ErrUnknownAgent = errors.New("unknown agent")

// Default configuration values.
const (
	DefaultFailureThreshold = 3
	DefaultOutcomeLogSize   = 256
)

// Config holds the tunables of the agent manager.
type Config struct {
	// FailureThreshold is the number of consecutive degrading failures an
	// agent may have before it is put into the Error state.
	FailureThreshold int
	// OutcomeLogSize bounds the log of recent task outcomes.
	OutcomeLogSize int
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		OutcomeLogSize:   DefaultOutcomeLogSize,
	}
}

// StatusObserver is notified when an agent's status changes. It runs while
// the agent's lock is held and must not call back into the Manager.
type StatusObserver func(agentID string, from, to models.AgentStatus)

// agentState is the mutable state of one agent, guarded by its own mutex.
type agentState struct {
	mu           sync.Mutex
	desc         models.AgentDescriptor
	order        int
	status       models.AgentStatus
	stats        models.AgentStats
	active       map[string]struct{}
	lastActivity time.Time
}

// Manager holds live per-agent state. The set of agents is fixed at
// construction, so the map itself is never written after New and each
// agent is locked independently.
type Manager struct {
	reg       *registry.Registry
	agents    map[string]*agentState
	threshold int
	outcomes  *outcomeLog

	observerMu sync.RWMutex
	observer   StatusObserver
}

// New creates a Manager with every registry agent Idle.
func New(reg *registry.Registry, cfg Config) *Manager {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.OutcomeLogSize < 1 {
		cfg.OutcomeLogSize = DefaultOutcomeLogSize
	}

	m := &Manager{
		reg:       reg,
		agents:    make(map[string]*agentState, reg.Len()),
		threshold: cfg.FailureThreshold,
		outcomes:  newOutcomeLog(cfg.OutcomeLogSize),
	}
	for i, d := range reg.Agents() {
		m.agents[d.ID] = &agentState{
			desc:   d,
			order:  i,
			status: models.AgentStatusIdle,
			active: make(map[string]struct{}),
		}
	}
	return m
}

// Registry returns the registry the manager was built from.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// SetObserver installs a status change observer, replacing any previous one.
func (m *Manager) SetObserver(o StatusObserver) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()
	m.observer = o
}

func (m *Manager) notify(id string, from, to models.AgentStatus) {
	if from == to {
		return
	}
	m.observerMu.RLock()
	o := m.observer
	m.observerMu.RUnlock()
	if o != nil {
		o(id, from, to)
	}
}

func (m *Manager) state(id string) (*agentState, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}
	return a, nil
}

// setStatus must be called with a.mu held.
func (m *Manager) setStatus(a *agentState, to models.AgentStatus) {
	from := a.status
	a.status = to
	m.notify(a.desc.ID, from, to)
}

// ReportStart records that taskID started on agentID. An Idle agent becomes
// Busy. An agent that is already Busy keeps serving several tasks and stays
// Busy until the last one finishes.
func (m *Manager) ReportStart(agentID, taskID string) error {
	a, err := m.state(agentID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.status {
	case models.AgentStatusIdle:
		m.setStatus(a, models.AgentStatusBusy)
	case models.AgentStatusBusy:
		log.Printf("[manager] warning: agent %s already busy with %d task(s), starting %s", agentID, len(a.active), taskID)
	default:
		log.Printf("[manager] warning: agent %s is %s, starting %s", agentID, a.status, taskID)
	}
	a.active[taskID] = struct{}{}
	a.lastActivity = time.Now()
	return nil
}

// ReportFinish records the outcome of a task on an agent and updates its
// statistics and status. Remote and unreachable failures count toward the
// consecutive failure threshold; once it is exceeded the agent enters Error
// and stays there until Reset.
func (m *Manager) ReportFinish(agentID, taskID string, o models.Outcome) error {
	a, err := m.state(agentID)
	if err != nil {
		return err
	}
	if o.TaskID == "" {
		o.TaskID = taskID
	}
	o.AgentID = agentID
	if o.Finished.IsZero() {
		o.Finished = time.Now()
	}

	a.mu.Lock()
	if _, ok := a.active[taskID]; !ok {
		log.Printf("[manager] warning: agent %s finished unknown task %s", agentID, taskID)
	}
	delete(a.active, taskID)

	a.stats.TotalTasks++
	a.stats.TotalExecutionTime += o.Duration
	switch {
	case o.Success():
		a.stats.SuccessfulTasks++
		a.stats.ConsecutiveFailures = 0
	case o.Kind.Degrading():
		a.stats.FailedTasks++
		a.stats.ConsecutiveFailures++
	default:
		a.stats.FailedTasks++
	}
	a.lastActivity = o.Finished

	switch a.status {
	case models.AgentStatusOffline, models.AgentStatusError:
		// sticky until Reset
	default:
		if o.Kind.Degrading() && a.stats.ConsecutiveFailures > m.threshold {
			log.Printf("[manager] agent %s marked error after %d consecutive failures", agentID, a.stats.ConsecutiveFailures)
			m.setStatus(a, models.AgentStatusError)
		} else if len(a.active) == 0 {
			m.setStatus(a, models.AgentStatusIdle)
		} else {
			m.setStatus(a, models.AgentStatusBusy)
		}
	}
	a.mu.Unlock()

	m.outcomes.add(o)
	return nil
}

// Reset returns an Error or Offline agent to service and clears its
// consecutive failure count.
func (m *Manager) Reset(agentID string) error {
	a, err := m.state(agentID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.ConsecutiveFailures = 0
	if len(a.active) > 0 {
		m.setStatus(a, models.AgentStatusBusy)
	} else {
		m.setStatus(a, models.AgentStatusIdle)
	}
	return nil
}

// SetOffline takes an agent out of service. Outstanding tasks still report normally.
func (m *Manager) SetOffline(agentID string) error {
	a, err := m.state(agentID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	m.setStatus(a, models.AgentStatusOffline)
	return nil
}

// Status returns the current status of an agent.
func (m *Manager) Status(agentID string) (models.AgentStatus, error) {
	a, err := m.state(agentID)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, nil
}

// Snapshot returns a copy of one agent's state.
func (m *Manager) Snapshot(agentID string) (models.AgentSnapshot, error) {
	a, err := m.state(agentID)
	if err != nil {
		return models.AgentSnapshot{}, err
	}
	return a.snapshot(), nil
}

func (a *agentState) snapshot() models.AgentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := models.AgentSnapshot{
		Descriptor:   a.desc,
		Status:       a.status,
		Stats:        a.stats,
		LastActivity: a.lastActivity,
	}
	for id := range a.active {
		s.ActiveTasks = append(s.ActiveTasks, id)
	}
	sort.Strings(s.ActiveTasks)
	return s
}

// Snapshots returns a copy of every agent's state in registry order.
func (m *Manager) Snapshots() []models.AgentSnapshot {
	out := make([]models.AgentSnapshot, 0, len(m.agents))
	for _, d := range m.reg.Agents() {
		out = append(out, m.agents[d.ID].snapshot())
	}
	return out
}

// Recommend returns the non-Offline agents serving the capability, best
// first: Idle agents, then higher success rate, then lower average
// execution time, then registry declaration order.
func (m *Manager) Recommend(c models.Capability) []string {
	return m.Rank(c, nil)
}

// Rank orders agents like Recommend but breaks ties by position in hint
// before declaration order. Agents missing from hint follow those in it.
func (m *Manager) Rank(c models.Capability, hint []string) []string {
	type candidate struct {
		id    string
		order int
		hint  int
		idle  bool
		rate  float64
		avg   time.Duration
	}

	pos := make(map[string]int, len(hint))
	for i, id := range hint {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}

	var cands []candidate
	for _, id := range m.reg.AgentIDs(c) {
		a := m.agents[id]
		a.mu.Lock()
		status, stats := a.status, a.stats
		a.mu.Unlock()

		if status == models.AgentStatusOffline {
			continue
		}
		h, ok := pos[id]
		if !ok {
			h = len(hint)
		}
		cands = append(cands, candidate{
			id:    id,
			order: a.order,
			hint:  h,
			idle:  status == models.AgentStatusIdle,
			rate:  stats.SuccessRate(),
			avg:   stats.AverageExecutionTime(),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.idle != cj.idle {
			return ci.idle
		}
		if ci.rate != cj.rate {
			return ci.rate > cj.rate
		}
		if ci.avg != cj.avg {
			return ci.avg < cj.avg
		}
		if ci.hint != cj.hint {
			return ci.hint < cj.hint
		}
		return ci.order < cj.order
	})

	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

// EligibleCount returns how many non-Offline agents serve the capability.
func (m *Manager) EligibleCount(c models.Capability) int {
	n := 0
	for _, id := range m.reg.AgentIDs(c) {
		if s, _ := m.Status(id); s != models.AgentStatusOffline {
			n++
		}
	}
	return n
}

// IdleCount returns how many of the given agents are Idle. Unknown IDs are ignored.
func (m *Manager) IdleCount(ids []string) int {
	n := 0
	for _, id := range ids {
		if s, err := m.Status(id); err == nil && s == models.AgentStatusIdle {
			n++
		}
	}
	return n
}

// SystemStats summarises all agents.
func (m *Manager) SystemStats() models.SystemStats {
	s := models.SystemStats{ByStatus: make(map[models.AgentStatus]int)}
	var total time.Duration
	for _, snap := range m.Snapshots() {
		s.TotalAgents++
		s.ByStatus[snap.Status]++
		s.TotalTasks += snap.Stats.TotalTasks
		s.SuccessfulTasks += snap.Stats.SuccessfulTasks
		s.FailedTasks += snap.Stats.FailedTasks
		total += snap.Stats.TotalExecutionTime
	}
	if s.TotalTasks > 0 {
		s.SuccessRate = float64(s.SuccessfulTasks) / float64(s.TotalTasks)
		s.AverageTime = total / time.Duration(s.TotalTasks)
	}
	return s
}

// RecentOutcomes returns up to n of the most recent outcomes, oldest first.
// n <= 0 returns the whole log.
func (m *Manager) RecentOutcomes(n int) []models.Outcome {
	return m.outcomes.recent(n)
}

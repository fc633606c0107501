package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

var (
	// ErrAgentOffline is returned when invoking an agent marked Offline.
	// It classifies as unreachable so callers may fail over.
	ErrAgentOffline = fmt.Errorf("agent offline: %w", models.ErrUnreachable)
	// ErrMissingTimeout is returned when Invoke is called without a positive timeout.
	ErrMissingTimeout = errors.New("invocation timeout is required")
)

// Invoker is the contract the execution engine depends on.
type Invoker interface {
	Invoke(ctx context.Context, agentID string, inv models.Invocation, timeout time.Duration) (json.RawMessage, error)
}

// Proxy is the worker agent proxy. Every invocation is bounded by a
// mandatory timeout and reported to the agent manager, whatever the outcome.
type Proxy struct {
	mgr *manager.Manager

	mu         sync.RWMutex
	transports map[string]Transport
}

// NewProxy creates a proxy over the given transports, keyed by agent ID.
func NewProxy(mgr *manager.Manager, transports map[string]Transport) *Proxy {
	t := make(map[string]Transport, len(transports))
	for id, tr := range transports {
		t[id] = tr
	}
	return &Proxy{mgr: mgr, transports: t}
}

// SetTransport replaces the transport of one agent.
func (p *Proxy) SetTransport(agentID string, t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transports[agentID] = t
}

// Transport returns the transport of an agent.
func (p *Proxy) Transport(agentID string) (Transport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.transports[agentID]
	return t, ok
}

// Invoke calls the agent and classifies any failure:
//   - models.ErrTimeout when the call exceeds timeout
//   - models.ErrRemote when the worker reports a failure
//   - models.ErrCancelled when ctx is done first
//   - models.ErrUnreachable for anything else
//
// The proxy never interprets a successful result.
func (p *Proxy) Invoke(ctx context.Context, agentID string, inv models.Invocation, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		return nil, ErrMissingTimeout
	}
	t, ok := p.Transport(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", manager.ErrUnknownAgent, agentID)
	}
	status, err := p.mgr.Status(agentID)
	if err != nil {
		return nil, err
	}
	if status == models.AgentStatusOffline {
		return nil, fmt.Errorf("%w: %s", ErrAgentOffline, agentID)
	}

	if err := p.mgr.ReportStart(agentID, inv.TaskID); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	result, err := t.Invoke(callCtx, inv)
	elapsed := time.Since(start)
	err = classify(ctx, callCtx, agentID, timeout, err)
	cancel()

	outcome := models.Outcome{
		TaskID:   inv.TaskID,
		AgentID:  agentID,
		Kind:     models.KindOf(err),
		Duration: elapsed,
	}
	if ferr := p.mgr.ReportFinish(agentID, inv.TaskID, outcome); ferr != nil {
		log.Printf("[proxy] warning: report finish for %s/%s: %v", agentID, inv.TaskID, ferr)
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

// classify maps a transport error onto the proxy's taxonomy. The parent
// context is checked first so a caller's cancellation is never reported
// as a worker failure.
func classify(parent, call context.Context, agentID string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return fmt.Errorf("agent %s: %w: %w", agentID, models.ErrCancelled, context.Cause(parent))
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("agent %s: %w after %s", agentID, models.ErrTimeout, timeout)
	}
	switch {
	case errors.Is(err, models.ErrRemote), errors.Is(err, models.ErrTimeout), errors.Is(err, models.ErrUnreachable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("agent %s: %w: %v", agentID, models.ErrTimeout, err)
	default:
		return fmt.Errorf("agent %s: %w: %v", agentID, models.ErrUnreachable, err)
	}
}

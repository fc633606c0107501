package agent

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// Simulated is an in-process worker that waits a fixed delay and echoes the
// invocation back. It is the transport of the bundled catalog.
type Simulated struct {
	agentID string
	delay   time.Duration
}

// NewSimulated creates a simulated worker.
func NewSimulated(agentID string, delay time.Duration) *Simulated {
	return &Simulated{agentID: agentID, delay: delay}
}

// simulatedResult is the payload a simulated worker returns.
type simulatedResult struct {
	Agent      string            `json:"agent"`
	Capability models.Capability `json:"capability"`
	TaskID     string            `json:"task_id"`
	Summary    string            `json:"summary"`
	Input      json.RawMessage   `json:"input,omitempty"`
	Context    []string          `json:"context,omitempty"`
}

// Invoke waits for the configured delay, or until ctx is done.
func (s *Simulated) Invoke(ctx context.Context, inv models.Invocation) (json.RawMessage, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := simulatedResult{
		Agent:      s.agentID,
		Capability: inv.Capability,
		TaskID:     inv.TaskID,
		Summary:    "agent " + s.agentID + " completed " + string(inv.Capability) + " task " + inv.TaskID,
		Input:      inv.Payload,
	}
	for c := range inv.Context {
		res.Context = append(res.Context, string(c))
	}
	sort.Strings(res.Context)
	return json.Marshal(res)
}

// Ping always succeeds.
func (s *Simulated) Ping(ctx context.Context) error {
	return ctx.Err()
}

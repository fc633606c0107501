package health

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// DefaultPingTimeout bounds a single reachability check.
const DefaultPingTimeout = 5 * time.Second

// AgentSource is the part of the agent manager the checker reads and resets.
type AgentSource interface {
	Snapshots() []models.AgentSnapshot
	Reset(agentID string) error
}

// TransportSource looks up an agent's transport.
type TransportSource interface {
	Transport(agentID string) (agent.Transport, bool)
}

// Checker pings agents in the Error state and resets those that answer.
// Offline agents are left alone; only an operator brings them back.
type Checker struct {
	agents      AgentSource
	transports  TransportSource
	interval    time.Duration
	pingTimeout time.Duration
}

// NewChecker creates a Checker. A non-positive interval disables Run.
func NewChecker(agents AgentSource, transports TransportSource, interval time.Duration) *Checker {
	return &Checker{
		agents:      agents,
		transports:  transports,
		interval:    interval,
		pingTimeout: DefaultPingTimeout,
	}
}

// Run checks every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckOnce(ctx)
		}
	}
}

// CheckOnce pings every Error agent whose transport supports it and
// returns the IDs that were reset.
func (c *Checker) CheckOnce(ctx context.Context) []string {
	var recovered []string
	for _, s := range c.agents.Snapshots() {
		if s.Status != models.AgentStatusError {
			continue
		}
		id := s.Descriptor.ID
		t, ok := c.transports.Transport(id)
		if !ok {
			continue
		}
		p, ok := t.(agent.Pinger)
		if !ok {
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			debugf("ping %s failed: %v", id, err)
			continue
		}
		if err := c.agents.Reset(id); err != nil {
			log.Printf("[health] warning: reset %s: %v", id, err)
			continue
		}
		log.Printf("[health] agent %s reachable again, reset", id)
		recovered = append(recovered, id)
	}
	return recovered
}

var debugEnabled = os.Getenv("RESEARCHMIND_DEBUG") != ""

// debugf is silent unless RESEARCHMIND_DEBUG is set.
func debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf("[health] "+format, args...)
	}
}

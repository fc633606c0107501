// Package agent implements the worker agent proxy: the single path through
// which the orchestrator invokes a worker agent, plus the transports that
// reach agents in-process, as subprocesses, over HTTP or through the
// Anthropic API.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ShayCichocki/researchmind/internal/exec"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// Transport carries one invocation to a worker agent and returns its result.
// Implementations must honour ctx cancellation and return a *RemoteError
// when the worker itself reports a failure.
type Transport interface {
	Invoke(ctx context.Context, inv models.Invocation) (json.RawMessage, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, inv models.Invocation) (json.RawMessage, error)

// Invoke calls f.
func (f TransportFunc) Invoke(ctx context.Context, inv models.Invocation) (json.RawMessage, error) {
	return f(ctx, inv)
}

// Pinger is implemented by transports that can check reachability without
// doing any work. Health checks use it to bring Error agents back.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteError is an application-level failure reported by the worker.
// It matches models.ErrRemote under errors.Is.
type RemoteError struct {
	// Agent is the reporting agent.
	Agent string
	// Code is a transport-specific status (exit code, HTTP status).
	Code int
	// Message is the worker's description of the failure.
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("agent %s reported error (code %d): %s", e.Agent, e.Code, e.Message)
	}
	return fmt.Sprintf("agent %s reported error: %s", e.Agent, e.Message)
}

// Unwrap lets errors.Is match models.ErrRemote.
func (e *RemoteError) Unwrap() error {
	return models.ErrRemote
}

// Deps are the shared collaborators transports are built with.
type Deps struct {
	// Runner runs exec transports. Defaults to exec.NewRunner().
	Runner exec.CommandRunner
	// HTTPClient is used by http transports. Defaults to a client without a
	// global timeout; per-call timeouts come from the context.
	HTTPClient *http.Client
	// Anthropic configures anthropic transports.
	Anthropic AnthropicConfig
}

// NewTransport builds the transport described by an agent descriptor.
func NewTransport(d models.AgentDescriptor, deps Deps) (Transport, error) {
	switch d.Transport.Kind {
	case models.TransportSimulated, "":
		return NewSimulated(d.ID, d.Transport.Delay), nil
	case models.TransportExec:
		if d.Transport.Command == "" {
			return nil, fmt.Errorf("agent %s: exec transport requires a command", d.ID)
		}
		runner := deps.Runner
		if runner == nil {
			runner = exec.NewRunner()
		}
		return NewSubprocess(d.ID, runner, d.Transport.Command, d.Transport.Args...), nil
	case models.TransportHTTP:
		if d.Transport.URL == "" {
			return nil, fmt.Errorf("agent %s: http transport requires a url", d.ID)
		}
		return NewHTTP(d.ID, d.Transport.URL, deps.HTTPClient), nil
	case models.TransportAnthropic:
		cfg := deps.Anthropic
		if d.Transport.Model != "" {
			cfg.Model = d.Transport.Model
		}
		return NewAnthropic(d.ID, cfg, d.Transport.Instruction)
	default:
		return nil, fmt.Errorf("agent %s: unknown transport kind %q", d.ID, d.Transport.Kind)
	}
}

// BuildTransports builds a transport for every agent in the registry.
func BuildTransports(reg *registry.Registry, deps Deps) (map[string]Transport, error) {
	out := make(map[string]Transport, reg.Len())
	for _, d := range reg.Agents() {
		t, err := NewTransport(d, deps)
		if err != nil {
			return nil, err
		}
		out[d.ID] = t
	}
	return out, nil
}

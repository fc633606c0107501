package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/researchmind/internal/exec"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// Subprocess runs a worker executable per invocation. The invocation is
// written as JSON to stdin and the result is read as JSON from stdout. A
// non-zero exit is a remote error carrying stderr.
type Subprocess struct {
	agentID string
	runner  exec.CommandRunner
	command string
	args    []string
}

// NewSubprocess creates a subprocess transport.
func NewSubprocess(agentID string, runner exec.CommandRunner, command string, args ...string) *Subprocess {
	return &Subprocess{agentID: agentID, runner: runner, command: command, args: args}
}

// Invoke runs the worker once.
func (s *Subprocess) Invoke(ctx context.Context, inv models.Invocation) (json.RawMessage, error) {
	in, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	res, err := s.runner.Run(ctx, exec.Command{
		Name:  s.command,
		Args:  s.args,
		Stdin: in,
		Env:   []string{"RESEARCHMIND_AGENT=" + s.agentID, "RESEARCHMIND_CAPABILITY=" + string(inv.Capability)},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run %s: %w", s.command, err)
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg == "" {
			msg = "exited with status " + fmt.Sprint(res.ExitCode)
		}
		return nil, &RemoteError{Agent: s.agentID, Code: res.ExitCode, Message: msg}
	}

	out := json.RawMessage(strings.TrimSpace(string(res.Stdout)))
	if !json.Valid(out) {
		return nil, &RemoteError{Agent: s.agentID, Message: "worker output is not valid JSON"}
	}
	return out, nil
}

// Ping checks that the worker executable exists.
func (s *Subprocess) Ping(ctx context.Context) error {
	return s.runner.LookPath(s.command)
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

func TestPrintResult(t *testing.T) {
	color.NoColor = true
	started := time.Now().Add(-2 * time.Second)
	finished := time.Now()
	res := &models.AggregatedResult{
		RunID:    "run-1",
		State:    models.RunPartial,
		Topology: models.TopologyParallel,
		Policy:   models.PolicyBestEffort,
		Stages:   1,
		Slots: map[models.Capability]*models.Slot{
			models.CapabilityLiterature: {State: models.SlotSucceeded, Result: json.RawMessage(`{"papers": 3}`)},
			models.CapabilityDatabase:   {State: models.SlotFailed, ErrorKind: models.ErrorKindRemote, Error: "no entries"},
		},
		StartedAt:  started,
		FinishedAt: &finished,
	}

	var buf bytes.Buffer
	printResult(&buf, res)
	out := buf.String()

	for _, want := range []string{"run-1 partial", "topology: parallel", `{"papers": 3}`, "remote_error: no entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("printResult() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "database") > strings.Index(out, "literature") {
		t.Errorf("slots should be sorted by capability:\n%s", out)
	}
}

func TestPrintEvent(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printEvent(&buf, orchestrator.OrchestratorEvent{
		Type:       orchestrator.EventTaskFailed,
		AgentID:    "lit",
		Capability: models.CapabilityLiterature,
		Error:      errors.New("down"),
		Timestamp:  time.Now(),
	})

	out := buf.String()
	if !strings.Contains(out, "[lit]") || !strings.Contains(out, "literature failed: down") {
		t.Errorf("printEvent() = %q", out)
	}
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a\n  b\tc", 10, "a b c"},
		{"0123456789abc", 10, "0123456..."},
	}
	for _, tt := range tests {
		if got := abbreviate(tt.in, tt.n); got != tt.want {
			t.Errorf("abbreviate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

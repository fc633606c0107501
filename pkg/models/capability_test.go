package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in      string
		want    Capability
		wantErr bool
	}{
		{"literature", CapabilityLiterature, false},
		{"  Database ", CapabilityDatabase, false},
		{"structure_search", CapabilityStructureSearch, false},
		{"STRUCTURE-SEARCH", CapabilityStructureSearch, false},
		{"experiment-design", CapabilityExperimentDesign, false},
		{"", "", true},
		{"alchemy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCapability(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCapability(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownCapability) {
				t.Errorf("error = %v, want ErrUnknownCapability", err)
			}
			if got != tt.want {
				t.Errorf("ParseCapability(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseNeed(t *testing.T) {
	sr, err := ParseNeed("simulation:structure-search,database")
	if err != nil {
		t.Fatalf("ParseNeed() error = %v", err)
	}
	if sr.Capability != CapabilitySimulation {
		t.Errorf("Capability = %q, want simulation", sr.Capability)
	}
	if len(sr.DependsOn) != 2 || sr.DependsOn[0] != CapabilityStructureSearch || sr.DependsOn[1] != CapabilityDatabase {
		t.Errorf("DependsOn = %v, want [structure-search database]", sr.DependsOn)
	}

	if _, err := ParseNeed("simulation:nope"); !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("ParseNeed with bad dep error = %v, want ErrUnknownCapability", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorKindNone},
		{"wrapped timeout", fmt.Errorf("agent lit: %w", ErrTimeout), ErrorKindTimeout},
		{"context deadline", context.DeadlineExceeded, ErrorKindTimeout},
		{"remote", fmt.Errorf("x: %w", ErrRemote), ErrorKindRemote},
		{"unreachable", ErrUnreachable, ErrorKindUnreachable},
		{"context cancel", context.Canceled, ErrorKindCancelled},
		{"plan deadline wins", fmt.Errorf("%w: %w", ErrDeadlineExceeded, ErrTimeout), ErrorKindDeadlineExceeded},
		{"unknown capability", ErrUnknownCapability, ErrorKindUnknownCapability},
		{"no eligible", ErrNoEligibleAgent, ErrorKindNoEligibleAgent},
		{"other", errors.New("boom"), ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorKind_RetryAndDegrade(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
		degrading bool
	}{
		{ErrorKindTimeout, true, false},
		{ErrorKindUnreachable, true, true},
		{ErrorKindRemote, false, true},
		{ErrorKindCancelled, false, false},
		{ErrorKindDeadlineExceeded, false, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.retryable {
			t.Errorf("%s.Retryable() = %v, want %v", tt.kind, got, tt.retryable)
		}
		if got := tt.kind.Degrading(); got != tt.degrading {
			t.Errorf("%s.Degrading() = %v, want %v", tt.kind, got, tt.degrading)
		}
	}
}

func TestTopology_DefaultPolicy(t *testing.T) {
	tests := []struct {
		topology Topology
		want     ContinuationPolicy
	}{
		{TopologySequential, PolicyAllMustSucceed},
		{TopologySpecialized, PolicyAllMustSucceed},
		{TopologyParallel, PolicyBestEffort},
		{TopologyHybrid, PolicyBestEffort},
	}
	for _, tt := range tests {
		if got := tt.topology.DefaultPolicy(); got != tt.want {
			t.Errorf("%s.DefaultPolicy() = %q, want %q", tt.topology, got, tt.want)
		}
	}
}

func TestPlan_String(t *testing.T) {
	p := &Plan{
		Topology: TopologyHybrid,
		Stages: []Stage{
			{Steps: []Step{{Capability: CapabilityLiterature}, {Capability: CapabilityDatabase}}},
			{Steps: []Step{{Capability: CapabilitySimulation}}},
		},
	}
	if got, want := p.String(), "hybrid: literature, database | simulation"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := p.TaskCount(); got != 3 {
		t.Errorf("TaskCount() = %d, want 3", got)
	}
}

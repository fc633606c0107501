package models

import (
	"testing"
	"time"
)

func TestAgentStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status AgentStatus
		want   bool
	}{
		{"idle is valid", AgentStatusIdle, true},
		{"busy is valid", AgentStatusBusy, true},
		{"error is valid", AgentStatusError, true},
		{"offline is valid", AgentStatusOffline, true},
		{"empty string is invalid", AgentStatus(""), false},
		{"unknown status is invalid", AgentStatus("sleeping"), false},
		{"task state is invalid", AgentStatus("running"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("AgentStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAgentDescriptor_Serves(t *testing.T) {
	d := AgentDescriptor{
		ID:           "materials",
		Capabilities: []Capability{CapabilityDatabase, CapabilityStructureSearch},
	}

	if !d.Serves(CapabilityDatabase) {
		t.Error("Serves(database) = false, want true")
	}
	if !d.Serves(CapabilityStructureSearch) {
		t.Error("Serves(structure-search) = false, want true")
	}
	if d.Serves(CapabilitySimulation) {
		t.Error("Serves(simulation) = true, want false")
	}
}

func TestAgentStats_Derived(t *testing.T) {
	tests := []struct {
		name     string
		stats    AgentStats
		wantRate float64
		wantAvg  time.Duration
	}{
		{
			name:     "no history",
			stats:    AgentStats{},
			wantRate: 0,
			wantAvg:  0,
		},
		{
			name: "all successful",
			stats: AgentStats{
				TotalTasks:         4,
				SuccessfulTasks:    4,
				TotalExecutionTime: 4 * time.Second,
			},
			wantRate: 1,
			wantAvg:  time.Second,
		},
		{
			name: "mixed",
			stats: AgentStats{
				TotalTasks:         4,
				SuccessfulTasks:    1,
				FailedTasks:        3,
				TotalExecutionTime: 2 * time.Second,
			},
			wantRate: 0.25,
			wantAvg:  500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.SuccessRate(); got != tt.wantRate {
				t.Errorf("SuccessRate() = %v, want %v", got, tt.wantRate)
			}
			if got := tt.stats.AverageExecutionTime(); got != tt.wantAvg {
				t.Errorf("AverageExecutionTime() = %v, want %v", got, tt.wantAvg)
			}
		})
	}
}

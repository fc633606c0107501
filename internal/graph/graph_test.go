package graph

import (
	"errors"
	"fmt"
	"testing"
)

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []Node
		wantErr error
	}{
		{
			name:  "no dependencies",
			nodes: []Node{{ID: "a"}, {ID: "b"}},
		},
		{
			name:    "self dependency",
			nodes:   []Node{{ID: "a", DependsOn: []string{"a"}}},
			wantErr: ErrCycleDetected,
		},
		{
			name: "two node cycle",
			nodes: []Node{
				{ID: "a", DependsOn: []string{"b"}},
				{ID: "b", DependsOn: []string{"a"}},
			},
			wantErr: ErrCycleDetected,
		},
		{
			name: "three node cycle",
			nodes: []Node{
				{ID: "a", DependsOn: []string{"c"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"b"}},
			},
			wantErr: ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.nodes)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuild_UnknownAndDuplicate(t *testing.T) {
	if err := New().Build([]Node{{ID: "a", DependsOn: []string{"missing"}}}); err == nil {
		t.Error("Build() with unknown dependency succeeded, want error")
	}
	if err := New().Build([]Node{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("Build() with duplicate node succeeded, want error")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		want  string
	}{
		{
			name:  "independent",
			nodes: []Node{{ID: "lit"}, {ID: "db"}, {ID: "sim"}},
			want:  "[[lit db sim]]",
		},
		{
			name: "chain",
			nodes: []Node{
				{ID: "exp", DependsOn: []string{"sim"}},
				{ID: "sim", DependsOn: []string{"db"}},
				{ID: "db"},
			},
			want: "[[db] [sim] [exp]]",
		},
		{
			name: "diamond keeps insertion order",
			nodes: []Node{
				{ID: "lit"},
				{ID: "db"},
				{ID: "sim", DependsOn: []string{"db"}},
				{ID: "struct", DependsOn: []string{"db"}},
				{ID: "exp", DependsOn: []string{"sim", "lit", "sim"}},
			},
			want: "[[lit db] [sim struct] [exp]]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			if err := g.Build(tt.nodes); err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			levels, err := g.Levels()
			if err != nil {
				t.Fatalf("Levels() error = %v", err)
			}
			if got := fmt.Sprint(levels); got != tt.want {
				t.Errorf("Levels() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	err := g.Build([]Node{
		{ID: "exp", DependsOn: []string{"sim"}},
		{ID: "lit"},
		{ID: "sim", DependsOn: []string{"lit"}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort() error = %v", err)
	}
	if got := fmt.Sprint(order); got != "[lit sim exp]" {
		t.Errorf("TopologicalSort() = %s, want [lit sim exp]", got)
	}
	if deps := g.DependenciesOf("exp"); len(deps) != 1 || deps[0] != "sim" {
		t.Errorf("DependenciesOf(exp) = %v, want [sim]", deps)
	}
	if g.Size() != 3 {
		t.Errorf("Size() = %d, want 3", g.Size())
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d", DependsOn: []string{"a"}}, {ID: "e"}}
	var first string
	for i := 0; i < 20; i++ {
		g := New()
		if err := g.Build(nodes); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		order, _ := g.TopologicalSort()
		if i == 0 {
			first = fmt.Sprint(order)
			continue
		}
		if got := fmt.Sprint(order); got != first {
			t.Fatalf("TopologicalSort() = %s on run %d, want %s", got, i, first)
		}
	}
}

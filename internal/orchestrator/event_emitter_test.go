package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(OrchestratorEvent{Type: EventRunStarted, RunID: "r1"})
	e.Emit(OrchestratorEvent{Type: EventRunFinished, RunID: "r1"})

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
	ev := <-e.Events()
	if ev.Type != EventRunStarted {
		t.Errorf("Type = %s, want %s", ev.Type, EventRunStarted)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestEventEmitter_Close(t *testing.T) {
	e := NewEventEmitter(4)
	e.Close()
	e.Close()
	e.Emit(OrchestratorEvent{Type: EventRunStarted})

	if _, ok := <-e.Events(); ok {
		t.Error("Events() still open after Close")
	}

	var nilEmitter *EventEmitter
	nilEmitter.Emit(OrchestratorEvent{Type: EventRunStarted})
	if nilEmitter.DroppedCount() != 0 {
		t.Error("nil emitter reported drops")
	}
}

func TestDebugLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger() error = %v", err)
	}
	l.Log("run %s planned", "r1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "run r1 planned") {
		t.Errorf("log = %q, want message", data)
	}

	nop, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("NewDebugLogger(\"\") error = %v", err)
	}
	nop.Log("ignored")
	if err := nop.Close(); err != nil {
		t.Errorf("Close() on no-op logger error = %v", err)
	}
}

func TestWriterLogger(t *testing.T) {
	var buf strings.Builder
	l := NewWriterLogger(&buf)
	l.Log("stage %d: %d tasks", 0, 2)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !strings.HasSuffix(buf.String(), " stage 0: 2 tasks\n") {
		t.Errorf("log = %q, want stage line", buf.String())
	}
	if l.Path() != "" {
		t.Errorf("Path() = %q, want empty", l.Path())
	}
}

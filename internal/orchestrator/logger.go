// Package orchestrator runs execution plans against worker agents and
// exposes the run service used by the CLI and the HTTP API.
package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger appends timestamped lines describing routing and execution
// decisions. The zero value and a nil *DebugLogger discard everything.
type DebugLogger struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
	path string
}

// NewDebugLogger opens logPath for appending, creating its directory.
// An empty path yields a logger that writes nothing.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{w: f, file: f, path: logPath}
	l.Log("--- researchmind %d started %s ---", os.Getpid(), time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger writes debug lines to w. Close leaves w open.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w}
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Path is the log file, or "" when the logger does not write to a file.
func (l *DebugLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Log writes one line prefixed with the wall-clock time.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.w == nil {
		return
	}
	line := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s\n", time.Now().Format("15:04:05.000"), line)
}

// Close closes the log file, if any.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.w, l.file = nil, nil
	return err
}

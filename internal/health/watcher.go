// Package health brings worker agents in and out of service: a signals
// directory for operators and a periodic reachability check for agents
// the manager put into the Error state.
package health

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal actions, used as file name prefixes in the signals directory.
const (
	ActionReset   = "reset"
	ActionOffline = "offline"
)

// AgentController is the part of the agent manager signals act on.
type AgentController interface {
	Reset(agentID string) error
	SetOffline(agentID string) error
}

// Watcher applies signal files dropped into a directory. A file named
// reset-<agent> resets the agent, offline-<agent> takes it out of service.
// Applied files are removed.
type Watcher struct {
	dir  string
	ctrl AgentController

	mu      sync.Mutex
	applied []string

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates the signals directory if needed, applies signals
// already present and starts watching for new ones. If the platform
// watcher cannot be started, Scan can still be called to poll.
func NewWatcher(dir string, ctrl AgentController) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}

	w := &Watcher{
		dir:  dir,
		ctrl: ctrl,
		done: make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[health] warning: file watcher unavailable, signals are polled: %v", err)
		w.Scan()
		return w, nil
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		log.Printf("[health] warning: cannot watch %s, signals are polled: %v", dir, err)
		w.Scan()
		return w, nil
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.watch()
	w.Scan()
	return w, nil
}

// Dir returns the signals directory.
func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) watch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.apply(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[health] warning: watch error: %v", err)
		}
	}
}

// Scan applies every signal file currently in the directory.
func (w *Watcher) Scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("[health] warning: read signals directory: %v", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.apply(filepath.Join(w.dir, e.Name()))
		}
	}
}

func (w *Watcher) apply(path string) {
	action, agentID, ok := ParseSignal(filepath.Base(path))
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// A create and a write can both arrive for one file.
	if _, err := os.Stat(path); err != nil {
		return
	}

	var err error
	switch action {
	case ActionReset:
		err = w.ctrl.Reset(agentID)
	case ActionOffline:
		err = w.ctrl.SetOffline(agentID)
	}
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		log.Printf("[health] warning: remove signal %s: %v", path, rmErr)
	}
	if err != nil {
		log.Printf("[health] warning: %s %s: %v", action, agentID, err)
		return
	}
	w.applied = append(w.applied, action+"-"+agentID)
}

// Applied returns the signals applied so far, oldest first.
func (w *Watcher) Applied() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.applied...)
}

// Close stops watching.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}

// ParseSignal splits a signal file name into its action and agent ID.
func ParseSignal(name string) (action, agentID string, ok bool) {
	action, agentID, found := strings.Cut(name, "-")
	if !found || agentID == "" {
		return "", "", false
	}
	if action != ActionReset && action != ActionOffline {
		return "", "", false
	}
	return action, agentID, true
}

// WriteSignal drops a signal file for a running process to pick up.
func WriteSignal(dir, action, agentID string) error {
	if action != ActionReset && action != ActionOffline {
		return fmt.Errorf("unknown signal action %q", action)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	path := filepath.Join(dir, action+"-"+agentID)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

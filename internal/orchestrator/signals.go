package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// cancelPrefix names cancel signal files: cancel-<task id>.
const cancelPrefix = "cancel-"

// SignalManager watches the signals directory under the data dir for
// out-of-band cancel requests. The cancel command drops a signal file
// from its own process; fsnotify delivers it to the running engine
// without polling, with a direct stat as fallback for missed events.
type SignalManager struct {
	dataDir string
	dir     string

	mu        sync.RWMutex
	cancelled map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalManager creates a signal manager rooted at the data dir.
// A watcher failure is not fatal; the manager degrades to stat checks.
func NewSignalManager(dataDir string) (*SignalManager, error) {
	dir := filepath.Join(dataDir, "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}

	sm := &SignalManager{
		dataDir:   dataDir,
		dir:       dir,
		cancelled: make(map[string]bool),
		done:      make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sm, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return sm, nil
	}
	sm.watcher = watcher

	go sm.watch()

	return sm, nil
}

// watch monitors the signals directory for cancel files.
func (sm *SignalManager) watch() {
	for {
		select {
		case <-sm.done:
			return
		case event, ok := <-sm.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			if !strings.HasPrefix(base, cancelPrefix) {
				continue
			}
			taskID := strings.TrimPrefix(base, cancelPrefix)
			sm.mu.Lock()
			sm.cancelled[taskID] = true
			sm.mu.Unlock()
			debugLog("cancel signal observed for task %s", taskID)
		case <-sm.watcher.Errors:
			// Ignore errors, keep watching.
		}
	}
}

// CancelRequested reports whether a cancel signal exists for the task.
// The signal file is checked directly in case the watcher missed it.
func (sm *SignalManager) CancelRequested(taskID string) bool {
	sm.mu.RLock()
	hit := sm.cancelled[taskID]
	sm.mu.RUnlock()
	if hit {
		return true
	}

	if _, err := os.Stat(filepath.Join(sm.dir, cancelPrefix+taskID)); err == nil {
		sm.mu.Lock()
		sm.cancelled[taskID] = true
		sm.mu.Unlock()
		return true
	}
	return false
}

// SendCancel records a cancel request for the task and drops the
// matching signal file.
func (sm *SignalManager) SendCancel(taskID string) error {
	sm.mu.Lock()
	sm.cancelled[taskID] = true
	sm.mu.Unlock()
	return WriteCancelSignal(sm.dataDir, taskID)
}

// Clear removes the cancel signal for a task after it has been honored.
func (sm *SignalManager) Clear(taskID string) {
	sm.mu.Lock()
	delete(sm.cancelled, taskID)
	sm.mu.Unlock()
	os.Remove(filepath.Join(sm.dir, cancelPrefix+taskID))
}

// Close shuts down the signal watcher.
func (sm *SignalManager) Close() {
	close(sm.done)
	if sm.watcher != nil {
		sm.watcher.Close()
	}
}

// WriteCancelSignal drops a cancel signal file for the task under the
// data directory. The cancel command uses this to reach an engine
// running in another process.
func WriteCancelSignal(dataDir, taskID string) error {
	dir := filepath.Join(dataDir, "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	path := filepath.Join(dir, cancelPrefix+taskID)
	if err := os.WriteFile(path, []byte(time.Now().UTC().Format(time.RFC3339)), 0644); err != nil {
		return fmt.Errorf("write cancel signal: %w", err)
	}
	return nil
}

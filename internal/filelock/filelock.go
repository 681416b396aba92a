// Package filelock guards the engine data directory so only one
// orchestrator process runs against it at a time.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when the lock belongs to another running process.
var ErrHeld = errors.New("lock held by another process")

// Lock is an advisory exclusive lock backed by a lock file.
type Lock struct {
	flock *flock.Flock
	path  string
}

// New creates a lock for the given lock file path. The file is created
// on acquisition if it does not exist.
func New(path string) *Lock {
	return &Lock{
		flock: flock.New(path),
		path:  path,
	}
}

// Acquire takes the lock without blocking. It returns ErrHeld when
// another process owns it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("%s: %w", l.path, ErrHeld)
	}
	return nil
}

// Release gives the lock back.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

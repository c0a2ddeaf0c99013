package workdir

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock enforces single-invocation access to a working directory.
// Identifier files are append-only; two writers would interleave records.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock prepares a lock scoped to the layout's working directory.
func NewRunLock(layout *Layout) *RunLock {
	path := filepath.Join(layout.Root(), ".orthopipe.lock")
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock, failing immediately if another invocation
// holds it.
func (r *RunLock) Acquire() error {
	ok, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return errors.New("another orthopipe invocation is already using this working directory")
	}
	return nil
}

// Release drops the lock. Safe to call when not held.
func (r *RunLock) Release() error {
	return r.lock.Unlock()
}

// Path returns the lock file location.
func (r *RunLock) Path() string { return r.path }

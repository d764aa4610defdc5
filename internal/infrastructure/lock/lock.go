// Package lock keeps a second scan loop from appending to the same sink.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld means another process owns the lock.
var ErrHeld = errors.New("another market radar instance is already running")

// Instance is an acquired single-instance lock.
type Instance struct {
	lock *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock on path.
func Acquire(path string) (*Instance, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrHeld, path)
	}
	return &Instance{lock: fl}, nil
}

// Path returns the lock file location.
func (i *Instance) Path() string {
	return i.lock.Path()
}

// Release unlocks; the lock file itself is left in place.
func (i *Instance) Release() error {
	if i == nil || i.lock == nil {
		return nil
	}
	return i.lock.Unlock()
}

package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
)

// LockFileName is created in the data directory while a run owns it.
const LockFileName = ".index.lock"

// DirLock serializes runs over one data directory across processes, so two
// runs never interleave tracker updates and index batches.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for dir. Nothing is acquired yet.
func NewDirLock(dir string) *DirLock {
	p := filepath.Join(dir, LockFileName)
	return &DirLock{path: p, flock: flock.New(p)}
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// TryLock acquires the lock without blocking. A lock held elsewhere is
// reported as ERR_205_INDEX_LOCKED.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return ierrors.IOError(fmt.Sprintf("create data directory %s", filepath.Dir(l.path)), err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return ierrors.IOError("acquire index lock", err).WithDetail("path", l.path)
	}
	if !ok {
		return ierrors.New(ierrors.ErrCodeIndexLocked, "another run is using the data directory", nil).
			WithDetail("path", l.path).
			WithSuggestion("Wait for the other run to finish, or remove the lock file if no run is active")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked DirLock is a no-op.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

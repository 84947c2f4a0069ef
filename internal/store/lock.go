package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
)

// errLockHeld marks a lock attempt that found another holder.
var errLockHeld = fmt.Errorf("lock held by another process")

// fileLock is a cross-process exclusive lock on a repository.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path, flock: flock.New(path)}
}

// acquire takes the lock without blocking, retrying with backoff while
// another process holds it.
func (l *fileLock) acquire(ctx context.Context, cfg semerrors.RetryConfig) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	err := semerrors.Retry(ctx, cfg, func() error {
		ok, err := l.flock.TryLock()
		if err != nil {
			return semerrors.Permanent(fmt.Errorf("failed to acquire lock: %w", err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.locked = true
	return nil
}

// release unlocks. Safe to call on an unlocked lock.
func (l *fileLock) release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

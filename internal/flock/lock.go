package flock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mrz1836/cadence/internal/errors"
)

// retryInterval is the pause between two lock attempts.
const retryInterval = 50 * time.Millisecond

// Lock is an acquired exclusive lock on a file.
type Lock struct {
	file *os.File
}

// Acquire opens path, creating it if needed, and takes an exclusive lock on
// it, retrying until timeout elapses.
// Returns ErrLockTimeout if the lock is still held elsewhere at the deadline.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //#nosec G302,G304 -- lock file needs write access, path is built by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		if err := Exclusive(f.Fd()); err == nil {
			return &Lock{file: f}, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, errors.ErrLockTimeout)
		}

		time.Sleep(retryInterval)
	}
}

// Release unlocks and closes the lock file. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := Unlock(l.file.Fd()); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return l.file.Close()
}

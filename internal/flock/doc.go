// Package flock provides cross-platform exclusive file locks used by the
// file history store to serialize writers across cadence processes.
//
// Usage:
//
//	lock, err := flock.Acquire(ctx, filepath.Join(dir, ".lock"), constants.LockTimeout)
//	if err != nil {
//	    return err // ErrLockTimeout when another process holds it
//	}
//	defer func() { _ = lock.Release() }()
package flock

//go:build unix

package flock_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flock"
)

func TestExclusive(t *testing.T) {
	t.Parallel()

	lockFile := filepath.Join(t.TempDir(), "test.lock")
	f1, err := os.OpenFile(lockFile, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	defer func() { _ = f1.Close() }()

	require.NoError(t, flock.Exclusive(f1.Fd()))

	f2, err := os.OpenFile(lockFile, os.O_RDWR, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	defer func() { _ = f2.Close() }()

	require.Error(t, flock.Exclusive(f2.Fd()), "second descriptor must not lock a held file")

	require.NoError(t, flock.Unlock(f1.Fd()))
	require.NoError(t, flock.Exclusive(f2.Fd()))
	require.NoError(t, flock.Unlock(f2.Fd()))
}

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".lock")

	lock, err := flock.Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)

	_, err = flock.Acquire(context.Background(), path, 120*time.Millisecond)
	require.ErrorIs(t, err, errors.ErrLockTimeout)

	require.NoError(t, lock.Release())

	again, err := flock.Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.NoError(t, again.Release())

	var nilLock *flock.Lock
	assert.NoError(t, nilLock.Release())
}

func TestAcquireWaitsForRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".lock")
	lock, err := flock.Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = lock.Release()
	}()

	second, err := flock.Acquire(context.Background(), path, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquireCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := flock.Acquire(ctx, filepath.Join(t.TempDir(), ".lock"), time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

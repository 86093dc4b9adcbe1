// Package testutil provides testing utilities for cadence.
//
// This package contains mock errors shared by test doubles across packages.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// They simulate failures of the infrastructure behind the engines.
var (
	// ErrMockStoreDown simulates an unavailable history store.
	ErrMockStoreDown = errors.New("store down")

	// ErrMockDiskFull simulates a write failure of a file-backed store or log.
	ErrMockDiskFull = errors.New("disk full")

	// ErrMockTrackerDown simulates an unreachable external test tracker.
	ErrMockTrackerDown = errors.New("tracker down")
)

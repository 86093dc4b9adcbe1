package domain

import "github.com/mrz1836/cadence/internal/constants"

// Status re-exports constants.Status so domain consumers need a single import.
type Status = constants.Status

// Re-exported status values.
const (
	StatusSuccess     = constants.StatusSuccess
	StatusWarn        = constants.StatusWarn
	StatusNotExecuted = constants.StatusNotExecuted
	StatusStopped     = constants.StatusStopped
	StatusFailure     = constants.StatusFailure
	StatusPaused      = constants.StatusPaused
	StatusRunning     = constants.StatusRunning
)

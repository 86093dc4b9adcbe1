package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorst(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{"empty is success", nil, StatusSuccess},
		{"all success", []Status{StatusSuccess, StatusSuccess}, StatusSuccess},
		{"warn beats success", []Status{StatusSuccess, StatusWarn}, StatusWarn},
		{"not executed beats warn", []Status{StatusWarn, StatusNotExecuted}, StatusNotExecuted},
		{"failure beats everything terminal", []Status{StatusFailure, StatusWarn, StatusStopped}, StatusFailure},
		{"stopped beats not executed", []Status{StatusNotExecuted, StatusStopped}, StatusStopped},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Worst(tc.statuses...))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusWarn.IsTerminal())
	assert.True(t, StatusFailure.IsTerminal())
	assert.True(t, StatusStopped.IsTerminal())
	assert.False(t, StatusNotExecuted.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())
	assert.False(t, Status("bogus").IsTerminal())
}

func TestStatus_SeverityUnknown(t *testing.T) {
	assert.Equal(t, StatusNotExecuted.Severity(), Status("bogus").Severity())
}

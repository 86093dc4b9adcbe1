package constants

// Status represents the execution state of a step, a scenario execution
// or a campaign execution.
//
//	NotExecuted → Running → Success | Warn | Failure | Stopped
//	Running ⇄ Paused
type Status string

// Status constants.
const (
	// StatusSuccess indicates the step and all its executed children succeeded.
	StatusSuccess Status = "SUCCESS"

	// StatusWarn indicates a failure downgraded by a soft assertion.
	StatusWarn Status = "WARN"

	// StatusNotExecuted indicates the step never started.
	StatusNotExecuted Status = "NOT_EXECUTED"

	// StatusStopped indicates a stop request was observed mid-execution.
	StatusStopped Status = "STOPPED"

	// StatusFailure indicates the step or one of its children failed.
	StatusFailure Status = "FAILURE"

	// StatusPaused indicates execution is waiting for a resume command.
	StatusPaused Status = "PAUSED"

	// StatusRunning indicates execution is in progress.
	StatusRunning Status = "RUNNING"
)

// severity orders statuses for worst-status aggregation.
//
//nolint:gochecknoglobals // Static lookup table
var severity = map[Status]int{
	StatusSuccess:     0,
	StatusWarn:        1,
	StatusNotExecuted: 2,
	StatusStopped:     3,
	StatusFailure:     4,
	StatusPaused:      5,
	StatusRunning:     6,
}

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status is a final outcome.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusWarn, StatusFailure, StatusStopped:
		return true
	case StatusNotExecuted, StatusPaused, StatusRunning:
		return false
	}
	return false
}

// Severity returns the aggregation weight of the status. Unknown values
// weigh as NOT_EXECUTED.
func (s Status) Severity() int {
	if v, ok := severity[s]; ok {
		return v
	}
	return severity[StatusNotExecuted]
}

// Worst returns the most severe of the given statuses, or SUCCESS when
// none are given.
func Worst(statuses ...Status) Status {
	worst := StatusSuccess
	for _, s := range statuses {
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}

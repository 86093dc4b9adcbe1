package errors

import "errors"

// hint is what the CLI prints for a sentinel: a sentence and, when the user
// can do something about it, what to do.
type hint struct {
	sentinel error
	message  string
	action   string
}

// hints is walked in order with errors.Is, so a wrapped error resolves to
// the first sentinel in its chain that appears here.
//
//nolint:gochecknoglobals // static lookup table
var hints = []hint{
	// campaigns
	{ErrCampaignNotFound, "No campaign matches the given id or name.",
		"Run 'cadence campaign list' to see the available campaigns."},
	{ErrCampaignAlreadyRunning, "This campaign is already running on the requested environment.",
		"Wait for the running execution to finish or stop it first."},
	{ErrCampaignExecutionNotFound, "The campaign execution does not exist or is no longer running.", ""},
	{ErrEmptyCampaign, "The campaign does not contain any scenario.",
		"Add scenarios to the campaign definition."},
	{ErrNothingToReplay, "Every scenario of this campaign execution succeeded, nothing to replay.", ""},

	// definitions and history
	{ErrScenarioNotFound, "The scenario does not exist.",
		"Check the scenarios directory of your storage root."},
	{ErrDatasetNotFound, "The dataset does not exist.",
		"Check the datasets directory of your storage root."},
	{ErrEnvironmentNotFound, "The environment does not exist.",
		"Check the environments directory or pass --env."},
	{ErrDefinitionInvalid, "A definition file is invalid.",
		"Run 'cadence validate' for details."},
	{ErrExecutionNotFound, "The execution report does not exist.", ""},
	{ErrLockTimeout, "Could not lock the history store in time.",
		"Another cadence process may be writing. Retry in a moment."},
	{ErrUnknownHistoryDriver, "Unknown storage.history_driver value.",
		"Use 'file' or 'sqlite'."},

	// command line
	{ErrConfigNil, "Configuration is missing.", ""},
	{ErrInvalidOutputFormat, "Invalid output format.",
		"Use --output text or --output json."},
	{ErrExecutionFailed, "The execution finished with a non-successful status.",
		"Inspect the report above for the failing steps."},
}

func lookupHint(err error) (hint, bool) {
	for _, h := range hints {
		if errors.Is(err, h.sentinel) {
			return h, true
		}
	}
	return hint{}, false
}

// UserMessage returns the CLI sentence for err, or err.Error() when err is
// not a known sentinel. Nil gives "".
func UserMessage(err error) string {
	message, _ := Actionable(err)
	return message
}

// Actionable is UserMessage plus the suggested next step, which is empty
// when there is nothing the user can do.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	h, ok := lookupHint(err)
	if !ok {
		return err.Error(), ""
	}
	return h.message, h.action
}

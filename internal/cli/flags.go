package cli

import (
	stderrors "errors"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/cadence/internal/errors"
)

// Process exit codes. A scenario or campaign that ran but did not succeed
// exits with ExitError.
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitInvalidInput = 2
)

// Values accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// GlobalFlags are the persistent flags of the root command.
type GlobalFlags struct {
	Output  string
	Verbose bool
	Quiet   bool

	// Dir and HistoryDriver override storage.dir and storage.history_driver.
	Dir           string
	HistoryDriver string
}

// AddGlobalFlags registers GlobalFlags on cmd as persistent flags.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", OutputText, "output format (text|json)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "log debug events, including execution progress")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "log warnings and errors only")
	pf.StringVar(&flags.Dir, "dir", "", "storage root holding definitions and history (default ~/.cadence)")
	pf.StringVar(&flags.HistoryDriver, "history-driver", "", "history store (file|sqlite)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// BindGlobalFlags lets CADENCE_OUTPUT, CADENCE_VERBOSE and CADENCE_QUIET
// stand in for the flags.
func BindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	pf := cmd.Root().PersistentFlags()
	for _, name := range []string{"output", "verbose", "quiet"} {
		if err := v.BindPFlag(name, pf.Lookup(name)); err != nil {
			return err
		}
	}
	v.SetEnvPrefix("CADENCE")
	v.AutomaticEnv()
	return nil
}

// ValidOutputFormats lists the --output values.
func ValidOutputFormats() []string {
	return []string{OutputText, OutputJSON}
}

// IsValidOutputFormat reports whether format is one of ValidOutputFormats.
func IsValidOutputFormat(format string) bool {
	return slices.Contains(ValidOutputFormats(), format)
}

// cobraUsageErrors are fragments of the errors cobra and pflag return for
// bad command lines.
//
//nolint:gochecknoglobals // fixed list
var cobraUsageErrors = []string{
	"unknown flag",
	"unknown shorthand flag",
	"flag needs an argument",
	"invalid argument",
	"if any flags in the group",
	"required flag",
	"unknown command",
	"accepts ",
	"requires at least",
}

// ExitCodeForError maps err to ExitSuccess, ExitInvalidInput for anything
// the user typed wrong, or ExitError.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.IsExitCode2Error(err),
		stderrors.Is(err, errors.ErrInvalidOutputFormat),
		stderrors.Is(err, errors.ErrInvalidArgument),
		isUsageError(err.Error()):
		return ExitInvalidInput
	default:
		return ExitError
	}
}

func isUsageError(msg string) bool {
	for _, fragment := range cobraUsageErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Package cli provides the command-line interface for cadence.
//
// Import rules:
//   - CAN import: every internal package, std lib
//   - MUST NOT be imported by: any internal package
package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/cadence/internal/errors"
)

// BuildInfo is stamped by cmd/cadence from -ldflags "-X main.version=...".
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Set by the root PersistentPreRunE.
//
//nolint:gochecknoglobals // subcommands share the logger built from the root flags
var (
	globalLogger   zerolog.Logger
	globalLoggerMu sync.RWMutex
)

// GetLogger returns the logger built from the global flags. Before the root
// command's PersistentPreRunE has run it is the zero logger, which discards.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates and returns the root command for the cadence CLI.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "cadence",
		Short: "Cadence - scenario and campaign execution engine",
		Long: `Cadence runs test scenarios described as step trees and groups them into
campaigns executed sequentially or in parallel.

Definitions (scenarios, campaigns, datasets, environments) are YAML files
under the storage root (default ~/.cadence). Every execution is recorded in
the history store.`,
		Version: formatVersion(info),
		// Running help keeps PersistentPreRunE in the path for flag validation.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", errors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet)
			globalLoggerMu.Unlock()

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, flags)

	AddRunCommand(cmd, flags)
	AddCampaignCommand(cmd, flags)
	AddHistoryCommand(cmd, flags)
	AddValidateCommand(cmd, flags)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
// Errors are printed to stderr with their suggested action.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	CloseLogFile()
	return err
}

// printError writes a user-facing error and its suggested action.
func printError(w io.Writer, err error) {
	message, action := errors.Actionable(err)
	if message != err.Error() {
		message = fmt.Sprintf("%s (%s)", message, err.Error())
	}
	_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	if action != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", action)
	}
}

// Package constants provides centralized constant values used throughout cadence.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by cadence for organizing data.
const (
	// CadenceHome is the hidden directory name where cadence stores its data.
	// This directory is created in the user's home directory.
	CadenceHome = ".cadence"

	// ScenariosDir holds scenario definition files.
	ScenariosDir = "scenarios"

	// CampaignsDir holds campaign definition files.
	CampaignsDir = "campaigns"

	// DatasetsDir holds dataset definition files.
	DatasetsDir = "datasets"

	// EnvironmentsDir holds environment definition files.
	EnvironmentsDir = "environments"

	// HistoryDir holds scenario execution reports written by the file store.
	HistoryDir = "history"

	// CampaignHistoryDir holds campaign execution records written by the file store.
	CampaignHistoryDir = "campaign-history"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// File names.
const (
	// ConfigFileName is the name of the global and project configuration files.
	ConfigFileName = "config.yaml"

	// SequenceFileName stores the last execution id handed out by the file store.
	SequenceFileName = "sequence"

	// SQLiteFileName is the default database file for the sqlite history driver.
	SQLiteFileName = "history.db"

	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.cadence/logs/cadence.log
	CLILogFileName = "cadence.log"
)

// History storage drivers.
const (
	// HistoryDriverFile stores reports as JSON files under the storage directory.
	HistoryDriverFile = "file"

	// HistoryDriverSQLite stores reports in a sqlite database.
	HistoryDriverSQLite = "sqlite"
)

// Engine defaults.
const (
	// DefaultEnginePoolSize bounds how many scenario executions run at once.
	DefaultEnginePoolSize = 8

	// DefaultCampaignPoolSize bounds the campaign fan-out worker pool.
	DefaultCampaignPoolSize = 4

	// DefaultReportInterval is the period between progress snapshots.
	DefaultReportInterval = 500 * time.Millisecond

	// DefaultLockTTL is how long a distributed campaign lock lives without release.
	DefaultLockTTL = 6 * time.Hour

	// LockTimeout is the maximum time to wait for a file lock.
	LockTimeout = 5 * time.Second
)

// Context keys seeded into every scenario context.
const (
	// ContextKeyEnvironment holds the environment name.
	ContextKeyEnvironment = "environment"

	// ContextKeyEnvironmentVariables holds the environment variables map.
	ContextKeyEnvironmentVariables = "environmentVariables"

	// ContextKeyDataset holds the dataset rows as a list of maps.
	ContextKeyDataset = "dataset"

	// ContextKeyTarget holds the current step target while evaluating its inputs.
	ContextKeyTarget = "target"
)

// Report names and messages shared between engine and strategies.
const (
	// TearDownStepName is the name of the synthetic root holding finally actions.
	TearDownStepName = "TearDown"

	// StepSkippedMessage is attached to every step skipped by a false condition.
	StepSkippedMessage = "Step skipped"
)

// Log rotation settings for the CLI log file.
const (
	// LogMaxSizeMB is the maximum size in megabytes before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to keep.
	LogMaxBackups = 5

	// LogMaxAgeDays is the maximum age of rotated files in days.
	LogMaxAgeDays = 30

	// LogCompress controls gzip compression of rotated files.
	LogCompress = true
)

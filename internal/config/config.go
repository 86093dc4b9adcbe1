// Package config provides configuration management for cadence with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (CADENCE_* prefix)
//  3. Project config (.cadence/config.yaml)
//  4. Global config (~/.cadence/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import (
	"path/filepath"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
)

// Config is the root configuration structure for cadence.
type Config struct {
	// Engine contains settings for scenario execution.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Campaign contains settings for campaign orchestration.
	Campaign CampaignConfig `yaml:"campaign" mapstructure:"campaign"`

	// Storage contains settings for definitions and execution history.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Redis contains settings for the distributed running-campaign lock.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// EngineConfig contains settings for scenario execution.
type EngineConfig struct {
	// PoolSize bounds how many scenario executions run at once.
	// Default: 8
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`

	// ReportInterval is the period between progress snapshots.
	// Zero disables intermediate snapshots.
	// Default: 500ms
	ReportInterval time.Duration `yaml:"report_interval" mapstructure:"report_interval"`
}

// CampaignConfig contains settings for campaign orchestration.
type CampaignConfig struct {
	// PoolSize bounds the campaign fan-out worker pool.
	// Default: 4
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
}

// StorageConfig contains settings for definitions and execution history.
type StorageConfig struct {
	// Dir is the root of the definition files and of the file history.
	// Empty means ~/.cadence.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// HistoryDriver selects the history store: "file" or "sqlite".
	// Default: "file"
	HistoryDriver string `yaml:"history_driver" mapstructure:"history_driver"`

	// SQLitePath is the database file of the sqlite driver.
	// Empty means <dir>/history.db.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// RedisConfig contains settings for the distributed running-campaign lock.
// When disabled, campaign exclusivity is enforced within the process only.
type RedisConfig struct {
	// Enabled turns on the Redis lock.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Address is the host:port of the Redis server.
	Address string `yaml:"address" mapstructure:"address"`

	// KeyPrefix is prepended to every lock key.
	// Default: "cadence:campaign:"
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`

	// LockTTL bounds how long a lock survives a crashed holder.
	// Default: 6h
	LockTTL time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
}

// ResolvedDir returns the storage directory, defaulting to ~/.cadence.
func (s StorageConfig) ResolvedDir() (string, error) {
	if s.Dir != "" {
		return s.Dir, nil
	}
	return GlobalConfigDir()
}

// ResolvedSQLitePath returns the sqlite database file under dir unless an
// explicit path is configured.
func (s StorageConfig) ResolvedSQLitePath(dir string) string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	return filepath.Join(dir, constants.SQLiteFileName)
}

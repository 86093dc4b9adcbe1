package config

import (
	"github.com/mrz1836/cadence/internal/constants"
)

// DefaultRedisKeyPrefix namespaces the campaign lock keys.
const DefaultRedisKeyPrefix = "cadence:campaign:"

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files, environment variables, and CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			PoolSize:       constants.DefaultEnginePoolSize,
			ReportInterval: constants.DefaultReportInterval,
		},
		Campaign: CampaignConfig{
			PoolSize: constants.DefaultCampaignPoolSize,
		},
		Storage: StorageConfig{
			// Dir: empty resolves to ~/.cadence at use time.
			Dir:           "",
			HistoryDriver: constants.HistoryDriverFile,
			SQLitePath:    "",
		},
		Redis: RedisConfig{
			Enabled:   false,
			Address:   "localhost:6379",
			KeyPrefix: DefaultRedisKeyPrefix,
			LockTTL:   constants.DefaultLockTTL,
		},
	}
}

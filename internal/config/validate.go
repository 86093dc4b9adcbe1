package config

import (
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

// maxPoolSize caps both worker pools.
const maxPoolSize = 256

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - engine.pool_size and campaign.pool_size must be between 1 and 256
//   - engine.report_interval cannot be negative
//   - storage.history_driver must be "file" or "sqlite"
//   - redis.address and a positive redis.lock_ttl are required when redis is enabled
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateEngineConfig(&cfg.Engine); err != nil {
		return err
	}

	if err := validateCampaignConfig(&cfg.Campaign); err != nil {
		return err
	}

	if err := validateStorageConfig(&cfg.Storage); err != nil {
		return err
	}

	return validateRedisConfig(&cfg.Redis)
}

// validateEngineConfig checks engine-specific configuration values.
func validateEngineConfig(cfg *EngineConfig) error {
	if cfg.PoolSize < 1 || cfg.PoolSize > maxPoolSize {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.pool_size must be between 1 and %d, got %d", maxPoolSize, cfg.PoolSize)
	}

	if cfg.ReportInterval < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.report_interval cannot be negative, got %s", cfg.ReportInterval)
	}

	return nil
}

// validateCampaignConfig checks campaign-specific configuration values.
func validateCampaignConfig(cfg *CampaignConfig) error {
	if cfg.PoolSize < 1 || cfg.PoolSize > maxPoolSize {
		return errors.Wrapf(errors.ErrConfigInvalidCampaign,
			"campaign.pool_size must be between 1 and %d, got %d", maxPoolSize, cfg.PoolSize)
	}
	return nil
}

// validateStorageConfig checks storage-specific configuration values.
func validateStorageConfig(cfg *StorageConfig) error {
	switch cfg.HistoryDriver {
	case constants.HistoryDriverFile, constants.HistoryDriverSQLite:
		return nil
	default:
		return errors.Wrapf(errors.ErrConfigInvalidStorage,
			"storage.history_driver must be %q or %q, got %q",
			constants.HistoryDriverFile, constants.HistoryDriverSQLite, cfg.HistoryDriver)
	}
}

// validateRedisConfig checks Redis lock settings. Nothing is checked while
// the lock is disabled.
func validateRedisConfig(cfg *RedisConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Address == "" {
		return errors.Wrap(errors.ErrConfigInvalidRedis,
			"redis.address must not be empty when redis is enabled")
	}

	if cfg.LockTTL <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRedis,
			"redis.lock_ttl must be positive, got %s", cfg.LockTTL)
	}

	return nil
}

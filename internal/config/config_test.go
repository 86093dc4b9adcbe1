package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, constants.DefaultEnginePoolSize, cfg.Engine.PoolSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.ReportInterval)
	assert.Equal(t, constants.DefaultCampaignPoolSize, cfg.Campaign.PoolSize)
	assert.Equal(t, constants.HistoryDriverFile, cfg.Storage.HistoryDriver)
	assert.Empty(t, cfg.Storage.Dir)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	assert.Equal(t, constants.DefaultLockTTL, cfg.Redis.LockTTL)

	require.NoError(t, Validate(cfg), "defaults must be valid")
}

func TestStorageConfig_ResolvedDir(t *testing.T) {
	t.Run("explicit dir", func(t *testing.T) {
		dir, err := StorageConfig{Dir: "/srv/cadence"}.ResolvedDir()
		require.NoError(t, err)
		assert.Equal(t, "/srv/cadence", dir)
	})

	t.Run("defaults to the global directory", func(t *testing.T) {
		dir, err := StorageConfig{}.ResolvedDir()
		require.NoError(t, err)
		assert.Equal(t, constants.CadenceHome, filepath.Base(dir))
	})
}

func TestStorageConfig_ResolvedSQLitePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", constants.SQLiteFileName), StorageConfig{}.ResolvedSQLitePath("/data"))
	assert.Equal(t, "/tmp/h.db", StorageConfig{SQLitePath: "/tmp/h.db"}.ResolvedSQLitePath("/data"))
}

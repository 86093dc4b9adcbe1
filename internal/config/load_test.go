package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolate points HOME and the working directory at empty temp directories.
func isolate(t *testing.T) (home, wd string) {
	t.Helper()
	home = t.TempDir()
	wd = t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(wd)
	return home, wd
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_GlobalThenProject(t *testing.T) {
	home, wd := isolate(t)

	globalDir := filepath.Join(home, constants.CadenceHome)
	require.NoError(t, os.MkdirAll(globalDir, 0o750))
	writeConfig(t, globalDir, `
engine:
  pool_size: 2
  report_interval: 1s
storage:
  history_driver: sqlite
`)

	projectDir := filepath.Join(wd, constants.CadenceHome)
	require.NoError(t, os.MkdirAll(projectDir, 0o750))
	writeConfig(t, projectDir, `
engine:
  pool_size: 16
`)

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Engine.PoolSize, "project overrides global")
	assert.Equal(t, time.Second, cfg.Engine.ReportInterval, "global survives where project is silent")
	assert.Equal(t, constants.HistoryDriverSQLite, cfg.Storage.HistoryDriver)
}

func TestLoad_EnvironmentOverridesFiles(t *testing.T) {
	_, wd := isolate(t)

	projectDir := filepath.Join(wd, constants.CadenceHome)
	require.NoError(t, os.MkdirAll(projectDir, 0o750))
	writeConfig(t, projectDir, "campaign:\n  pool_size: 2\n")

	t.Setenv("CADENCE_CAMPAIGN_POOL_SIZE", "12")
	t.Setenv("CADENCE_REDIS_LOCK_TTL", "90s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Campaign.PoolSize)
	assert.Equal(t, 90*time.Second, cfg.Redis.LockTTL)
}

func TestLoad_InvalidConfig(t *testing.T) {
	_, wd := isolate(t)

	projectDir := filepath.Join(wd, constants.CadenceHome)
	require.NoError(t, os.MkdirAll(projectDir, 0o750))
	writeConfig(t, projectDir, "storage:\n  history_driver: mongo\n")

	_, err := Load(context.Background())
	require.ErrorIs(t, err, errors.ErrConfigInvalidStorage)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadFromPaths(t *testing.T) {
	ctx := context.Background()
	global := writeConfig(t, t.TempDir(), `
redis:
  enabled: true
  address: redis:6379
  lock_ttl: 1h
engine:
  pool_size: 3
`)
	project := writeConfig(t, t.TempDir(), `
redis:
  key_prefix: "team:"
`)

	cfg, err := LoadFromPaths(ctx, project, global)
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, "team:", cfg.Redis.KeyPrefix)
	assert.Equal(t, time.Hour, cfg.Redis.LockTTL)
	assert.Equal(t, 3, cfg.Engine.PoolSize)

	t.Run("missing files fall back to defaults", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := LoadFromPaths(ctx, filepath.Join(dir, "nope.yaml"), "")
		require.NoError(t, err)
		assert.Equal(t, constants.DefaultEnginePoolSize, cfg.Engine.PoolSize)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		bad := writeConfig(t, t.TempDir(), "engine: [unterminated")
		_, err := LoadFromPaths(ctx, bad, "")
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		bad := writeConfig(t, t.TempDir(), "engine:\n  report_interval: soon\n")
		_, err := LoadFromPaths(ctx, bad, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode config")
	})
}

func TestLoadWithOverrides(t *testing.T) {
	isolate(t)

	cfg, err := LoadWithOverrides(context.Background(), &Config{
		Storage: StorageConfig{Dir: "/tmp/defs", HistoryDriver: constants.HistoryDriverSQLite},
		Engine:  EngineConfig{PoolSize: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/defs", cfg.Storage.Dir)
	assert.Equal(t, constants.HistoryDriverSQLite, cfg.Storage.HistoryDriver)
	assert.Equal(t, 1, cfg.Engine.PoolSize)
	assert.Equal(t, constants.DefaultCampaignPoolSize, cfg.Campaign.PoolSize, "zero overrides are ignored")

	_, err = LoadWithOverrides(context.Background(), &Config{Storage: StorageConfig{HistoryDriver: "mongo"}})
	require.ErrorIs(t, err, errors.ErrConfigInvalidStorage)
}

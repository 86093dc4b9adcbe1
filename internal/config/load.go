package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/cadence/internal/errors"
)

// Load builds the configuration from, lowest precedence first:
//
//  1. DefaultConfig
//  2. ~/.cadence/config.yaml
//  3. .cadence/config.yaml in the working directory
//  4. CADENCE_* environment variables (CADENCE_ENGINE_POOL_SIZE=2)
//
// Missing files are skipped. Use LoadWithOverrides to apply flags on top.
func Load(ctx context.Context) (*Config, error) {
	global, err := GlobalConfigPath()
	if err != nil {
		global = ""
	}

	cfg, err := LoadFromPaths(ctx, ProjectConfigPath(), global)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "config").
		Int("engine.pool_size", cfg.Engine.PoolSize).
		Dur("engine.report_interval", cfg.Engine.ReportInterval).
		Int("campaign.pool_size", cfg.Campaign.PoolSize).
		Str("storage.dir", cfg.Storage.Dir).
		Str("storage.history_driver", cfg.Storage.HistoryDriver).
		Bool("redis.enabled", cfg.Redis.Enabled).
		Msg("configuration loaded")

	return cfg, nil
}

// LoadWithOverrides is Load followed by the non-zero fields of overrides,
// then a second validation.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		return cfg, nil
	}

	applyOverrides(cfg, overrides)
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths layers the project file over the global file over the
// defaults. An empty or missing path is skipped.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CADENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, path := range []string{globalConfigPath, projectConfigPath} {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	decodeDurations := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeDurations); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // an absent layer is not an error
	}

	v.SetConfigFile(path)
	err := v.MergeInConfig()

	var notFound viper.ConfigFileNotFoundError
	if err == nil || stderrors.As(err, &notFound) || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "read config %s", path)
}

// setDefaults mirrors DefaultConfig. Keys are the mapstructure tags, and
// every key must have a default for AutomaticEnv to see it on Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	for key, value := range map[string]any{
		"engine.pool_size":       d.Engine.PoolSize,
		"engine.report_interval": d.Engine.ReportInterval.String(),
		"campaign.pool_size":     d.Campaign.PoolSize,
		"storage.dir":            d.Storage.Dir,
		"storage.history_driver": d.Storage.HistoryDriver,
		"storage.sqlite_path":    d.Storage.SQLitePath,
		"redis.enabled":          d.Redis.Enabled,
		"redis.address":          d.Redis.Address,
		"redis.key_prefix":       d.Redis.KeyPrefix,
		"redis.lock_ttl":         d.Redis.LockTTL.String(),
	} {
		v.SetDefault(key, value)
	}
}

// applyOverrides copies the non-zero fields of o into cfg. Redis.Enabled can
// only be switched on this way; a false bool is indistinguishable from unset.
func applyOverrides(cfg, o *Config) {
	setIf(&cfg.Engine.PoolSize, o.Engine.PoolSize)
	setIf(&cfg.Engine.ReportInterval, o.Engine.ReportInterval)
	setIf(&cfg.Campaign.PoolSize, o.Campaign.PoolSize)
	setIf(&cfg.Storage.Dir, o.Storage.Dir)
	setIf(&cfg.Storage.HistoryDriver, o.Storage.HistoryDriver)
	setIf(&cfg.Storage.SQLitePath, o.Storage.SQLitePath)
	setIf(&cfg.Redis.Address, o.Redis.Address)
	setIf(&cfg.Redis.Enabled, o.Redis.Enabled)
}

func setIf[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

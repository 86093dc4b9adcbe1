package cli

import (
	"context"
	stderrors "errors"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/campaign"
	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/engine"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/report"
	"github.com/mrz1836/cadence/internal/store"
)

// services is the object graph shared by the execution commands.
type services struct {
	config      *config.Config
	definitions *store.FileDefinitions
	history     store.History
	broker      *report.Broker
	engine      *engine.Engine
	campaigns   *campaign.Engine
	redis       *redis.Pool
	logger      zerolog.Logger
}

// loadConfig loads the layered configuration with the storage flags applied.
func loadConfig(ctx context.Context, flags *GlobalFlags, logger zerolog.Logger) (*config.Config, error) {
	overrides := &config.Config{
		Storage: config.StorageConfig{
			Dir:           flags.Dir,
			HistoryDriver: flags.HistoryDriver,
		},
	}
	cfg, err := config.LoadWithOverrides(logger.WithContext(ctx), overrides)
	if err != nil {
		return nil, errors.NewExitCode2Error(err)
	}
	return cfg, nil
}

// newServices opens the stores selected by the configuration and wires the
// scenario and campaign engines on top of them. Close must be called.
func newServices(ctx context.Context, flags *GlobalFlags, logger zerolog.Logger) (*services, error) {
	cfg, err := loadConfig(ctx, flags, logger)
	if err != nil {
		return nil, err
	}

	dir, err := cfg.Storage.ResolvedDir()
	if err != nil {
		return nil, err
	}

	history, err := store.OpenHistory(ctx, cfg.Storage.HistoryDriver, dir, cfg.Storage.ResolvedSQLitePath(dir))
	if err != nil {
		return nil, err
	}

	s := &services{
		config:      cfg,
		definitions: store.NewFileDefinitions(dir),
		history:     history,
		broker:      report.NewBroker(),
		logger:      logger,
	}

	s.engine = engine.NewEngine(history, engine.Config{
		PoolSize:       cfg.Engine.PoolSize,
		ReportInterval: cfg.Engine.ReportInterval,
	}, logger, engine.WithPublisher(s.broker))

	opts := []campaign.Option{campaign.WithMetrics(campaign.LogMetrics{Logger: logger})}
	if cfg.Redis.Enabled {
		s.redis = store.NewRedisPool(cfg.Redis.Address)
		opts = append(opts, campaign.WithLeases(store.NewRedisLeases(s.redis, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL)))
		logger.Debug().Str("address", cfg.Redis.Address).Msg("using redis campaign locks")
	}
	s.campaigns = campaign.NewEngine(s.definitions, history, s.engine,
		campaign.Config{PoolSize: cfg.Campaign.PoolSize}, logger, opts...)

	logger.Debug().
		Str("dir", dir).
		Str("history_driver", cfg.Storage.HistoryDriver).
		Msg("services ready")
	return s, nil
}

// Close waits for background executions and releases the stores.
func (s *services) Close() error {
	s.engine.Wait()

	var errs []error
	if err := s.history.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/poller"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/sportsapi"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/store"
)

// syncStack is the store, quota, cache and upstream client composed into
// a fetch orchestrator.
type syncStack struct {
	cfg     *config.Config
	db      *store.Store
	client  *sportsapi.Client
	quota   *engine.QuotaTracker
	fetcher *engine.Orchestrator
	logger  *zap.Logger
}

func buildSyncStack(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*syncStack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	client := sportsapi.NewClient(cfg.Upstream.APIKey, logger.Named("sportsapi"),
		sportsapi.WithBaseURL(cfg.Upstream.BaseURL),
		sportsapi.WithTimeout(cfg.Upstream.Timeout),
		sportsapi.WithUserAgent(cfg.Upstream.UserAgent),
	)

	quota := &engine.QuotaTracker{
		Log:         db,
		MaxPerHour:  cfg.Sync.MaxPerHour,
		MinInterval: cfg.Sync.MinInterval,
		Logger:      logger.Named("quota"),
	}

	fetcher := &engine.Orchestrator{
		Cache:        &engine.ResponseCache{Store: db, Logger: logger.Named("cache")},
		Quota:        quota,
		Log:          db,
		Upstream:     client,
		LogSnapshots: cfg.Sync.LogSnapshots,
		Logger:       logger.Named("fetch"),
	}

	return &syncStack{
		cfg:     cfg,
		db:      db,
		client:  client,
		quota:   quota,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

func (s *syncStack) pollDefaults() poller.Defaults {
	return poller.Defaults{
		Interval:     s.cfg.Sync.DefaultInterval,
		LiveInterval: s.cfg.Sync.LiveInterval,
		RetryDelay:   s.cfg.Sync.RetryDelay,
		MaxRetries:   s.cfg.Sync.MaxRetries,
		Logger:       s.logger.Named("poller"),
	}
}

func (s *syncStack) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

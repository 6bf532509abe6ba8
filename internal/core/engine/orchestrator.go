package engine

//go:generate mockgen -source=orchestrator.go -destination=mocks/mock_orchestrator.go -package=mocks

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/metrics"
)

// Upstream is the sports data provider.
type Upstream interface {
	// Ready returns an error when the provider cannot be called at all,
	// for example because no credential is configured.
	Ready() error
	Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
}

// Fetcher is implemented by Orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, userID string, req core.FetchRequest) core.Result
}

// Orchestrator composes cache, quota and upstream into a single fetch.
type Orchestrator struct {
	Cache    Cache
	Quota    QuotaChecker
	Log      RequestLog
	Upstream Upstream
	// LogSnapshots stores successful response bodies in the request log.
	LogSnapshots bool
	Clock        func() time.Time
	Logger       *zap.Logger
}

var _ Fetcher = (*Orchestrator)(nil)

// Fetch resolves req for userID. A fresh cache hit is returned without
// consulting quota or the upstream. Every upstream attempt is appended to
// the request log.
func (o *Orchestrator) Fetch(ctx context.Context, userID string, req core.FetchRequest) core.Result {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	resource := string(req.Resource)
	logger := o.logger().With(
		zap.String("user_id", userID),
		zap.String("endpoint", req.Endpoint))

	maxAge := MaxAge(req.Resource)
	cacheable := req.CacheKey != "" && o.Cache != nil && maxAge > 0
	if cacheable {
		if payload, ok := o.Cache.Get(ctx, req.CacheKey, maxAge); ok {
			logger.Debug("Served from cache", zap.String("cache_key", req.CacheKey))
			metrics.RecordFetch(resource, "cache", time.Since(started))
			return core.Result{Success: true, Data: payload, FromCache: true}
		}
	}

	if o.Upstream == nil {
		return o.configError(resource, started, "sports data provider is not configured")
	}
	if err := o.Upstream.Ready(); err != nil {
		return o.configError(resource, started, err.Error())
	}

	if o.Quota == nil {
		metrics.RecordFetch(resource, core.ErrorStore, time.Since(started))
		return core.Result{Error: core.ErrorStore, Message: "request quota is not configured"}
	}
	decision := o.Quota.Check(ctx, userID)
	if !decision.Allowed {
		logger.Debug("Fetch denied by quota",
			zap.String("reason", decision.Reason))
		metrics.RecordFetch(resource, decision.Reason, time.Since(started))
		return core.Result{
			Error:         decision.Reason,
			Message:       decision.Message,
			NextAllowedAt: decision.NextAllowedAt,
		}
	}

	payload, err := o.Upstream.Get(ctx, req.Endpoint, req.Params)
	if err != nil {
		logger.Warn("Upstream request failed", zap.Error(err))
		metrics.RecordUpstreamRequest(req.Endpoint, false)
		o.appendLog(ctx, logger, core.RequestLogEntry{
			UserID:       userID,
			Endpoint:     req.Endpoint,
			Success:      false,
			ErrorMessage: err.Error(),
			CreatedAt:    o.now(),
		})
		metrics.RecordFetch(resource, core.ErrorAPI, time.Since(started))
		return core.Result{Error: core.ErrorAPI, Message: err.Error()}
	}
	metrics.RecordUpstreamRequest(req.Endpoint, true)

	if cacheable {
		o.Cache.Put(ctx, req.CacheKey, payload)
	}

	entry := core.RequestLogEntry{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		Success:   true,
		CreatedAt: o.now(),
	}
	if o.LogSnapshots {
		entry.ResponseSnapshot = payload
	}
	o.appendLog(ctx, logger, entry)

	metrics.RecordFetch(resource, "upstream", time.Since(started))
	return core.Result{Success: true, Data: payload}
}

func (o *Orchestrator) configError(resource string, started time.Time, message string) core.Result {
	metrics.RecordFetch(resource, core.ErrorConfig, time.Since(started))
	return core.Result{Error: core.ErrorConfig, Message: message}
}

// appendLog never fails the fetch; a lost entry only loosens the quota.
func (o *Orchestrator) appendLog(ctx context.Context, logger *zap.Logger, entry core.RequestLogEntry) {
	if o.Log == nil {
		return
	}
	if err := o.Log.AppendRequest(ctx, entry); err != nil {
		logger.Warn("Request log append failed", zap.Error(err))
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

package engine

//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/metrics"
)

// Fixed freshness policy per resource.
const (
	CountriesMaxAge = 24 * time.Hour
	LeaguesMaxAge   = 12 * time.Hour
	MatchesMaxAge   = 30 * time.Minute
	StandingsMaxAge = 60 * time.Minute
)

// MaxAge returns the freshness window for a resource. Unknown resources get
// zero and are not cached.
func MaxAge(resource core.Resource) time.Duration {
	switch resource {
	case core.ResourceCountries:
		return CountriesMaxAge
	case core.ResourceLeagues:
		return LeaguesMaxAge
	case core.ResourceMatches:
		return MatchesMaxAge
	case core.ResourceStandings:
		return StandingsMaxAge
	default:
		return 0
	}
}

// CacheStore persists the current payload for each cache key.
type CacheStore interface {
	// ReplaceCached atomically replaces whatever entry exists for key.
	ReplaceCached(ctx context.Context, key string, payload json.RawMessage, createdAt time.Time) error
	// LatestCached returns nil when no entry exists.
	LatestCached(ctx context.Context, key string) (*core.CacheEntry, error)
}

// Cache is the lookup surface the orchestrator depends on.
type Cache interface {
	Get(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool)
	Put(ctx context.Context, key string, payload json.RawMessage)
}

// ResponseCache serves stored payloads while they are fresh. Expired rows are
// left in place and simply ignored.
type ResponseCache struct {
	Store  CacheStore
	Clock  func() time.Time
	Logger *zap.Logger
}

var _ Cache = (*ResponseCache)(nil)

// Get returns the payload for key when it is no older than maxAge. A zero
// maxAge only matches an entry written at the same instant. Store failures
// are reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool) {
	if c == nil || c.Store == nil || key == "" || maxAge < 0 {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	entry, err := c.Store.LatestCached(ctx, key)
	if err != nil {
		c.logger().Warn("Cache lookup failed",
			zap.String("cache_key", key),
			zap.Error(err))
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	if !entry.Fresh(c.now(), maxAge) {
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	metrics.RecordCacheLookup(true)
	return entry.Payload, true
}

// Put replaces the entry for key. Failures are logged and swallowed.
func (c *ResponseCache) Put(ctx context.Context, key string, payload json.RawMessage) {
	if c == nil || c.Store == nil || key == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.Store.ReplaceCached(ctx, key, payload, c.now()); err != nil {
		c.logger().Warn("Cache write failed",
			zap.String("cache_key", key),
			zap.Error(err))
	}
}

func (c *ResponseCache) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *ResponseCache) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

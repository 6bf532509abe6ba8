package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

// LatestCached returns the current entry for key, or nil when absent.
// Freshness is decided by the caller.
func (s *Store) LatestCached(ctx context.Context, key string) (*core.CacheEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cacheKey := strings.TrimSpace(key)
	if cacheKey == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		payload   string
		createdAt int64
	)
	row := s.DB.QueryRowContext(ctx, s.rebind(`
		SELECT payload, created_at
		FROM api_cache
		WHERE cache_key = ?
	`), cacheKey)
	if err := row.Scan(&payload, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached payload: %w", err)
	}

	return &core.CacheEntry{
		CacheKey:  cacheKey,
		Payload:   json.RawMessage(payload),
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}, nil
}

// ReplaceCached stores payload as the only entry for key.
func (s *Store) ReplaceCached(ctx context.Context, key string, payload json.RawMessage, createdAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cacheKey := strings.TrimSpace(key)
	if cacheKey == "" {
		return errors.New("cache key is required")
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO api_cache (cache_key, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`), cacheKey, string(payload), createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store cached payload: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

// RequestLogQuery selects request log rows for operator commands.
type RequestLogQuery struct {
	All    bool
	UserID string
	// Before restricts to rows created strictly before this instant.
	Before time.Time
	Limit  int
}

func (q RequestLogQuery) Validate() error {
	if q.All || strings.TrimSpace(q.UserID) != "" || !q.Before.IsZero() {
		return nil
	}
	return errors.New("must specify --all, --user, or --before")
}

func (q RequestLogQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	var (
		clauses []string
		args    []any
	)
	if user := strings.TrimSpace(q.UserID); user != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, user)
	}
	if !q.Before.IsZero() {
		clauses = append(clauses, "created_at < ?")
		args = append(args, q.Before.UnixMilli())
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

// ListRequests returns matching entries, newest first.
func (s *Store) ListRequests(ctx context.Context, q RequestLogQuery) ([]core.RequestLogEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}
	limit := ""
	if q.Limit > 0 {
		limit = fmt.Sprintf("LIMIT %d", q.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT user_id, endpoint, success, response_snapshot, error_message, created_at
		FROM request_log
		%s
		ORDER BY created_at DESC, id DESC
		%s
	`, where, limit)), args...)
	if err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	return scanRequestLog(rows)
}

func (s *Store) CountRequests(ctx context.Context, q RequestLogQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	var count int
	row := s.DB.QueryRowContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM request_log
		%s
	`, where)), args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count request log: %w", err)
	}
	return count, nil
}

// PurgeRequests deletes matching rows. Removing rows inside the trailing
// hour also releases quota.
func (s *Store) PurgeRequests(ctx context.Context, q RequestLogQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, s.rebind(fmt.Sprintf(`
		DELETE FROM request_log
		%s
	`, where)), args...)
	if err != nil {
		return 0, fmt.Errorf("purge request log: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge request log: %w", err)
	}
	return affected, nil
}

// CacheQuery selects response cache rows.
type CacheQuery struct {
	All    bool
	Key    string
	Prefix string
}

func (q CacheQuery) Validate() error {
	if q.All || strings.TrimSpace(q.Key) != "" || strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --key, or --prefix")
}

func (q CacheQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if key := strings.TrimSpace(q.Key); key != "" {
		return "WHERE cache_key = ?", []any{key}, nil
	}
	return `WHERE cache_key LIKE ? ESCAPE '\'`, []any{escapeLike(strings.TrimSpace(q.Prefix)) + "%"}, nil
}

// CachedKey summarizes one cache row without its payload.
type CachedKey struct {
	CacheKey  string    `json:"cache_key"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ListCached returns matching keys ordered by key.
func (s *Store) ListCached(ctx context.Context, q CacheQuery) ([]CachedKey, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT cache_key, LENGTH(payload), created_at
		FROM api_cache
		%s
		ORDER BY cache_key
	`, where)), args...)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	keys := []CachedKey{}
	for rows.Next() {
		var (
			key       CachedKey
			createdAt int64
		)
		if err := rows.Scan(&key.CacheKey, &key.Bytes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cache: %w", err)
		}
		key.CreatedAt = time.UnixMilli(createdAt).UTC()
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	return keys, nil
}

// PurgeCached deletes matching cache rows.
func (s *Store) PurgeCached(ctx context.Context, q CacheQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, s.rebind(fmt.Sprintf(`
		DELETE FROM api_cache
		%s
	`, where)), args...)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return affected, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

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

// AppendRequest records one upstream attempt.
func (s *Store) AppendRequest(ctx context.Context, entry core.RequestLogEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID := strings.TrimSpace(entry.UserID)
	if userID == "" {
		return errors.New("user id is required")
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var snapshot sql.NullString
	if entry.Success && len(entry.ResponseSnapshot) > 0 {
		snapshot = sql.NullString{String: string(entry.ResponseSnapshot), Valid: true}
	}
	var errMessage sql.NullString
	if entry.ErrorMessage != "" {
		errMessage = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO request_log (user_id, endpoint, success, response_snapshot, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), userID, entry.Endpoint, boolToInt(entry.Success), snapshot, errMessage, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

// RecentRequests returns the user's entries created at or after since,
// newest first.
func (s *Store) RecentRequests(ctx context.Context, userID string, since time.Time) ([]core.RequestLogEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(`
		SELECT user_id, endpoint, success, response_snapshot, error_message, created_at
		FROM request_log
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`), strings.TrimSpace(userID), since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("read request log: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	return scanRequestLog(rows)
}

func scanRequestLog(rows *sql.Rows) ([]core.RequestLogEntry, error) {
	entries := []core.RequestLogEntry{}
	for rows.Next() {
		var (
			entry      core.RequestLogEntry
			success    int
			snapshot   sql.NullString
			errMessage sql.NullString
			createdAt  int64
		)
		if err := rows.Scan(&entry.UserID, &entry.Endpoint, &success, &snapshot, &errMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		entry.Success = success != 0
		if snapshot.Valid && snapshot.String != "" {
			entry.ResponseSnapshot = json.RawMessage(snapshot.String)
		}
		entry.ErrorMessage = errMessage.String
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read request log: %w", err)
	}
	return entries, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

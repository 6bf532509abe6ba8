package engine

//go:generate mockgen -source=ratelimit.go -destination=mocks/mock_ratelimit.go -package=mocks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/metrics"
)

const (
	// MaxRequestsPerHour caps upstream requests per user in any trailing hour.
	MaxRequestsPerHour = 25
	// MinRequestInterval is the minimum spacing between two upstream requests.
	MinRequestInterval = 5 * time.Minute
	// QuotaWindow is the rolling window the hourly cap applies to.
	QuotaWindow = time.Hour
)

// RequestLog is the durable, append-only record of upstream attempts.
type RequestLog interface {
	AppendRequest(ctx context.Context, entry core.RequestLogEntry) error
	// RecentRequests returns entries created at or after since, newest first.
	RecentRequests(ctx context.Context, userID string, since time.Time) ([]core.RequestLogEntry, error)
}

// QuotaChecker decides whether a user may issue an upstream request.
type QuotaChecker interface {
	Check(ctx context.Context, userID string) core.RateLimitDecision
}

// QuotaTracker enforces the per-user hourly cap and minimum spacing using
// the durable request log. It holds no state of its own.
type QuotaTracker struct {
	Log         RequestLog
	MaxPerHour  int
	MinInterval time.Duration
	Clock       func() time.Time
	Logger      *zap.Logger
}

var _ QuotaChecker = (*QuotaTracker)(nil)

// Check evaluates both constraints against the trailing hour. It fails closed
// when the log cannot be read.
func (q *QuotaTracker) Check(ctx context.Context, userID string) core.RateLimitDecision {
	if q == nil || q.Log == nil {
		return q.deny(core.ErrorStore, "request log is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := q.now()
	entries, err := q.Log.RecentRequests(ctx, userID, now.Add(-QuotaWindow))
	if err != nil {
		q.logger().Warn("Quota check failed closed",
			zap.String("user_id", userID),
			zap.Error(err))
		return q.deny(core.ErrorStore, "unable to verify request quota, try again shortly", nil)
	}

	limit := q.maxPerHour()
	if len(entries) >= limit {
		oldest := entries[len(entries)-1].CreatedAt
		next := oldest.Add(QuotaWindow)
		return q.deny(core.ErrorHourlyCap,
			fmt.Sprintf("hourly limit of %d requests reached, next request allowed in %s", limit, waitText(next.Sub(now))),
			&next)
	}

	if len(entries) > 0 {
		newest := entries[0].CreatedAt
		interval := q.minInterval()
		if now.Sub(newest) < interval {
			next := newest.Add(interval)
			return q.deny(core.ErrorMinInterval,
				fmt.Sprintf("requests must be %s apart, next request allowed in %s", interval, waitText(next.Sub(now))),
				&next)
		}
	}

	metrics.RecordQuotaDecision("allowed")
	return core.RateLimitDecision{Allowed: true}
}

// Usage summarizes the user's current window without making a decision.
func (q *QuotaTracker) Usage(ctx context.Context, userID string) (core.QuotaUsage, error) {
	if q == nil || q.Log == nil {
		return core.QuotaUsage{}, fmt.Errorf("request log is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := q.now()
	from := now.Add(-QuotaWindow)
	entries, err := q.Log.RecentRequests(ctx, userID, from)
	if err != nil {
		return core.QuotaUsage{}, fmt.Errorf("read request window: %w", err)
	}

	limit := q.maxPerHour()
	usage := core.QuotaUsage{
		UserID:     userID,
		Used:       len(entries),
		Limit:      limit,
		Remaining:  max(limit-len(entries), 0),
		WindowFrom: from,
	}
	if len(entries) > 0 {
		newest := entries[0].CreatedAt
		oldest := entries[len(entries)-1].CreatedAt
		usage.NewestAt = &newest
		usage.OldestAt = &oldest
	}
	return usage, nil
}

func (q *QuotaTracker) deny(reason, message string, next *time.Time) core.RateLimitDecision {
	metrics.RecordQuotaDecision(reason)
	return core.RateLimitDecision{
		Allowed:       false,
		Reason:        reason,
		Message:       message,
		NextAllowedAt: next,
	}
}

func (q *QuotaTracker) maxPerHour() int {
	if q == nil || q.MaxPerHour <= 0 {
		return MaxRequestsPerHour
	}
	return q.MaxPerHour
}

func (q *QuotaTracker) minInterval() time.Duration {
	if q == nil || q.MinInterval <= 0 {
		return MinRequestInterval
	}
	return q.MinInterval
}

func (q *QuotaTracker) now() time.Time {
	if q != nil && q.Clock != nil {
		return q.Clock()
	}
	return time.Now().UTC()
}

func (q *QuotaTracker) logger() *zap.Logger {
	if q == nil || q.Logger == nil {
		return zap.NewNop()
	}
	return q.Logger
}

func waitText(d time.Duration) string {
	if d < time.Second {
		return "a moment"
	}
	return d.Round(time.Second).String()
}

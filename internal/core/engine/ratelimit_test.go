package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

type memoryRequestLog struct {
	mu      sync.Mutex
	entries []core.RequestLogEntry
	readErr error
}

func (m *memoryRequestLog) AppendRequest(ctx context.Context, entry core.RequestLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryRequestLog) RecentRequests(ctx context.Context, userID string, since time.Time) ([]core.RequestLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []core.RequestLogEntry
	for _, entry := range m.entries {
		if entry.UserID == userID && !entry.CreatedAt.Before(since) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryRequestLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memoryRequestLog) add(userID string, at time.Time) {
	_ = m.AppendRequest(context.Background(), core.RequestLogEntry{
		UserID:    userID,
		Endpoint:  "/matches",
		Success:   true,
		CreatedAt: at,
	})
}

var baseTime = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func TestQuotaTrackerHourlyCap(t *testing.T) {
	log := &memoryRequestLog{}
	// 25 requests spread over 45 minutes
	for i := 0; i < 25; i++ {
		log.add("u1", baseTime.Add(time.Duration(i)*45*time.Minute/24))
	}

	now := baseTime.Add(46 * time.Minute)
	tracker := &QuotaTracker{Log: log, Clock: func() time.Time { return now }}

	decision := tracker.Check(context.Background(), "u1")
	require.False(t, decision.Allowed)
	require.Equal(t, core.ErrorHourlyCap, decision.Reason)
	require.NotNil(t, decision.NextAllowedAt)
	require.Equal(t, baseTime.Add(time.Hour), *decision.NextAllowedAt)
	require.NotEmpty(t, decision.Message)
}

func TestQuotaTrackerWindowSlides(t *testing.T) {
	log := &memoryRequestLog{}
	for i := 0; i < 25; i++ {
		log.add("u1", baseTime.Add(time.Duration(i)*time.Minute))
	}

	now := baseTime.Add(time.Hour + 30*time.Minute)
	tracker := &QuotaTracker{Log: log, Clock: func() time.Time { return now }}

	decision := tracker.Check(context.Background(), "u1")
	require.True(t, decision.Allowed)
}

func TestQuotaTrackerMinInterval(t *testing.T) {
	log := &memoryRequestLog{}
	log.add("u1", baseTime)

	now := baseTime.Add(3 * time.Minute)
	tracker := &QuotaTracker{Log: log, Clock: func() time.Time { return now }}

	decision := tracker.Check(context.Background(), "u1")
	require.False(t, decision.Allowed)
	require.Equal(t, core.ErrorMinInterval, decision.Reason)
	require.Equal(t, baseTime.Add(5*time.Minute), *decision.NextAllowedAt)

	now = baseTime.Add(6 * time.Minute)
	decision = tracker.Check(context.Background(), "u1")
	require.True(t, decision.Allowed)
}

func TestQuotaTrackerMinIntervalBoundary(t *testing.T) {
	log := &memoryRequestLog{}
	log.add("u1", baseTime)

	now := baseTime.Add(5*time.Minute - time.Millisecond)
	tracker := &QuotaTracker{Log: log, Clock: func() time.Time { return now }}
	require.False(t, tracker.Check(context.Background(), "u1").Allowed)

	now = baseTime.Add(5 * time.Minute)
	require.True(t, tracker.Check(context.Background(), "u1").Allowed)
}

func TestQuotaTrackerUsersAreIndependent(t *testing.T) {
	log := &memoryRequestLog{}
	log.add("u1", baseTime)

	tracker := &QuotaTracker{Log: log, Clock: func() time.Time { return baseTime.Add(time.Minute) }}
	require.False(t, tracker.Check(context.Background(), "u1").Allowed)
	require.True(t, tracker.Check(context.Background(), "u2").Allowed)
}

func TestQuotaTrackerFailsClosed(t *testing.T) {
	log := &memoryRequestLog{readErr: errors.New("database is locked")}
	tracker := &QuotaTracker{Log: log}

	decision := tracker.Check(context.Background(), "u1")
	require.False(t, decision.Allowed)
	require.Equal(t, core.ErrorStore, decision.Reason)
	require.Nil(t, decision.NextAllowedAt)

	var nilTracker *QuotaTracker
	require.False(t, nilTracker.Check(context.Background(), "u1").Allowed)
}

func TestQuotaTrackerCustomLimits(t *testing.T) {
	log := &memoryRequestLog{}
	log.add("u1", baseTime)
	log.add("u1", baseTime.Add(2*time.Minute))

	now := baseTime.Add(4 * time.Minute)
	tracker := &QuotaTracker{
		Log:         log,
		MaxPerHour:  2,
		MinInterval: time.Minute,
		Clock:       func() time.Time { return now },
	}

	decision := tracker.Check(context.Background(), "u1")
	require.False(t, decision.Allowed)
	require.Equal(t, core.ErrorHourlyCap, decision.Reason)
	require.Equal(t, baseTime.Add(time.Hour), *decision.NextAllowedAt)
}

func TestQuotaTrackerUsage(t *testing.T) {
	log := &memoryRequestLog{}
	log.add("u1", baseTime.Add(-2*time.Hour))
	log.add("u1", baseTime.Add(-30*time.Minute))
	log.add("u1", baseTime.Add(-10*time.Minute))

	tracker := &QuotaTracker{Log: log, Clock: func() time.Time { return baseTime }}

	usage, err := tracker.Usage(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 2, usage.Used)
	require.Equal(t, MaxRequestsPerHour, usage.Limit)
	require.Equal(t, MaxRequestsPerHour-2, usage.Remaining)
	require.Equal(t, baseTime.Add(-30*time.Minute), *usage.OldestAt)
	require.Equal(t, baseTime.Add(-10*time.Minute), *usage.NewestAt)
	require.Equal(t, baseTime.Add(-time.Hour), usage.WindowFrom)
}

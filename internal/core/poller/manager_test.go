package poller

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine/mocks"
)

func TestManagerSubscribeAssignsIDAndDefaults(t *testing.T) {
	clock := newManualClock(pollStart)
	fetcher := &scriptedFetcher{clock: clock, results: []core.Result{success(`[]`)}}
	manager := NewManager(fetcher, Defaults{
		Interval:   time.Minute,
		RetryDelay: 10 * time.Second,
		MaxRetries: 2,
		Clock:      clock,
	})

	sub := manager.Subscribe(Config{UserID: "u1", Request: matchesRequest, Immediate: true})
	_, err := uuid.Parse(sub.ID())
	require.NoError(t, err)
	require.Equal(t, time.Minute, sub.Config().Interval)
	require.Equal(t, 2, sub.Config().MaxRetries)
	require.Equal(t, 1, fetcher.count())
	require.Equal(t, 1, manager.Len())

	clock.Advance(time.Minute)
	require.Equal(t, 2, fetcher.count())

	got, err := manager.Get(sub.ID())
	require.NoError(t, err)
	require.Same(t, sub, got)
}

func TestManagerResubscribeReplacesExisting(t *testing.T) {
	clock := newManualClock(pollStart)
	fetcher := &scriptedFetcher{clock: clock, results: []core.Result{success(`[]`)}}
	manager := NewManager(fetcher, Defaults{Clock: clock})

	first := manager.Subscribe(Config{ID: "fixed", UserID: "u1", Request: matchesRequest})
	second := manager.Subscribe(Config{ID: "fixed", UserID: "u1", Request: matchesRequest})

	require.Equal(t, StateStopped, first.Status().State)
	require.Equal(t, StatePolling, second.Status().State)
	require.Equal(t, 1, manager.Len())
	require.Equal(t, 1, clock.pending())
}

func TestManagerListFiltersByUser(t *testing.T) {
	clock := newManualClock(pollStart)
	fetcher := &scriptedFetcher{clock: clock, results: []core.Result{success(`[]`)}}
	manager := NewManager(fetcher, Defaults{Clock: clock})

	manager.Subscribe(Config{ID: "b", UserID: "u1", Request: matchesRequest})
	manager.Subscribe(Config{ID: "a", UserID: "u1", Request: matchesRequest})
	manager.Subscribe(Config{ID: "c", UserID: "u2", Request: matchesRequest})

	all := manager.List("")
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].ID)

	mine := manager.List("u1")
	require.Len(t, mine, 2)
	for _, view := range mine {
		require.Equal(t, "u1", view.UserID)
	}
}

func TestManagerRemoveAndStopAll(t *testing.T) {
	clock := newManualClock(pollStart)
	fetcher := &scriptedFetcher{clock: clock, results: []core.Result{success(`[]`)}}
	manager := NewManager(fetcher, Defaults{Clock: clock})

	a := manager.Subscribe(Config{ID: "a", UserID: "u1", Request: matchesRequest})
	b := manager.Subscribe(Config{ID: "b", UserID: "u1", Request: matchesRequest})

	require.NoError(t, manager.Remove("a"))
	require.ErrorIs(t, manager.Remove("a"), ErrSubscriptionNotFound)
	require.Equal(t, StateStopped, a.Status().State)
	_, err := manager.View("a")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	manager.StopAll()
	require.Equal(t, StateStopped, b.Status().State)
	require.Zero(t, manager.Len())
	require.Zero(t, clock.pending())

	clock.Advance(time.Hour)
	require.Zero(t, fetcher.count())
}

func TestManagerVisibility(t *testing.T) {
	clock := newManualClock(pollStart)
	fetcher := &scriptedFetcher{clock: clock, results: []core.Result{success(`[]`)}}
	manager := NewManager(fetcher, Defaults{Clock: clock})

	manager.Subscribe(Config{ID: "a", UserID: "u1", Request: matchesRequest})
	manager.Subscribe(Config{ID: "b", UserID: "u1", Request: matchesRequest})

	view, err := manager.SetVisible("a", false)
	require.NoError(t, err)
	require.Equal(t, StateSuspended, view.State)

	manager.SetAllVisible(false)
	require.Zero(t, clock.pending())

	manager.SetAllVisible(true)
	require.Equal(t, 2, fetcher.count())
	for _, view := range manager.List("") {
		require.Equal(t, StatePolling, view.State)
		require.True(t, view.Visible)
	}

	_, err = manager.SetVisible("missing", true)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestManagerRefreshUsesFetcher(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	clock := newManualClock(pollStart)

	fetcher.EXPECT().
		Fetch(gomock.Any(), "u1", matchesRequest).
		Return(core.Result{Success: true, Data: []byte(`[]`), FromCache: true}).
		Times(1)

	manager := NewManager(fetcher, Defaults{Clock: clock})
	manager.Subscribe(Config{ID: "a", UserID: "u1", Request: matchesRequest})

	view, err := manager.Refresh(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, view.FromCache)
	require.Equal(t, StatePolling, view.State)

	_, err = manager.Refresh(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	manager.StopAll()
	_, err = manager.Refresh(context.Background(), "a")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

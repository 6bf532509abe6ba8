package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine/mocks"
)

type stubUpstream struct {
	payload  json.RawMessage
	err      error
	readyErr error
	calls    int
}

func (s *stubUpstream) Ready() error {
	return s.readyErr
}

func (s *stubUpstream) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

type fixture struct {
	now      time.Time
	log      *memoryRequestLog
	cache    *memoryCacheStore
	upstream *stubUpstream
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		now:      baseTime,
		log:      &memoryRequestLog{},
		cache:    &memoryCacheStore{},
		upstream: &stubUpstream{payload: json.RawMessage(`{"data":[]}`)},
	}
	clock := func() time.Time { return f.now }
	f.orch = &Orchestrator{
		Cache:    &ResponseCache{Store: f.cache, Clock: clock},
		Quota:    &QuotaTracker{Log: f.log, Clock: clock},
		Log:      f.log,
		Upstream: f.upstream,
		Clock:    clock,
	}
	return f
}

var matchesRequest = core.FetchRequest{
	Resource: core.ResourceMatches,
	Endpoint: "/matches",
	Params:   url.Values{"league_id": []string{"39"}},
	CacheKey: "matches:league_id=39",
}

func TestOrchestratorCacheHitSkipsQuotaAndLog(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	quota := mocks.NewMockQuotaChecker(ctrl)
	log := mocks.NewMockRequestLog(ctrl)
	upstream := mocks.NewMockUpstream(ctrl)

	cache.EXPECT().Get(gomock.Any(), matchesRequest.CacheKey, MatchesMaxAge).
		Return(json.RawMessage(`{"data":[1]}`), true)
	quota.EXPECT().Check(gomock.Any(), gomock.Any()).Times(0)
	log.EXPECT().AppendRequest(gomock.Any(), gomock.Any()).Times(0)
	log.EXPECT().RecentRequests(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	upstream.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	orch := &Orchestrator{Cache: cache, Quota: quota, Log: log, Upstream: upstream}
	result := orch.Fetch(context.Background(), "u1", matchesRequest)

	require.True(t, result.Success)
	require.True(t, result.FromCache)
	require.JSONEq(t, `{"data":[1]}`, string(result.Data))
}

func TestOrchestratorMissingCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	quota := mocks.NewMockQuotaChecker(ctrl)
	log := mocks.NewMockRequestLog(ctrl)
	upstream := mocks.NewMockUpstream(ctrl)

	upstream.EXPECT().Ready().Return(errors.New("sports api key is not configured"))
	upstream.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	quota.EXPECT().Check(gomock.Any(), gomock.Any()).Times(0)
	log.EXPECT().AppendRequest(gomock.Any(), gomock.Any()).Times(0)

	orch := &Orchestrator{Cache: &ResponseCache{Store: &memoryCacheStore{}}, Quota: quota, Log: log, Upstream: upstream}
	result := orch.Fetch(context.Background(), "u1", matchesRequest)

	require.False(t, result.Success)
	require.Equal(t, core.ErrorConfig, result.Error)
	require.Contains(t, result.Message, "not configured")

	// Deterministic across calls.
	upstream.EXPECT().Ready().Return(errors.New("sports api key is not configured"))
	require.Equal(t, core.ErrorConfig, orch.Fetch(context.Background(), "u1", matchesRequest).Error)
}

func TestOrchestratorSuccessCachesAndLogs(t *testing.T) {
	f := newFixture()
	f.upstream.payload = json.RawMessage(`{"data":[{"id":7}]}`)
	f.orch.LogSnapshots = true

	result := f.orch.Fetch(context.Background(), "u1", matchesRequest)
	require.True(t, result.Success)
	require.False(t, result.FromCache)
	require.JSONEq(t, `{"data":[{"id":7}]}`, string(result.Data))

	require.Equal(t, 1, f.log.count())
	entry := f.log.entries[0]
	require.True(t, entry.Success)
	require.Equal(t, "/matches", entry.Endpoint)
	require.Equal(t, f.now, entry.CreatedAt)
	require.JSONEq(t, `{"data":[{"id":7}]}`, string(entry.ResponseSnapshot))

	cached, ok := f.cache.entries[matchesRequest.CacheKey]
	require.True(t, ok)
	require.Equal(t, f.now, cached.CreatedAt)
}

func TestOrchestratorUpstreamFailureLogsAndCountsTowardQuota(t *testing.T) {
	f := newFixture()
	f.upstream.err = errors.New("upstream returned 500")

	result := f.orch.Fetch(context.Background(), "u1", matchesRequest)
	require.False(t, result.Success)
	require.Equal(t, core.ErrorAPI, result.Error)
	require.Contains(t, result.Message, "500")

	require.Equal(t, 1, f.log.count())
	require.False(t, f.log.entries[0].Success)
	require.Equal(t, "upstream returned 500", f.log.entries[0].ErrorMessage)
	require.Empty(t, f.cache.entries)

	f.now = f.now.Add(time.Minute)
	result = f.orch.Fetch(context.Background(), "u1", matchesRequest)
	require.Equal(t, core.ErrorMinInterval, result.Error)
	require.Equal(t, 1, f.upstream.calls)
}

func TestOrchestratorMinIntervalScenario(t *testing.T) {
	f := newFixture()
	uncached := matchesRequest
	uncached.CacheKey = ""

	require.True(t, f.orch.Fetch(context.Background(), "u1", uncached).Success)

	f.now = baseTime.Add(3 * time.Minute)
	result := f.orch.Fetch(context.Background(), "u1", uncached)
	require.Equal(t, core.ErrorMinInterval, result.Error)
	require.True(t, result.IsRateLimited())
	require.Equal(t, baseTime.Add(5*time.Minute), *result.NextAllowedAt)

	f.now = baseTime.Add(6 * time.Minute)
	require.True(t, f.orch.Fetch(context.Background(), "u1", uncached).Success)
	require.Equal(t, 2, f.upstream.calls)
	require.Equal(t, 2, f.log.count())
}

func TestOrchestratorHourlyCapScenario(t *testing.T) {
	f := newFixture()
	f.orch.Quota = &QuotaTracker{Log: f.log, MinInterval: time.Second, Clock: func() time.Time { return f.now }}
	uncached := matchesRequest
	uncached.CacheKey = ""

	for i := 0; i < 25; i++ {
		f.now = baseTime.Add(time.Duration(i) * 45 * time.Minute / 24)
		require.True(t, f.orch.Fetch(context.Background(), "u1", uncached).Success, "request %d", i+1)
	}

	f.now = baseTime.Add(46 * time.Minute)
	result := f.orch.Fetch(context.Background(), "u1", uncached)
	require.Equal(t, core.ErrorHourlyCap, result.Error)
	require.Equal(t, baseTime.Add(time.Hour), *result.NextAllowedAt)
	require.Equal(t, 25, f.upstream.calls)
}

func TestOrchestratorCacheExpiryScenario(t *testing.T) {
	f := newFixture()

	require.False(t, f.orch.Fetch(context.Background(), "u1", matchesRequest).FromCache)

	f.now = baseTime.Add(29 * time.Minute)
	hit := f.orch.Fetch(context.Background(), "u1", matchesRequest)
	require.True(t, hit.Success)
	require.True(t, hit.FromCache)
	require.Equal(t, 1, f.upstream.calls)

	f.now = baseTime.Add(31 * time.Minute)
	miss := f.orch.Fetch(context.Background(), "u1", matchesRequest)
	require.True(t, miss.Success)
	require.False(t, miss.FromCache)
	require.Equal(t, 2, f.upstream.calls)
}

func TestOrchestratorStoreFailureFailsClosed(t *testing.T) {
	f := newFixture()
	f.log.readErr = errors.New("connection refused")

	result := f.orch.Fetch(context.Background(), "u1", matchesRequest)
	require.False(t, result.Success)
	require.Equal(t, core.ErrorStore, result.Error)
	require.Zero(t, f.upstream.calls)
}

func TestOrchestratorLogFailureKeepsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockRequestLog(ctrl)
	log.EXPECT().RecentRequests(gomock.Any(), "u1", gomock.Any()).Return(nil, nil)
	log.EXPECT().AppendRequest(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	upstream := &stubUpstream{payload: json.RawMessage(`[]`)}
	orch := &Orchestrator{
		Quota:    &QuotaTracker{Log: log},
		Log:      log,
		Upstream: upstream,
	}

	result := orch.Fetch(context.Background(), "u1", core.FetchRequest{Resource: core.ResourceCountries, Endpoint: "/countries"})
	require.True(t, result.Success)
	require.JSONEq(t, `[]`, string(result.Data))
}

func TestOrchestratorSkipsCacheForUnknownResource(t *testing.T) {
	f := newFixture()
	req := core.FetchRequest{Resource: core.Resource("players"), Endpoint: "/players", CacheKey: "players"}

	first := f.orch.Fetch(context.Background(), "u1", req)
	require.True(t, first.Success)
	require.False(t, first.FromCache)
	require.Equal(t, 1, f.upstream.calls)

	entry, err := f.cache.LatestCached(context.Background(), "players")
	require.NoError(t, err)
	require.Nil(t, entry)
}

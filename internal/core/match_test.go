package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMatchesBareArray(t *testing.T) {
	payload := json.RawMessage(`[
		{"id": 101, "league_id": 71, "date": "2025-03-01T18:00:00Z", "status": "1H",
		 "home_team": {"name": "Flamengo"}, "away_team": "Vasco", "home_score": 1, "away_score": 0},
		{"id": "102", "date": "2025-03-02 16:00:00", "status": "scheduled"}
	]`)

	matches, err := DecodeMatches(payload)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	first := matches[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "71", first.LeagueID)
	assert.Equal(t, "Flamengo", first.HomeTeam)
	assert.Equal(t, "Vasco", first.AwayTeam)
	require.NotNil(t, first.HomeScore)
	assert.Equal(t, 1, *first.HomeScore)
	assert.Equal(t, time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), first.Date)

	second := matches[1]
	assert.Equal(t, "102", second.ID)
	assert.Empty(t, second.LeagueID)
	assert.Nil(t, second.HomeScore)
	assert.Equal(t, time.Date(2025, 3, 2, 16, 0, 0, 0, time.UTC), second.Date)
}

func TestDecodeMatchesEnvelope(t *testing.T) {
	for _, key := range []string{"data", "matches", "response", "results"} {
		t.Run(key, func(t *testing.T) {
			payload := json.RawMessage(`{"` + key + `": [{"id": 1, "date": "2025-03-01T18:00:00-03:00", "status": "finished"}]}`)
			matches, err := DecodeMatches(payload)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC), matches[0].Date)
		})
	}
}

func TestDecodeMatchesErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       ``,
		"not json":    `{nope`,
		"no list":     `{"count": 3}`,
		"bad date":    `[{"id": 1, "date": "yesterday", "status": "finished"}]`,
		"wrong shape": `{"data": {"id": 1}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMatches(json.RawMessage(payload))
			require.Error(t, err)
		})
	}
}

func TestDecodeMatchesEmptyList(t *testing.T) {
	matches, err := DecodeMatches(json.RawMessage(`{"data": []}`))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestResultIsRateLimited(t *testing.T) {
	assert.True(t, Result{Error: ErrorHourlyCap}.IsRateLimited())
	assert.True(t, Result{Error: ErrorMinInterval}.IsRateLimited())
	assert.False(t, Result{Error: ErrorAPI}.IsRateLimited())
	assert.False(t, Result{Error: ErrorStore}.IsRateLimited())
	assert.False(t, Result{Success: true}.IsRateLimited())
}

func TestCacheEntryFresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	entry := &CacheEntry{CreatedAt: now.Add(-29 * time.Minute)}
	assert.True(t, entry.Fresh(now, 30*time.Minute))
	assert.False(t, entry.Fresh(now, 20*time.Minute))

	var missing *CacheEntry
	assert.False(t, missing.Fresh(now, time.Hour))
}

func TestParseResource(t *testing.T) {
	resource, ok := ParseResource("standings")
	assert.True(t, ok)
	assert.Equal(t, ResourceStandings, resource)

	_, ok = ParseResource("players")
	assert.False(t, ok)
}

package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/store"
)

var now = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestResultTable(t *testing.T) {
	req := core.FetchRequest{Endpoint: "/countries", CacheKey: "countries"}

	rendered, err := Result(FormatTable, req, core.Result{Success: true, Data: json.RawMessage(`[1,2,3]`), FromCache: true})
	require.NoError(t, err)
	require.Contains(t, rendered, "cache")
	require.Contains(t, rendered, "7 bytes")

	next := now.Add(5 * time.Minute)
	rendered, err = Result(FormatTable, req, core.Result{Error: core.ErrorMinInterval, Message: "wait", NextAllowedAt: &next})
	require.NoError(t, err)
	require.Contains(t, rendered, "min_interval")
	require.Contains(t, rendered, "2025-03-01T18:05:00Z")
}

func TestResultJSONKeepsPayload(t *testing.T) {
	rendered, err := Result(FormatJSON, core.FetchRequest{}, core.Result{Success: true, Data: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, true, decoded["success"])
	require.Equal(t, map[string]any{"a": float64(1)}, decoded["data"])
}

func TestQuotaRendering(t *testing.T) {
	oldest := now.Add(-40 * time.Minute)
	next := now.Add(2 * time.Minute)
	usage := core.QuotaUsage{UserID: "u1", Used: 25, Limit: 25, OldestAt: &oldest, WindowFrom: now.Add(-time.Hour)}
	decision := &core.RateLimitDecision{Reason: core.ErrorHourlyCap, NextAllowedAt: &next}

	rendered, err := Quota(FormatTable, usage, decision)
	require.NoError(t, err)
	require.Contains(t, rendered, "25/25")
	require.Contains(t, rendered, "hourly_cap")

	rendered, err = Quota(FormatJSON, usage, decision)
	require.NoError(t, err)
	require.Contains(t, rendered, `"used": 25`)
	require.Contains(t, rendered, `"reason": "hourly_cap"`)
}

func TestRequestsMarkdown(t *testing.T) {
	entries := []core.RequestLogEntry{
		{UserID: "u1", Endpoint: "/matches", Success: true, CreatedAt: now},
		{UserID: "u1", Endpoint: "/matches", ErrorMessage: strings.Repeat("x", 100), CreatedAt: now.Add(-time.Minute)},
	}

	rendered, err := Requests(FormatMarkdown, entries)
	require.NoError(t, err)
	require.Contains(t, rendered, "| Time |")
	require.Contains(t, rendered, "1 failed")
	require.Contains(t, rendered, "...")
}

func TestCachedKeysAndMatches(t *testing.T) {
	rendered, err := CachedKeys(FormatTable, []store.CachedKey{{CacheKey: "countries", Bytes: 10, CreatedAt: now.Add(-90 * time.Second)}}, now)
	require.NoError(t, err)
	require.Contains(t, rendered, "countries")
	require.Contains(t, rendered, "1m30s")

	home, away := 2, 1
	matches := core.CategorizedMatches{
		Live:      []core.Match{{ID: "1", HomeTeam: "Flamengo", AwayTeam: "Vasco", Status: "2H", Date: now, HomeScore: &home, AwayScore: &away}},
		LiveCount: 1,
	}
	rendered, err = Matches(FormatTable, matches)
	require.NoError(t, err)
	require.Contains(t, rendered, "Flamengo vs Vasco")
	require.Contains(t, rendered, "2-1")
	require.Contains(t, rendered, "1 live")
}

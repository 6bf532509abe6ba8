//go:build cgo

package cmd

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
)

func seedStore(t *testing.T, entries []core.RequestLogEntry, cached map[string]string) {
	t.Helper()
	ctx := context.Background()
	db, err := openStore(ctx)
	require.NoError(t, err)
	defer db.Close() // nolint:errcheck // test cleanup

	for _, entry := range entries {
		require.NoError(t, db.AppendRequest(ctx, entry))
	}
	for key, payload := range cached {
		require.NoError(t, db.ReplaceCached(ctx, key, json.RawMessage(payload), time.Now().UTC()))
	}
}

func TestQuotaStatusCommand(t *testing.T) {
	isolateEnv(t)
	_, err := executeCommand(t, "config", "path")
	require.NoError(t, err)

	now := time.Now().UTC()
	seedStore(t, []core.RequestLogEntry{
		{UserID: "alice", Endpoint: "/matches", Success: true, CreatedAt: now.Add(-2 * time.Minute)},
		{UserID: "alice", Endpoint: "/matches", Success: true, CreatedAt: now.Add(-20 * time.Minute)},
		{UserID: "bob", Endpoint: "/matches", Success: true, CreatedAt: now.Add(-time.Minute)},
	}, nil)

	out, err := executeCommand(t, "quota", "status", "--user", "alice", "--output-format", "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "alice", decoded["user_id"])
	require.Equal(t, float64(2), decoded["used"])
	decision := decoded["decision"].(map[string]any)
	require.Equal(t, false, decision["allowed"])
	require.Equal(t, core.ErrorMinInterval, decision["reason"])
}

func TestQuotaResetCommand(t *testing.T) {
	isolateEnv(t)
	_, err := executeCommand(t, "config", "path")
	require.NoError(t, err)

	now := time.Now().UTC()
	seedStore(t, []core.RequestLogEntry{
		{UserID: "alice", Endpoint: "/matches", Success: true, CreatedAt: now.Add(-3 * time.Hour)},
		{UserID: "alice", Endpoint: "/matches", Success: true, CreatedAt: now.Add(-time.Minute)},
		{UserID: "bob", Endpoint: "/matches", Success: false, ErrorMessage: "boom", CreatedAt: now.Add(-time.Minute)},
	}, nil)

	_, err = executeCommand(t, "quota", "reset")
	require.ErrorContains(t, err, "must specify")

	_, err = executeCommand(t, "quota", "reset", "--all")
	require.ErrorContains(t, err, "--all requires --yes")

	out, err := executeCommand(t, "quota", "reset", "--all", "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, "Would delete 3 request log entr(ies)")

	out, err = executeCommand(t, "quota", "reset", "--user", "alice", "--older-than", "1h")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted 1/1 request log entr(ies)")

	out, err = executeCommand(t, "quota", "log", "--all", "--output-format", "json")
	require.NoError(t, err)
	var entries []core.RequestLogEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
}

func TestCacheCommands(t *testing.T) {
	isolateEnv(t)
	_, err := executeCommand(t, "config", "path")
	require.NoError(t, err)

	seedStore(t, nil, map[string]string{
		"countries":              `[{"code":"BR"}]`,
		"matches?league_id=71":   `[]`,
		"standings?league_id=71": `[]`,
	})

	out, err := executeCommand(t, "cache", "list")
	require.NoError(t, err)
	require.Contains(t, out, "countries")
	require.Contains(t, out, "standings?league_id=71")

	out, err = executeCommand(t, "cache", "purge", "--prefix", "matches")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted 1/1 cache entr(ies)")

	out, err = executeCommand(t, "cache", "list", "--output-format", "json")
	require.NoError(t, err)
	require.NotContains(t, out, "matches?league_id=71")
}

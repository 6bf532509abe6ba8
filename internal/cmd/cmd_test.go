package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	errwrap "github.com/dougcodi-ai/bolao-isoccer-sub002/internal/errors"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/output"
)

// isolateEnv points config discovery and the store at a temp directory.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("BOLAO_STORE_PATH", filepath.Join(dir, "bolao.db"))
	t.Setenv("BOLAO_UPSTREAM_API_KEY", "secret-key-123")
	t.Setenv("BOLAO_SERVER_ADMIN_TOKEN", "")
	return dir
}

// executeCommand runs the root command and restores every flag afterwards.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(os.ErrNotExist))
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(errwrap.NewConfigInvalidError("bad")))

	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	upstream := errwrap.FromResult(context.Background(), core.Result{Error: core.ErrorAPI, Message: "502"}, now)
	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(upstream))

	missingKey := errwrap.FromResult(context.Background(), core.Result{Error: core.ErrorConfig, Message: "no key"}, now)
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(missingKey))

	limited := errwrap.FromResult(context.Background(), core.Result{Error: core.ErrorHourlyCap}, now)
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(limited))
}

func TestCommandErrorCode(t *testing.T) {
	require.Empty(t, commandErrorCode(nil))
	require.Equal(t, errwrap.CodeInternal, commandErrorCode(os.ErrNotExist))
	require.Equal(t, errwrap.CodeConfigInvalid, commandErrorCode(errwrap.NewConfigInvalidError("bad")))
}

func TestRenderPurge(t *testing.T) {
	text, err := renderPurge(output.FormatTable, "cache", 4, 0, true)
	require.NoError(t, err)
	require.Contains(t, text, "Would delete 4 cache entr(ies)")

	text, err = renderPurge(output.FormatTable, "request log", 4, 3, false)
	require.NoError(t, err)
	require.Contains(t, text, "Deleted 3/4 request log entr(ies)")

	text, err = renderPurge(output.FormatJSON, "cache", 2, 2, false)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.Equal(t, float64(2), decoded["deleted"])
	require.Equal(t, false, decoded["dry_run"])
}

func TestResolveUser(t *testing.T) {
	require.Equal(t, "alice", resolveUser(" alice ", "local"))
	require.Equal(t, "local", resolveUser("  ", "local"))
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "matches-league_id-71-limit-50", sanitizeFilename("matches?league_id=71&limit=50"))
	require.Equal(t, "output", sanitizeFilename("??"))
}

func TestEmitWritesToOutDir(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	require.NoError(t, cmd.Flags().Set("output-format", "json"))
	require.NoError(t, cmd.Flags().Set("out-dir", dir))

	err := emit(cmd, "Quota u1", func(format output.Format) (string, error) {
		return output.JSON(map[string]string{"format": string(format)})
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "quota-u1.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"format": "json"`)
}

func TestEmitRejectsConflictingTargets(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	require.NoError(t, cmd.Flags().Set("out", "a.txt"))
	require.NoError(t, cmd.Flags().Set("out-dir", "dir"))

	err := emit(cmd, "x", func(output.Format) (string, error) { return "", nil })
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestUpdatePrinter(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printer := &updatePrinter{
		w:      &buf,
		format: output.FormatTable,
		req:    core.FetchRequest{Resource: core.ResourceMatches, Endpoint: "/matches"},
		now:    func() time.Time { return now },
	}

	payload := `[{"id":1,"date":"2025-03-01T17:30:00Z","status":"1H","home_team":"Flamengo","away_team":"Vasco"}]`
	printer.success(core.Result{Success: true, Data: json.RawMessage(payload)})
	require.Contains(t, buf.String(), "[2025-03-01T18:00:00Z]")
	require.Contains(t, buf.String(), "Flamengo vs Vasco")
	require.Contains(t, buf.String(), "1 live")

	buf.Reset()
	next := now.Add(4 * time.Minute)
	printer.result(core.Result{Error: core.ErrorMinInterval, Message: "too soon", NextAllowedAt: &next})
	require.Contains(t, buf.String(), "min_interval")
	require.Contains(t, buf.String(), "2025-03-01T18:04:00Z")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(t, "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, "api_key: sec***")
	require.NotContains(t, out, "secret-key-123")
	require.Contains(t, out, "max_per_hour: 25")
}

func TestConfigEnvListsAliases(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(t, "config", "env")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Contains(t, lines, "BOLAO_API_KEY")
	require.Contains(t, lines, "BOLAO_DB_PATH")
}

func TestWatchRejectsUnknownResource(t *testing.T) {
	isolateEnv(t)

	_, err := executeCommand(t, "watch", "players")
	require.ErrorContains(t, err, "unknown resource")

	_, err = executeCommand(t, "watch", "matches")
	require.ErrorContains(t, err, "league_id is required")
}

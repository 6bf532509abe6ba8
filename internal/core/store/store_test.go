package store

import (
	"testing"
	"time"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://bolao.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://bolao.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://bolao.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://bolao.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./bolao.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./bolao.db", dsn)
		require.True(t, isLocalDSN(dsn))
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
		require.True(t, isLocalDSN(dsn))
	})

	t.Run("RemoteIsNotLocal", func(t *testing.T) {
		require.False(t, isLocalDSN("libsql://bolao.turso.io"))
	})
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: driverPostgres}
	require.Equal(t,
		"SELECT * FROM request_log WHERE user_id = $1 AND created_at >= $2",
		pg.rebind("SELECT * FROM request_log WHERE user_id = ? AND created_at >= ?"))
	require.Equal(t,
		`WHERE cache_key LIKE $1 ESCAPE '\' AND note = '?'`,
		pg.rebind(`WHERE cache_key LIKE ? ESCAPE '\' AND note = '?'`))

	lite := &Store{driver: driverLibsql}
	require.Equal(t, "user_id = ?", lite.rebind("user_id = ?"))
}

func TestRequestLogQuery(t *testing.T) {
	require.Error(t, RequestLogQuery{}.Validate())

	where, args, err := RequestLogQuery{All: true}.whereClause()
	require.NoError(t, err)
	require.Empty(t, where)
	require.Empty(t, args)

	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	where, args, err = RequestLogQuery{UserID: "u1", Before: cutoff}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE user_id = ? AND created_at < ?", where)
	require.Equal(t, []any{"u1", cutoff.UnixMilli()}, args)
}

func TestCacheQuery(t *testing.T) {
	require.Error(t, CacheQuery{}.Validate())

	where, args, err := CacheQuery{Prefix: "matches?league_id"}.whereClause()
	require.NoError(t, err)
	require.Contains(t, where, "LIKE")
	require.Equal(t, []any{`matches?league\_id%`}, args)

	where, args, err = CacheQuery{Key: "countries"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE cache_key = ?", where)
	require.Equal(t, []any{"countries"}, args)
}

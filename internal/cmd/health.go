package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/dougcodi-ai/bolao-isoccer-sub002/internal/errors"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify configuration, store connectivity and upstream credentials without starting the server.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			logger.Error("❌ FAIL: Version information missing")
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Second)
		defer cancel()

		cfg, err := currentConfig(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid")

		db, err := openStore(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Store unavailable", errwrap.WrapStoreUnavailable(ctx, err, "store open failed"))
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := db.Ping(ctx); err != nil {
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Store unavailable", errwrap.WrapStoreUnavailable(ctx, err, "store ping failed"))
			return
		}
		logger.Info("✅ Store reachable", zap.String("driver", db.Driver()))

		if cfg.Upstream.APIKey == "" {
			logger.Warn("⚠️  Upstream API key not set; only cached data can be served")
		} else {
			logger.Info("✅ Upstream credential configured", zap.String("base_url", cfg.Upstream.BaseURL))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

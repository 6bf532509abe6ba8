package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/poller"
	errwrap "github.com/dougcodi-ai/bolao-isoccer-sub002/internal/errors"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/server"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync HTTP API",
	Long: `Start the HTTP API with graceful shutdown support.

The API serves cached and quota-checked upstream data under /api/v1 and
manages polled subscriptions. Requests are charged to the user named in
the X-User-ID header, or to sync.user_id when the header is absent.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-validate configuration (restart to apply changes)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		overrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			overrides["server.host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			overrides["server.port"] = serverPort
		}
		cfg, err := config.LoadWithOptions(ctx, config.LoadOptions{
			ConfigFile: cfgFile,
			EnvFile:    envFile,
			Overrides:  []map[string]any{overrides},
		})
		if err != nil {
			return err
		}

		observability.InitServerLogger(config.AppName, cfg.Logging.Level, config.AppName)
		logger := observability.ServerLogger
		componentLogger := observability.NewComponentLogger(config.AppName, cfg.Logging.Level)

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		stack, err := buildSyncStack(ctx, cfg, componentLogger)
		if err != nil {
			logger.Error("Failed to open store", zap.Error(err))
			return errwrap.WrapStoreUnavailable(ctx, err, "store initialization failed")
		}
		if err := stack.client.Ready(); err != nil {
			logger.Warn("Upstream not configured; only cached data will be served", zap.Error(err))
		}

		subscriptions := poller.NewManager(stack.fetcher, stack.pollDefaults())

		health := handlers.NewHealthManager(versionInfo.Version)
		health.RegisterChecker("store", handlers.StoreChecker(stack.db))
		health.RegisterChecker("upstream", handlers.UpstreamChecker(stack.client.Ready))
		if cfg.Metrics.Enabled {
			health.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		srv := server.New(server.Options{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			DefaultUserID:   cfg.Sync.UserID,
			AdminToken:      cfg.Server.AdminToken,
			MetricsPort:     cfg.Metrics.Port,
			Sync:            handlers.NewSyncHandler(stack.fetcher, stack.quota, subscriptions),
			Health:          health,
		})

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("store_driver", stack.db.Driver()),
			zap.String("upstream", stack.client.BaseURL()),
			zap.Int("max_per_hour", cfg.Sync.MaxPerHour),
			zap.Duration("min_interval", cfg.Sync.MinInterval))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the last registered runs first.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			_ = componentLogger.Sync()
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Closing store...")
			if err := stack.Close(); err != nil {
				return errwrap.WrapStoreUnavailable(ctx, err, "store close failed")
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Stopping subscriptions...", zap.Int("count", subscriptions.Len()))
			subscriptions.StopAll()
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: re-validating configuration")

			next, err := config.LoadWithOptions(ctx, config.LoadOptions{ConfigFile: cfgFile, EnvFile: envFile})
			if err != nil {
				logger.Error("Configuration reload failed", zap.Error(err))
				return errwrap.WrapValidationError(ctx, err, "config reload failed")
			}

			logger.Info("Configuration is valid; restart to apply changes",
				zap.String("file", config.ConfigFileUsed(cfgFile)),
				zap.Int("max_per_hour", next.Sync.MaxPerHour),
				zap.Duration("default_interval", next.Sync.DefaultInterval))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			subscriptions.StopAll()
			_ = stack.Close()
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}

package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/metrics"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/observability"
)

var (
	cfgFile string
	envFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Sports data sync with per-user request quotas",
	Long: `bolao keeps league, match and standings data in sync with an upstream
sports API while holding every user to a sliding hourly request quota.

Responses are cached in a durable store, every upstream call is logged,
and polled subscriptions back off on errors and pause on quota denials.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	executed, err := rootCmd.ExecuteC()
	recordCommand(executed, err)
	return err
}

func recordCommand(executed *cobra.Command, err error) {
	if executed == nil {
		return
	}
	metrics.RecordCommand(executed.CommandPath(), commandErrorCode(err))
}

func init() {
	// Disable global telemetry early so config loading does not emit metrics
	// to stdout. serve initializes the real exporter later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/bolao/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig loads configuration once for the whole command tree.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)

	cfg, err := config.LoadWithOptions(context.Background(), config.LoadOptions{
		ConfigFile: cfgFile,
		EnvFile:    envFile,
	})
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
		return
	}

	if used := config.ConfigFileUsed(cfgFile); used != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", used))
	} else {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}
	observability.CLILogger.Debug("Configuration loaded",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("upstream", cfg.Upstream.BaseURL))
}

// currentConfig returns the configuration loaded by initConfig, loading it
// on demand when a command runs outside the cobra lifecycle.
func currentConfig(ctx context.Context) (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadWithOptions(ctx, config.LoadOptions{ConfigFile: cfgFile, EnvFile: envFile})
}

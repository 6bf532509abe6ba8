package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig(commandContext(cmd))
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use and the default locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		used := config.ConfigFileUsed(cfgFile)
		if used == "" {
			used = "(none)"
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "config file:    %s\n", used)
		_, _ = fmt.Fprintf(out, "default config: %s\n", config.DefaultConfigPath())
		_, err := fmt.Fprintf(out, "default store:  %s\n", config.DefaultStorePath())
		return err
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List recognized environment variable aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.EnvNames(), "\n"))
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configEnvCmd)
}

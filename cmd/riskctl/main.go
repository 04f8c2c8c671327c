// Package main provides the riskctl CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/pkg/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "riskctl",
		Short: "Manage and exercise riskframe scoring frameworks",
		Long: `riskctl validates framework documents, scores answers offline, seeds and
publishes framework versions, and re-scores stored submissions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: .riskframe/config.yaml in this or a parent directory)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log at debug level")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(
		newValidateCmd(),
		newScoreCmd(),
		newSeedCmd(),
		newPublishCmd(),
		newActivateCmd(),
		newRescoreCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

// loadConfig resolves --config, falling back to a discovered config file,
// then applies RISKFRAME_* overrides.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = config.FindConfigFile(wd)
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	level := cfg.Logging.Level
	if viper.GetBool("verbose") {
		level = "debug"
	}
	return logger.New("dev", level)
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/pkg/config"
)

var (
	// Global flags
	envFile        string
	thresholdsFile string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskdash",
	Short: "Systemic risk dashboard backend",
	Long: `riskdash keeps a reconciled view of the systemic risk index.

It pulls the history window from the risk analytics service, follows the
live push stream, and serves derived statistics, regime and warning views.

Usage:
  go run ./cmd/riskdash [command]

Examples:
  go run ./cmd/riskdash serve
  go run ./cmd/riskdash fetch --days 90
  go run ./cmd/riskdash stream --duration 1m
  go run ./cmd/riskdash check-config`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "config", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().StringVar(&thresholdsFile, "thresholds", "", "thresholds YAML (overrides THRESHOLDS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig applies the global flags on top of the environment
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		config.SetEnvFile(envFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if thresholdsFile != "" {
		cfg.ThresholdsFile = thresholdsFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

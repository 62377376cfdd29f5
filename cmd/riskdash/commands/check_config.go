package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/thresholds"
)

// checkConfigCmd represents the check-config command
var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate environment and thresholds",
	Long: `Loads the environment configuration and the thresholds file, validates
both and prints the effective values with the thresholds fingerprint.

Example:
  go run ./cmd/riskdash check-config
  go run ./cmd/riskdash check-config --thresholds ./thresholds.yaml`,
	RunE: runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	th, err := thresholds.Load(cfg.ThresholdsFile)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}
	hash, err := thresholds.Hash(th)
	if err != nil {
		return fmt.Errorf("hash thresholds: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== riskdash configuration ===")
	fmt.Fprintf(out, "env:              %s\n", cfg.Env)
	fmt.Fprintf(out, "port:             %s\n", cfg.Port)
	fmt.Fprintf(out, "upstream:         %s (attempts=%d, initial=%s, max=%s)\n",
		cfg.Upstream.BaseURL, cfg.Upstream.MaxAttempts, cfg.Upstream.InitialDelay, cfg.Upstream.MaxDelay)
	fmt.Fprintf(out, "default window:   %d days\n", cfg.Upstream.DefaultHistoryDays)
	if cfg.Stream.Enabled {
		fmt.Fprintf(out, "stream:           %s (reconnect=%s)\n", cfg.Stream.URL, cfg.Stream.ReconnectDelay)
	} else {
		fmt.Fprintln(out, "stream:           disabled")
	}
	fmt.Fprintf(out, "redis:            %v\n", cfg.Redis.Enabled)
	fmt.Fprintf(out, "refresh schedule: %s\n", cfg.RefreshSchedule)
	fmt.Fprintf(out, "stale after:      %s\n", cfg.StaleAfter)

	file := cfg.ThresholdsFile
	if file == "" {
		file = "(defaults)"
	}
	fmt.Fprintf(out, "thresholds:       %s\n", file)
	fmt.Fprintf(out, "thresholds hash:  %s\n", hash)
	fmt.Fprintln(out, "\n✅ Configuration OK")
	return nil
}

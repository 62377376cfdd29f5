package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/contracts"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one history window and print the derived views",
	Long: `Fetches a history window from the risk analytics service (with retries)
and prints the summary, regime, warning and quality views as JSON.

Either --days or --start/--end may be given; neither means the default window.

Example:
  go run ./cmd/riskdash fetch
  go run ./cmd/riskdash fetch --days 90
  go run ./cmd/riskdash fetch --start 2024-01-01 --end 2024-06-30`,
	RunE: runFetch,
}

var (
	fetchDays  int
	fetchStart string
	fetchEnd   string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "trailing window in days")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "end date (YYYY-MM-DD)")
}

// fetchReport is what the fetch command prints
type fetchReport struct {
	Range        contracts.Range              `json:"range"`
	Observations int                          `json:"observations"`
	LastUpdated  string                       `json:"last_updated,omitempty"`
	Summary      *contracts.SummaryStatistics `json:"summary,omitempty"`
	Regime       interface{}                  `json:"regime"`
	Warning      interface{}                  `json:"warning"`
	Stats        interface{}                  `json:"stats"`
	Quality      interface{}                  `json:"quality"`
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	r := contracts.Range{Days: fetchDays}
	if fetchStart != "" || fetchEnd != "" {
		if fetchDays != 0 {
			return fmt.Errorf("--days cannot be combined with --start/--end")
		}
		r = contracts.Between(fetchStart, fetchEnd)
	}

	if _, err := a.coordinator.Request(ctx, r); err != nil {
		return fmt.Errorf("fetch %s: %w", r, err)
	}

	st := a.store.Snapshot()
	window := a.views.Window(st)
	last, _ := a.coordinator.Last()

	report := fetchReport{
		Range:        last,
		Observations: len(window.Observations),
		LastUpdated:  window.LastUpdated,
		Summary:      window.Summary,
		Regime:       a.views.Regime(st),
		Warning:      a.views.Warning(st),
		Stats:        a.views.Stats(st),
		Quality:      a.views.Quality(st),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

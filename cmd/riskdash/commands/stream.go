package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/contracts"
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Follow the live risk stream",
	Long: `Connects to the live metrics stream and prints every accepted snapshot
as one JSON line. Reconnects automatically until interrupted.

Example:
  go run ./cmd/riskdash stream
  go run ./cmd/riskdash stream --duration 5m`,
	RunE: runStream,
}

var streamDuration time.Duration

func init() {
	rootCmd.AddCommand(streamCmd)

	streamCmd.Flags().DurationVar(&streamDuration, "duration", 0, "stop after this long (0 = until Ctrl+C)")
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if streamDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, streamDuration)
		defer cancel()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.stream == nil {
		return fmt.Errorf("stream is disabled (STREAM_ENABLED=false)")
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	a.stream.OnSnapshot(func(snap *contracts.CurrentSnapshot) {
		if err := out.Encode(snap); err != nil {
			a.log.WithError(err).Warn("Failed to write snapshot")
		}
	})
	a.stream.OnStateChange(func(s contracts.ConnectionState) {
		a.log.WithField("state", s).Info("Stream state changed")
	})

	a.stream.Start(ctx)
	<-ctx.Done()

	status := a.stream.Status()
	a.log.WithFields(map[string]interface{}{
		"accepted":   status.Accepted,
		"dropped":    status.Dropped,
		"reconnects": status.Reconnects,
	}).Info("Stream stopped")
	return nil
}

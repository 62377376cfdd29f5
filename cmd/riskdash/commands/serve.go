package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/riskdash/internal/api"
	"github.com/wonny/riskdash/internal/api/handlers"
	"github.com/wonny/riskdash/internal/contracts"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Starts the HTTP API, the live stream client and the refresh scheduler.

On startup the default history window is fetched once; afterwards the
scheduler re-fetches the last requested window on REFRESH_SCHEDULE.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/risk/latest | window | summary | snapshot
  GET  /api/risk/regime | warning | stats | quality
  GET  /api/risk/charts/{kind}
  POST /api/risk/range
  POST /api/risk/retry
  GET  /api/stream/status

Example:
  go run ./cmd/riskdash serve
  go run ./cmd/riskdash serve --port 9000 --no-stream`,
	RunE: runServe,
}

var (
	servePort     string
	serveNoStream bool
	serveNoCron   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API port (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveNoStream, "no-stream", false, "do not connect to the live stream")
	serveCmd.Flags().BoolVar(&serveNoCron, "no-scheduler", false, "disable scheduled refreshes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}
	if serveNoStream && a.stream != nil {
		_ = a.stream.Close()
		a.stream = nil
	}

	log := a.log

	// 1. Scheduler
	if !serveNoCron {
		sched, err := a.newScheduler()
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 2. Live stream
	var streamSource handlers.StreamStatusSource
	if a.stream != nil {
		a.stream.Start(ctx)
		streamSource = a.stream
	}

	// 3. HTTP
	riskHandler := handlers.NewRiskHandler(a.store, a.views, a.coordinator, log)
	streamHandler := handlers.NewStreamHandler(streamSource)
	health := handlers.NewHealthHandler()
	if a.redis.Enabled() {
		health.WithCheck("redis", a.redis)
	}
	router := api.NewRouter(health, riskHandler, streamHandler, a.metrics, log)
	server := api.New(a.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// 4. Initial window
	done, err := a.coordinator.Trigger(ctx, contracts.Range{})
	if err != nil {
		log.WithError(err).Warn("Initial fetch not started")
	} else if done != nil {
		go func() {
			if err := <-done; err != nil {
				log.WithError(err).Warn("Initial fetch failed")
			}
		}()
	}

	log.WithFields(map[string]interface{}{
		"addr":      server.Addr(),
		"stream":    a.stream != nil,
		"scheduler": !serveNoCron,
	}).Info("riskdash started")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.coordinator.Wait()
	log.Info("Server stopped")
	return nil
}

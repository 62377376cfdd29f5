package commands

import (
	"context"
	"fmt"

	"github.com/wonny/riskdash/internal/coordinator"
	"github.com/wonny/riskdash/internal/fetch"
	"github.com/wonny/riskdash/internal/scheduler"
	"github.com/wonny/riskdash/internal/scheduler/jobs"
	"github.com/wonny/riskdash/internal/store"
	"github.com/wonny/riskdash/internal/stream"
	"github.com/wonny/riskdash/internal/thresholds"
	"github.com/wonny/riskdash/internal/views"
	"github.com/wonny/riskdash/pkg/config"
	"github.com/wonny/riskdash/pkg/httputil"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/metrics"
	"github.com/wonny/riskdash/pkg/redis"
)

// app holds everything a command needs, wired once from config
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	thresholds  *thresholds.Config
	metrics     *metrics.Recorder
	redis       *redis.Client
	store       *store.Store
	views       *views.Views
	fetcher     *fetch.Client
	coordinator *coordinator.Coordinator
	stream      *stream.Client // nil when the stream is disabled
}

// newApp builds the component graph
// ⭐ SSOT: 의존성 조립은 여기서만
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	th, err := thresholds.Load(cfg.ThresholdsFile)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	hash, err := thresholds.Hash(th)
	if err != nil {
		return nil, fmt.Errorf("hash thresholds: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"file": cfg.ThresholdsFile,
		"hash": hash,
	}).Info("Thresholds loaded")

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	httpClient := httputil.New(cfg, log)
	if rdb.Enabled() && cfg.Upstream.RateLimit > 0 {
		limiter := redis.NewRateLimiter(rdb, "riskdash")
		httpClient = httpClient.WithRateLimiter(limiter, redis.UpstreamRateLimit(cfg.Upstream.RateLimit))
		log.Info("Using shared Redis rate limiter")
	}

	st := store.New(log)
	v := views.New(th, log.Zerolog())

	fetcher := fetch.NewClient(httpClient, st, v.Aggregator(), fetch.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		DefaultDays: cfg.Upstream.DefaultHistoryDays,
	}, log, rec)

	a := &app{
		cfg:         cfg,
		log:         log,
		thresholds:  th,
		metrics:     rec,
		redis:       rdb,
		store:       st,
		views:       v,
		fetcher:     fetcher,
		coordinator: coordinator.New(fetcher, st, fetcher.DefaultDays(), log),
	}

	if cfg.Stream.Enabled {
		a.stream = stream.NewClient(stream.Config{
			URL:            cfg.Stream.URL,
			ReconnectDelay: cfg.Stream.ReconnectDelay,
			PingInterval:   cfg.Stream.PingInterval,
		}, st, log, rec)
	}

	return a, nil
}

// newScheduler registers the refresh and staleness jobs (not started)
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewRefreshJob(a.coordinator, a.cfg.RefreshSchedule, a.log)); err != nil {
		return nil, fmt.Errorf("add refresh job: %w", err)
	}
	if err := sched.AddJob(jobs.NewStalenessJob(a.store, a.cfg.StaleAfter, a.log)); err != nil {
		return nil, fmt.Errorf("add staleness job: %w", err)
	}
	return sched, nil
}

// close releases connections; safe to call once
func (a *app) close() {
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.WithError(err).Warn("Stream close failed")
		}
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Redis close failed")
	}
}

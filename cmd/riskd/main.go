package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/risk-signal-etl/internal/adapter/fhi"
	httpadapter "github.com/couchcryptid/risk-signal-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/risk-signal-etl/internal/adapter/kafka"
	"github.com/couchcryptid/risk-signal-etl/internal/adapter/met"
	"github.com/couchcryptid/risk-signal-etl/internal/adapter/pollen"
	"github.com/couchcryptid/risk-signal-etl/internal/adapter/ssb"
	"github.com/couchcryptid/risk-signal-etl/internal/adapter/trends"
	"github.com/couchcryptid/risk-signal-etl/internal/alert"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
	"github.com/couchcryptid/risk-signal-etl/internal/observability"
	"github.com/couchcryptid/risk-signal-etl/internal/orchestrator"
	"github.com/couchcryptid/risk-signal-etl/internal/pipeline"
	"github.com/couchcryptid/risk-signal-etl/internal/scheduler"
	"github.com/couchcryptid/risk-signal-etl/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	if cfg.StoreDriver == config.DriverSQLite {
		if err := st.Migrate(ctx); err != nil {
			logger.Error("failed to migrate store", "error", err)
			os.Exit(1)
		}
	}

	clock := clockwork.NewRealClock()
	env := pipeline.Env{
		Sink:     st,
		Logger:   logger,
		Metrics:  metrics,
		Clock:    clock,
		Timezone: cfg.LocalTimezone,
	}
	newFetcher := func(source string) *fetch.Client {
		return fetch.NewClient(source, fetch.Options{
			HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
			MaxAttempts:    cfg.FetchMaxAttempts,
			BaseDelay:      cfg.FetchBaseDelay,
			Clock:          clock,
			CircuitBreaker: cfg.CircuitBreakerEnabled,
			Logger:         logger,
			Metrics:        metrics,
		})
	}
	src := cfg.Sources

	// Alerts are published to Kafka only when brokers are configured.
	var publisher alert.Publisher
	var kafkaPub *kafkaadapter.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("alert publishing enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("alert publishing disabled")
	}

	jobs := []pipeline.Job{
		pipeline.NewWeatherJob(env, met.NewClient(newFetcher(domain.SourceMETFrost), src.MET, cfg.METClientID),
			st, src.MET, cfg.WeatherConcurrency),
		pipeline.NewDaylightJob(env, st, cfg.DaylightUTCOffsetMinutes, cfg.WeatherConcurrency),
		pipeline.NewPollenJob(env, pollen.NewClient(newFetcher(domain.SourceGooglePollen), src.Pollen, cfg.GooglePollenAPIKey),
			src.Pollen.Regions, cfg.PollenRequestDelay),
		pipeline.NewVaccinationJob(env, fhi.NewClient(newFetcher(domain.SourceFHISysvak), src.FHI), src.FHI.Regions),
		pipeline.NewMacroJob(env, ssb.NewClient(newFetcher(domain.SourceSSB), src.SSB), src.SSB),
		pipeline.NewTrendsJob(env, trends.NewClient(newFetcher(domain.SourceGoogleTrends), src.Trends, cfg.SerpAPIKey),
			src.Trends, cfg.TrendsRequestDelay),
		alert.NewCorrelator(env, st, publisher),
		orchestrator.New(env, st, cfg.PredictionRetentionDays),
	}
	for i, j := range jobs {
		jobs[i] = pipeline.Exclusive(j)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, st, jobs, logger)

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(jobs, cfg.Schedules, 0, logger)
		if err := sched.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Start HTTP server.
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

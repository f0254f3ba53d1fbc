package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/gemini"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/influxdb"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/kafka"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/metrics"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/prediction"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/profile"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/report"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/scheduler"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/server"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/store"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/thingspeak"
)

// app holds the wired components and the resources to release on exit
type app struct {
	metrics      *metrics.Metrics
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	closers      []func() error
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

// buildApp wires the pipeline and its sinks. Sinks that need a running
// broker or database are only created when enabled.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := zerolog.Ctx(ctx)
	a := &app{metrics: metrics.New()}

	household, err := profile.Load(cfg.Profile.Path)
	if err != nil {
		return nil, err
	}

	var sinks []pipeline.Sink

	if cfg.Store.DBPath != "" {
		st, err := store.Open(ctx, cfg.Store.DBPath)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
		sinks = append(sinks, st)
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.NewClient(ctx, cfg.InfluxDB)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func() error { influxClient.Close(); return nil })
		sinks = append(sinks, influxClient)
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		a.closers = append(a.closers, producer.Close)
		sinks = append(sinks, producer)
	}

	feed := thingspeak.NewClient(cfg.ThingSpeak, nil, a.metrics)
	model := gemini.NewClient(cfg.Gemini, nil, a.metrics)
	policy := prediction.NewPolicy(
		cfg.Prediction.ModelDayThreshold,
		prediction.NewModelAssisted(model, cfg.Prediction.BillingDays, household),
		prediction.NewStatistical(cfg.Prediction.BillingDays),
	)

	a.orchestrator = pipeline.New(feed, policy, pipeline.Options{
		Channel:  cfg.ThingSpeak.ChannelID,
		Profile:  household,
		Sinks:    sinks,
		Recorder: a.metrics,
	})

	logger.Info().
		Str("channel", cfg.ThingSpeak.ChannelID).
		Int("sinks", len(sinks)).
		Bool("profile", !household.IsZero()).
		Msg("Pipeline configured")
	return a, nil
}

func (a *app) close(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Error().Err(err).Msg("Failed to release resource")
		}
	}
	a.closers = nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// logs go to stderr so stdout carries only the report
	logger := newLogger(cfg.Log.Level).Output(os.Stderr)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	runErr := a.orchestrator.Run(ctx)

	doc := report.FromState(cfg.ThingSpeak.ChannelID, a.orchestrator.Snapshot())
	if err := report.NewReporter(cmd.OutOrStdout(), format).Handle(doc); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return runErr
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	var wg sync.WaitGroup

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(cfg.Kafka, a.orchestrator)
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx); err != nil {
				logger.Error().Err(err).Msg("Kafka consumer stopped")
			}
			if err := consumer.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close kafka consumer")
			}
		}()
	}

	if cfg.Schedule.Cron != "" {
		sched, err := scheduler.New(cfg.Schedule.Cron, a.orchestrator)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	// initial load, like opening the dashboard
	a.orchestrator.Refetch(ctx)

	var runs server.RunLister
	if a.store != nil {
		runs = a.store
	}
	api := server.NewWebAPI(logger, server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Dependencies: server.Dependencies{
			Pipeline: a.orchestrator,
			Runs:     runs,
			Metrics:  a.metrics,
			Channel:  cfg.ThingSpeak.ChannelID,
		},
	})
	serveErr := api.Start(ctx)
	stop()

	logger.Info().Msg("Shutting down...")

	// Set a deadline for clean shutdown
	done := make(chan struct{})
	go func() {
		wg.Wait()
		a.orchestrator.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All workers stopped successfully")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn().Msg("Shutdown timed out, forcing exit")
	}

	logger.Info().Msg("Shutdown complete.")
	return serveErr
}

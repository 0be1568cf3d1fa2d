package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	jqworker "github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hapnesbitt/FroogleOne/internal/config"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
	"github.com/hapnesbitt/FroogleOne/internal/store"
	"github.com/hapnesbitt/FroogleOne/internal/transcoder"
	"github.com/hapnesbitt/FroogleOne/internal/worker"
)

type brokerAdapter struct {
	broker *broker.RedisStreamsBroker
}

func (a *brokerAdapter) Enqueue(jobType string, payload interface{}) (string, error) {
	j, err := job.New(jobType, payload)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	if err := a.broker.Enqueue(context.Background(), j); err != nil {
		return "", err
	}
	return j.ID, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}

	tc, err := transcoder.New(cfg.FFmpegPath)
	if err != nil {
		return err
	}
	log.Info("transcoder ready", "ffmpeg", cfg.FFmpegPath)

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := broker.NewRedisStreamsBroker(redisClient,
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	st := store.NewRedisStore(redisClient)

	metrics.SetAppInfo("1.0.0", cfg.Environment, "worker")
	metrics.SetWorkerPoolSize(cfg.WorkerConcurrency)

	dispatcher := worker.NewDispatcher(&brokerAdapter{broker: b}, cfg, log)

	deps := &worker.Dependencies{
		Store:       st,
		Transcoder:  tc,
		Dispatcher:  dispatcher,
		Intake:      worker.NewIntake(cfg),
		StorageRoot: cfg.StorageRoot,
		ScratchDir:  cfg.ScratchDir,
	}

	log.Info("registering job handlers")
	registry := jqworker.NewRegistry()
	_ = registry.Register(worker.JobTypeVideoTranscode, worker.VideoTranscodeHandler(deps, transcoder.VideoProfile(cfg)))
	_ = registry.Register(worker.JobTypeAudioTranscode, worker.AudioTranscodeHandler(deps, transcoder.AudioProfile(cfg)))
	_ = registry.Register(worker.JobTypeArchiveImport, worker.ArchiveImportHandler(deps))

	registry.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	log.Info("creating worker pool", "concurrency", cfg.WorkerConcurrency)

	workerPool := jqworker.NewPool(b, registry,
		jqworker.WithConcurrency(cfg.WorkerConcurrency),
		jqworker.WithPoolQueues([]string{"default"}),
		jqworker.WithPoolPollInterval(time.Second),
		jqworker.WithShutdownTimeout(30*time.Second),
		jqworker.WithPoolLogger(zerologger),
	)

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9090"
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	metricsServer := &http.Server{
		Addr:    ":" + metricsPort,
		Handler: metricsMux,
	}

	go func() {
		log.Info("metrics server starting", "port", metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, 1)
	go func() {
		log.Info("starting worker pool")
		poolErr <- workerPool.Start(ctx)
	}()

	select {
	case err := <-poolErr:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := workerPool.Stop(shutdownCtx); err != nil {
			log.Error("error stopping pool", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping metrics server", "error", err)
		}

		cancel()
	}

	log.Info("worker pool stopped gracefully")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/jobs"
	"marketplace/internal/logger"
	"marketplace/internal/messaging"
	"marketplace/internal/server"
	"marketplace/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, scheduler *jobs.Scheduler, publisher messaging.Publisher, shutdowns []func(context.Context) error, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	// Each stage gets its own budget.
	withTimeout := func(d time.Duration, fn func(ctx context.Context)) {
		ctx, cancel := context.WithTimeout(context.Background(), d)
		defer cancel()
		fn(ctx)
	}

	withTimeout(30*time.Second, func(ctx context.Context) {
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
	})

	// Stop the relay before closing the publisher it writes to.
	withTimeout(15*time.Second, scheduler.Stop)
	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", zap.Error(err))
	}

	withTimeout(10*time.Second, func(ctx context.Context) {
		for _, shutdown := range shutdowns {
			if err := shutdown(ctx); err != nil {
				logger.Warn("Telemetry shutdown failed", zap.Error(err))
			}
		}
	})

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.NewWithFile(cfg.Server.Env, logger.FileOptions{
		Enable:   cfg.Log.FileEnable,
		Filename: cfg.Log.Filename,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting marketplace API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()
	var shutdowns []func(context.Context) error

	svc := telemetry.Service{
		Name:    cfg.Telemetry.ServiceName,
		Version: cfg.Telemetry.Version,
		Env:     cfg.Server.Env,
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(svc)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	shutdowns = append(shutdowns, shutdownMeter)

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.OTLPEndpoint, svc, cfg.Telemetry.SampleRatio)
		if err != nil {
			log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		shutdowns = append(shutdowns, shutdownTracer)
	}

	orderMetrics, err := telemetry.NewOrderMetrics()
	if err != nil {
		log.Fatal("Failed to register order metrics", zap.Error(err))
	}

	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := dbService.DB()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	if version, err := database.MigrationVersion(ctx, db, cfg.Database.MigrationsDir); err == nil {
		log.Info("Database schema ready", zap.Int64("version", version))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}

	var publisher messaging.Publisher
	if cfg.Kafka.Enabled() {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info("Publishing order events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		publisher = messaging.NewLogPublisher(log)
		log.Warn("No Kafka brokers configured, order events are only logged")
	}

	srv := server.NewServer(cfg, log, server.Dependencies{
		DB:           db,
		Redis:        redisClient,
		DBHealth:     dbService.Health,
		Metrics:      metricsHandler,
		OrderMetrics: orderMetrics,
	})

	scheduler := jobs.NewScheduler(time.Minute, log)
	if err := srv.RegisterJobs(scheduler, publisher); err != nil {
		log.Fatal("Failed to schedule background jobs", zap.Error(err))
	}
	scheduler.Start()

	done := make(chan bool, 1)
	go gracefulShutdown(srv, scheduler, publisher, shutdowns, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}

package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/jobs"
	"marketplace/internal/messaging"
	custommiddleware "marketplace/internal/middleware"
	"marketplace/internal/notify"
	"marketplace/internal/outbox"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/telemetry"
	"marketplace/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Dependencies are the shared resources opened by main
type Dependencies struct {
	DB    *sql.DB
	Redis *redis.Client
	// DBHealth reports database status for /health.
	DBHealth func() map[string]string
	// Metrics serves /metrics when set.
	Metrics      http.Handler
	OrderMetrics *telemetry.OrderMetrics
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies

	userService service.UserService
	outboxRepo  repository.OutboxRepository
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))

	s := &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	router.Get("/health", s.health)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	// Repositories
	db := deps.DB
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	s.outboxRepo = repository.NewOutboxRepository(db)

	// Services
	notifier := notify.NewRedisNotifier(deps.Redis, logger)
	s.userService = service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret,
		service.WithTokenLifetimes(
			time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
			time.Duration(cfg.JWT.RefreshExpiry)*24*time.Hour,
		),
	)
	productService := service.NewProductService(productRepo, categoryRepo, userRepo)
	cartService := service.NewCartService(cartRepo, productRepo)
	orderService := service.NewOrderService(orderRepo, cartRepo, userRepo,
		service.WithNotifier(notifier),
		service.WithOrderMetrics(deps.OrderMetrics),
	)

	// Route guards
	auth := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	rateLimit := custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "ratelimit",
	}, logger)

	guards := transport.Guards{
		Public: rateLimit,
		// Limit after auth so buckets are per user.
		Auth:     func(next http.Handler) http.Handler { return auth(rateLimit(next)) },
		Client:   custommiddleware.RequireClient(logger),
		Business: custommiddleware.RequireBusiness(logger),
	}

	transport.NewUserHandler(s.userService, logger).RegisterRoutes(router, guards)
	transport.NewProductHandler(productService, logger).RegisterRoutes(router, guards)
	transport.NewCartHandler(cartService, logger).RegisterRoutes(router, guards)
	orderHandler := transport.NewOrderHandler(orderService, notifier, transport.DefaultHeartbeat, logger)
	orderHandler.RegisterRoutes(router, guards)

	s.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           otelhttp.NewHandler(router, cfg.Telemetry.ServiceName),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.Server.RegisterOnShutdown(orderHandler.CloseStreams)

	return s
}

// RegisterJobs schedules the outbox relay and the refresh token purge
func (s *Server) RegisterJobs(scheduler *jobs.Scheduler, publisher messaging.Publisher) error {
	relay := outbox.NewRelay(s.outboxRepo, publisher, s.config.Outbox.BatchSize, s.deps.OrderMetrics, s.logger)
	if err := scheduler.Every("outbox-relay", s.config.Outbox.Interval, relay.Run); err != nil {
		return fmt.Errorf("failed to schedule outbox relay: %w", err)
	}

	err := scheduler.Add("purge-refresh-tokens", "@daily", func(ctx context.Context) {
		n, err := s.userService.PurgeExpiredTokens(ctx)
		if err != nil {
			s.logger.Warn("Failed to purge expired refresh tokens", zap.Error(err))
			return
		}
		s.logger.Info("Purged expired refresh tokens", zap.Int64("deleted", n))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule token purge: %w", err)
	}

	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok"}

	if s.deps.DBHealth != nil {
		db := s.deps.DBHealth()
		body["database"] = db
		if db["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(r.Context()).Err(); err != nil {
			body["redis"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			body["redis"] = "up"
		}
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	custommiddleware.RespondWithJSON(w, status, body)
}

// Close releases the database and Redis connections
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}

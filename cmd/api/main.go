package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ravikovind/griha-homes/internal/auth"
	"github.com/ravikovind/griha-homes/internal/config"
	"github.com/ravikovind/griha-homes/internal/events"
	"github.com/ravikovind/griha-homes/internal/handlers"
	"github.com/ravikovind/griha-homes/internal/health"
	"github.com/ravikovind/griha-homes/internal/httpmiddleware"
	"github.com/ravikovind/griha-homes/internal/identity"
	"github.com/ravikovind/griha-homes/internal/logging"
	"github.com/ravikovind/griha-homes/internal/media"
	"github.com/ravikovind/griha-homes/internal/metrics"
	"github.com/ravikovind/griha-homes/internal/rate"
	"github.com/ravikovind/griha-homes/internal/security"
	"github.com/ravikovind/griha-homes/internal/storage"
	"github.com/ravikovind/griha-homes/internal/trace"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ready := health.NewManager(true)

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	throttle, throttleClose, err := buildThrottle(cfg, logger)
	if err != nil {
		logger.Error("throttle init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = throttleClose()
	}()

	verifier := buildVerifier(cfg, logger)
	uploader := buildUploader(cfg, logger)

	emitter, err := buildEmitter(cfg, logger, registry)
	if err != nil {
		logger.Error("kafka producer init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = emitter.Close()
	}()

	store := storage.New(pool)
	tokens := security.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	guard := auth.NewGuard(tokens, store, logger)

	authHandler := handlers.NewAuthHandler(store, verifier, tokens, emitter, logger, cfg.BcryptCost)
	userHandler := handlers.NewUserHandler(store, logger)
	propertyHandler := handlers.NewPropertyHandler(store, emitter, logger)
	mediaHandler := handlers.NewMediaHandler(store, uploader, logger)
	inquiryHandler := handlers.NewInquiryHandler(store, emitter, logger)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))
	router.Use(throttle.Middleware())

	router.GET("/healthz", ready.Liveness)
	router.GET("/readyz", ready.Readiness)
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	api := router.Group("/api/v1")
	authHandler.RegisterRoutes(api, guard)
	userHandler.RegisterRoutes(api, guard)
	propertyHandler.RegisterRoutes(api, guard)
	mediaHandler.RegisterRoutes(api, guard)
	inquiryHandler.RegisterRoutes(api, guard)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("api starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(server, ready, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.SSLMode,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// buildThrottle assembles the three request windows. Redis backs them
// when configured; dev and test fall back to in-process windows.
func buildThrottle(cfg *config.Config, logger *slog.Logger) (*rate.Throttle, func() error, error) {
	windows := []struct {
		name string
		cfg  config.ThrottleWindow
	}{
		{"short", cfg.Throttle.Short},
		{"medium", cfg.Throttle.Medium},
		{"long", cfg.Throttle.Long},
	}

	memory := func() (*rate.Throttle, func() error, error) {
		ws := make([]rate.Window, 0, len(windows))
		for _, w := range windows {
			ws = append(ws, rate.Window{Name: w.name, Limiter: rate.NewMemory(w.cfg.Limit, w.cfg.Window)})
		}
		return rate.NewThrottle(ws, logger), func() error { return nil }, nil
	}

	if cfg.Throttle.Redis.Addr == "" {
		if cfg.App.Env == "dev" || cfg.App.Env == "test" {
			return memory()
		}
		return nil, nil, fmt.Errorf("throttle redis not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Throttle.Redis.Addr,
		Password: cfg.Throttle.Redis.Password,
		DB:       cfg.Throttle.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if cfg.App.Env == "dev" || cfg.App.Env == "test" {
			logger.Warn("redis throttle unavailable, falling back to memory", "error", err)
			return memory()
		}
		return nil, nil, err
	}

	ws := make([]rate.Window, 0, len(windows))
	for _, w := range windows {
		ws = append(ws, rate.Window{Name: w.name, Limiter: rate.NewRedisLimiter(client, w.cfg.Limit, w.cfg.Window, cfg.Throttle.Redis.Prefix)})
	}
	return rate.NewThrottle(ws, logger), client.Close, nil
}

func buildVerifier(cfg *config.Config, logger *slog.Logger) identity.Verifier {
	verifier, err := identity.NewFirebaseVerifier(cfg.Firebase.APIKey, nil)
	if err != nil {
		logger.Warn("otp verifier not configured, otp flows will be rejected")
		return identity.Disabled{}
	}
	return verifier
}

func buildUploader(cfg *config.Config, logger *slog.Logger) handlers.Uploader {
	uploader, err := media.NewCloudinary(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	if err != nil {
		logger.Warn("cloudinary not configured, media uploads disabled")
		return nil
	}
	return uploader
}

// buildEmitter wires the Kafka producer when brokers are configured.
// Without brokers events are disabled, not fatal.
func buildEmitter(cfg *config.Config, logger *slog.Logger, registry *prometheus.Registry) (*events.Emitter, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Warn("kafka brokers not configured, domain events disabled")
		return events.NewEmitter(nil, cfg.Kafka.TopicPrefix, logger), nil
	}

	producer, err := events.NewSyncProducer(cfg.Kafka.Brokers, logger, events.NewProducerMetrics(registry))
	if err != nil {
		if cfg.App.Env == "dev" || cfg.App.Env == "test" {
			logger.Warn("kafka unavailable, domain events disabled", "error", err)
			return events.NewEmitter(nil, cfg.Kafka.TopicPrefix, logger), nil
		}
		return nil, err
	}

	return events.NewEmitter(producer, cfg.Kafka.TopicPrefix, logger), nil
}

func waitForShutdown(server *http.Server, ready *health.Manager, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ready.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutdown started")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}

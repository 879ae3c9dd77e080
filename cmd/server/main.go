package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/handlers"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/logging"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format := cfg.LogFormat
	if format == "" && cfg.IsProduction() {
		format = "json"
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: format})
	slog.SetDefault(logger)

	db, err := repository.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := repository.CloseDB(db); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if repository.IsPostgres(cfg.DatabaseURL) {
		logger.Info("Running database migrations")
		if err := repository.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Without Redis the recorder keeps working on its in-process buffer.
	var stream *services.ClickStream
	rdb, err := repository.InitRedis(cfg.RedisURL, cfg.RedisPassword, 0)
	if err != nil {
		logger.Warn("Failed to connect to Redis, click stream disabled", "error", err)
	} else {
		defer closeRedis(rdb, logger)
		stream = services.NewClickStream(rdb, cfg.ClickStream, cfg.ClickGroup, cfg.ClickConsumer, logger)
		if err := stream.EnsureGroup(ctx); err != nil {
			logger.Warn("Failed to create click consumer group, click stream disabled", "error", err)
			stream = nil
		}
	}

	geoIPService := services.NewGeoIPService(cfg, logger)
	geoIPService.Init()
	defer geoIPService.Close()

	auditService := services.NewAuditService(db, logger)
	visitor := services.NewVisitorResolver(geoIPService, cfg.MaskClickIPs)
	clickRecorder := services.NewClickRecorder(db, logger, visitor, stream, cfg.ClickBufferSize)
	rateLimiter := services.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, logger)

	h := handlers.NewHandler(
		cfg,
		logger,
		db,
		services.NewShortenerService(db, auditService, cfg, logger),
		clickRecorder,
		services.NewAnalyticsService(db, logger),
		services.NewAuthService(db, auditService, cfg.JWTSecret, cfg.JWTTTL, logger),
		services.NewUserService(db, auditService, logger),
		services.NewQRService(),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.SetupRouter(rateLimiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var workers sync.WaitGroup
	startWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(workerCtx)
		}()
	}
	startWorker(auditService.Start)
	startWorker(clickRecorder.Start)
	startWorker(geoIPService.StartUpdater)
	startWorker(func(ctx context.Context) { rateLimiter.StartCleanup(ctx, 10*time.Minute) })

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "click_mode", cfg.ClickRecordMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Workers drain their queues after the server stops accepting clicks.
	workerCancel()
	workers.Wait()

	logger.Info("Server exiting")
	return runErr
}

func closeRedis(rdb *redis.Client, logger *slog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Error("Failed to close Redis", "error", err)
	}
}

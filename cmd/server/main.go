package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"decal_manager/internal/config"
	"decal_manager/internal/database"
	"decal_manager/internal/handlers"
	"decal_manager/internal/logging"
	"decal_manager/internal/migrations"
	"decal_manager/internal/redis"
	"decal_manager/internal/repository"
	"decal_manager/internal/repository/memory"
	"decal_manager/internal/services"
	"decal_manager/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store  repository.Store
		checks []handlers.HealthCheck
	)

	// Initialize storage
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()
	case config.StoreDriverPostgres:
		db, err := database.Initialize(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)

		if cfg.AutoMigrate {
			if err := migrations.RunMigrations(db, logger); err != nil {
				logger.Fatal("failed to migrate database", zap.Error(err))
			}
		}
		store = repository.NewStore(db)
		checks = append(checks, handlers.HealthCheck{
			Name:  "database",
			Check: func(ctx context.Context) error { return database.Ping(ctx, db) },
		})
	default:
		logger.Fatal("unknown store driver", zap.String("driver", cfg.StoreDriver))
	}

	if cfg.SeedCatalog {
		if err := migrations.SeedCatalog(ctx, store, logger); err != nil {
			logger.Fatal("failed to seed catalog", zap.Error(err))
		}
	}

	deps := services.Deps{
		Store:         store,
		Logger:        logger,
		StageCacheTTL: cfg.StageCacheTTL,
		TxOptions: []repository.TxOption{
			repository.WithTxAttempts(cfg.TxMaxAttempts),
			repository.WithTxTimeout(cfg.TxTimeout),
		},
	}

	// Initialize Redis
	if cfg.RedisURL != "" {
		redisClient, err := redis.Initialize(cfg.RedisURL, redis.WithLockTTL(cfg.LockTTL), redis.WithLockWait(cfg.LockWait))
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		logger.Info("redis locks enabled", zap.Duration("lock_ttl", cfg.LockTTL), zap.Duration("tx_budget", cfg.TxBudget()))
		deps.Locker = redisClient
		deps.StageCache = redisClient
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: redisClient.Ping})
	} else {
		logger.Info("REDIS_URL not set, using process-local locks without stage cache")
		deps.Locker = services.NewLocalLocker()
	}

	// Initialize WhatsApp client
	var replier handlers.Replier
	if cfg.WhatsAppAPIURL != "" {
		whatsappClient := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath)
		deps.Notifier = services.NewWhatsAppNotifier(whatsappClient, logger)
		replier = whatsappClient
	}

	router := handlers.SetupRouter(handlers.RouterConfig{
		Services: handlers.Services{
			Orders:     services.NewOrderService(deps),
			LineItems:  services.NewLineItemService(deps),
			Stages:     services.NewStageService(deps),
			Scheduling: services.NewSchedulingService(deps),
			Employees:  services.NewEmployeeService(deps),
		},
		Logger:       logger,
		HealthChecks: checks,
		Replier:      replier,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"log"
	"time"

	"decal_manager/internal/config"
	"decal_manager/internal/database"
	"decal_manager/internal/logging"
	"decal_manager/internal/migrations"
	"decal_manager/internal/repository"

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

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := migrations.RunMigrations(db, logger); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := migrations.SeedCatalog(ctx, repository.NewStore(db), logger); err != nil {
		logger.Fatal("failed to seed catalog", zap.Error(err))
	}

	logger.Info("database initialization completed")
}

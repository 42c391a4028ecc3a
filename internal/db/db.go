package db

import (
	"fmt"
	"time"

	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// New creates a new database connection.
func New(cfg *config.Config) (*gorm.DB, error) {
	return connectToDatabaseWithRetry(cfg.EnvVars.DatabaseUrl)
}

// connectToDatabaseWithRetry connects to the database and retries if necessary.
func connectToDatabaseWithRetry(databaseURL string) (*gorm.DB, error) {
	logger.Get().Info("connecting to database")
	var database *gorm.DB
	var err error

	start := time.Now()
	for {
		database, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
		if err == nil {
			break
		}
		if time.Since(start) > 1*time.Minute {
			return nil, fmt.Errorf("could not connect to database after 1 minute: %w", err)
		}
		logger.Get().Warn("could not connect to database, retrying...", zap.Error(err))
		time.Sleep(5 * time.Second)
	}

	// Enable pgvector extension for embedding similarity search
	database.Exec("CREATE EXTENSION IF NOT EXISTS vector")

	database.AutoMigrate(
		&models.Recipe{},
		&models.RecipeStep{},
		&models.Ingredient{},
	)

	return database, err
}

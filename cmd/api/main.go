package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/db"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/router"
	"github.com/misolabs/miso-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// init is called before the main function.
func init() {
	// Initialize structured logger (dev mode if GIN_MODE != release)
	isDev := os.Getenv("GIN_MODE") != "release"
	logger.Init(isDev)

	// Configure the runtime
	ConfigureRuntime()
}

// Entry point for the API.
func main() {
	defer logger.Sync()

	// Load the config
	var cfg *config.Config
	if c, err := config.LoadConfig(); err != nil {
		logger.Get().Fatal("failed to load config", zap.Error(err))
	} else {
		cfg = c
	}

	// Check that all ENV variables are set
	if err := cfg.CheckConfigEnvFields(); err != nil {
		logger.Get().Fatal("missing required config fields", zap.Error(err))
	}

	// Load prompts from YAML
	prompts, err := config.LoadPrompts("configs/prompts.yaml")
	if err != nil {
		logger.Get().Fatal("failed to load prompts", zap.Error(err))
	}
	cfg.Prompts = prompts

	// Connect to the database
	database, err := db.New(cfg)
	if err != nil {
		logger.Get().Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := database.DB()
	if err != nil {
		logger.Get().Fatal("failed to get underlying sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// Backfill missing embeddings so similarity search covers every recipe
	go backfillEmbeddings(cfg, database)

	// Create a new gin router
	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(cfg, database)

	// Run the server
	logger.Get().Info("starting server", zap.String("port", cfg.EnvVars.Port))
	r.Run(":" + cfg.EnvVars.Port)
}

// backfillEmbeddings embeds any steps or ingredients that are missing
// vectors. Run in the background so startup is not gated on the OpenAI API.
func backfillEmbeddings(cfg *config.Config, database *gorm.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backfill := service.NewEmbeddingBackfillService(
		repository.NewRecipeRepository(database),
		ai.NewEmbeddingProvider(cfg.EnvVars.OpenAIAPIKey),
	)
	if _, err := backfill.Run(ctx); err != nil {
		logger.Get().Error("embedding backfill failed", zap.Error(err))
	}
}

// ConfigureRuntime sets the number of operating system threads.
func ConfigureRuntime() {
	nuCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(nuCPU)
	logger.Get().Info("runtime configured", zap.Int("cpus", nuCPU))
}

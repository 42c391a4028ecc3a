package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/handlers"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/middleware"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/s3"
	"github.com/misolabs/miso-api/internal/service"
	"github.com/misolabs/miso-api/internal/ws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter sets up the Gin router.
func SetupRouter(cfg *config.Config, database *gorm.DB) *gin.Engine {
	// Create default Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = []string{
		"https://api.misolabs.app",
		"https://misolabs.app",
		"https://www.misolabs.app",
	}
	r.Use(cors.New(corsConfig))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Ping route for testing
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// AI provider setup
	embedder := ai.NewCachedEmbeddingProvider(
		ai.NewEmbeddingProvider(cfg.EnvVars.OpenAIAPIKey),
		cfg.Tunables.EmbeddingCacheTTL,
	)
	visionProvider := ai.NewGeminiVisionProvider(cfg.EnvVars.GeminiAPIKey)
	var chatProvider ai.ChatProvider
	if cfg.EnvVars.GuidanceProvider == "anthropic" && cfg.EnvVars.AnthropicAPIKey != "" {
		chatProvider = ai.NewAnthropicChatProvider(cfg.EnvVars.AnthropicAPIKey)
	} else {
		chatProvider = ai.NewOpenAIChatProvider(cfg.EnvVars.OpenAIAPIKey)
	}
	synth := ai.NewOpenAITTSProvider(cfg.EnvVars.OpenAIAPIKey)

	// Repositories
	recipeRepo := repository.NewRecipeRepository(database)
	vectorRepo := repository.NewVectorRepository(database)

	// Guidance pipeline services, shared across sessions
	visionService := service.NewVisionService(cfg, visionProvider)
	retrievalService := service.NewRetrievalService(cfg, embedder, vectorRepo)
	guidanceService := service.NewGuidanceService(cfg, chatProvider)

	// Optional frame archive
	var archiver service.FrameArchiver
	if cfg.FrameArchiveEnabled() {
		archive, err := s3.NewFrameArchive(context.Background(), cfg)
		if err != nil {
			logger.Get().Warn("frame archive disabled", zap.Error(err))
		} else {
			archiver = archive
		}
	}

	// WebSocket hub and guidance handler
	hub := ws.NewHub()
	go hub.Run()
	guidanceHandler := ws.NewGuidanceHandler(hub, cfg, recipeRepo, visionService, retrievalService, guidanceService, synth)
	guidanceHandler.Archiver = archiver

	// REST handlers
	recipeHandler := handlers.NewRecipeHandler(recipeRepo)
	searchHandler := handlers.NewSearchHandler(cfg, embedder, vectorRepo)

	// Group for API routes that don't require token verification
	apiPublic := r.Group("/v1")
	{
		apiPublic.Use(middleware.RateLimitByIP(10, 5*time.Minute, 10*time.Minute))

		// List recipes
		apiPublic.GET("/recipes", recipeHandler.ListRecipes)
		// Get a single recipe by its ID
		apiPublic.GET("/recipes/:recipe_id", recipeHandler.GetRecipe)
		// Get a recipe's steps
		apiPublic.GET("/recipes/:recipe_id/steps", recipeHandler.GetRecipeSteps)
	}

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.VerifyTokenMiddleware(cfg))

		// Free-text similarity search over steps and ingredients
		apiProtected.POST("/search", searchHandler.Search)
	}

	// WebSocket route; authenticates via query-param token inside the
	// handler because the upgrade request cannot carry headers from the
	// mobile client.
	r.GET("/v1/ws/guidance/:recipe_id", guidanceHandler.HandleGuidanceSession)

	return r
}

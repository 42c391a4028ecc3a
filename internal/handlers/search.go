package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/repository"
	"go.uber.org/zap"
)

// SearchHandler answers free-text similarity search over the recipe corpus.
// It runs the same embed-and-rank path the guidance pipeline uses, exposed
// for recipe discovery in the app.
type SearchHandler struct {
	Cfg      *config.Config
	Embedder ai.EmbeddingProvider
	Searcher repository.VectorSearcher
}

// NewSearchHandler returns a new SearchHandler.
func NewSearchHandler(cfg *config.Config, embedder ai.EmbeddingProvider, searcher repository.VectorSearcher) *SearchHandler {
	return &SearchHandler{Cfg: cfg, Embedder: embedder, Searcher: searcher}
}

// SearchRequest is the body of a similarity search request.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Search embeds the query and returns the most similar steps and
// ingredients above the configured thresholds.
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	embedding, err := h.Embedder.GenerateEmbedding(c.Request.Context(), req.Query)
	if err != nil {
		logger.Get().Error("failed to embed search query", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to process query"})
		return
	}

	t := h.Cfg.Tunables
	steps, err := h.Searcher.SimilarSteps(embedding, t.StepMatchThreshold, t.MatchLimit)
	if err != nil {
		logger.Get().Error("step similarity search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	ingredients, err := h.Searcher.SimilarIngredients(embedding, t.IngredientMatchThreshold, t.MatchLimit)
	if err != nil {
		logger.Get().Error("ingredient similarity search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"steps":       steps,
		"ingredients": ingredients,
	})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/repository"
	"go.uber.org/zap"
)

// RecipeHandler is the handler for recipe-related requests.
type RecipeHandler struct {
	Repo repository.RecipeRepo
}

// NewRecipeHandler is the constructor function for initializing a new RecipeHandler.
func NewRecipeHandler(repo repository.RecipeRepo) *RecipeHandler {
	return &RecipeHandler{Repo: repo}
}

// ListRecipes returns a paginated list of recipes.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page := 1
	pageSize := 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	recipes, total, err := h.Repo.ListRecipes(page, pageSize)
	if err != nil {
		logger.Get().Error("failed to list recipes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recipes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes":  recipes,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetRecipe returns a recipe by ID, with steps and ingredients.
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	recipeIDStr := c.Param("recipe_id")
	recipeID, err := parseIDParam(recipeIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	recipe, err := h.Repo.GetRecipeByID(recipeID)
	if err != nil {
		logger.Get().Error("failed to get recipe", zap.String("recipe_id", recipeIDStr), zap.Error(err))
		switch e := err.(type) {
		case repository.NotFoundError:
			c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": e.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// GetRecipeSteps returns a recipe's steps ordered by step number.
func (h *RecipeHandler) GetRecipeSteps(c *gin.Context) {
	recipeID, err := parseIDParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	steps, err := h.Repo.GetRecipeSteps(recipeID)
	if err != nil {
		logger.Get().Error("failed to get recipe steps", zap.Uint("recipe_id", recipeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get recipe steps"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

package repository

import (
	"errors"
	"fmt"

	"github.com/misolabs/miso-api/internal/models"
	"gorm.io/gorm"
)

// RecipeRepository is a repository for interacting with recipes.
type RecipeRepository struct {
	DB *gorm.DB
}

// NewRecipeRepository creates a new RecipeRepository.
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{DB: db}
}

// GetRecipeByID retrieves a recipe with its steps and ingredients.
func (r *RecipeRepository) GetRecipeByID(recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe

	err := r.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Preload("Ingredients").
		Where("id = ?", recipeID).
		First(&recipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("recipe", recipeID)
		}
		return nil, fmt.Errorf("failed to retrieve recipe: %w", err)
	}

	return &recipe, nil
}

// ListRecipes returns a page of recipes with the total count. Steps and
// ingredients are not preloaded; listings only need the summary fields.
func (r *RecipeRepository) ListRecipes(page, pageSize int) ([]models.Recipe, int64, error) {
	var recipes []models.Recipe
	var total int64

	if err := r.DB.Model(&models.Recipe{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	err := r.DB.
		Order("featured DESC, created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	return recipes, total, nil
}

// GetRecipeSteps retrieves a recipe's steps ordered by step number.
func (r *RecipeRepository) GetRecipeSteps(recipeID uint) ([]models.RecipeStep, error) {
	var steps []models.RecipeStep
	err := r.DB.
		Where("recipe_id = ?", recipeID).
		Order("step_number ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve recipe steps: %w", err)
	}
	return steps, nil
}

// GetRecipeIngredients retrieves a recipe's ingredients.
func (r *RecipeRepository) GetRecipeIngredients(recipeID uint) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := r.DB.
		Where("recipe_id = ?", recipeID).
		Find(&ingredients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve recipe ingredients: %w", err)
	}
	return ingredients, nil
}

// GetStepsMissingEmbeddings returns steps without a stored embedding,
// for the backfill service.
func (r *RecipeRepository) GetStepsMissingEmbeddings(limit int) ([]models.RecipeStep, error) {
	var steps []models.RecipeStep
	err := r.DB.
		Where("embedding IS NULL").
		Limit(limit).
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve steps missing embeddings: %w", err)
	}
	return steps, nil
}

// GetIngredientsMissingEmbeddings returns ingredients without a stored
// embedding, for the backfill service.
func (r *RecipeRepository) GetIngredientsMissingEmbeddings(limit int) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := r.DB.
		Where("embedding IS NULL").
		Limit(limit).
		Find(&ingredients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve ingredients missing embeddings: %w", err)
	}
	return ingredients, nil
}

// UpdateStepEmbedding sets the embedding vector for a recipe step.
func (r *RecipeRepository) UpdateStepEmbedding(stepID uint, embedding []float32) error {
	err := r.DB.Model(&models.RecipeStep{}).
		Where("id = ?", stepID).
		Update("embedding", models.VectorLiteral(embedding)).Error
	if err != nil {
		return fmt.Errorf("failed to update step embedding: %w", err)
	}
	return nil
}

// UpdateIngredientEmbedding sets the embedding vector for an ingredient.
func (r *RecipeRepository) UpdateIngredientEmbedding(ingredientID uint, embedding []float32) error {
	err := r.DB.Model(&models.Ingredient{}).
		Where("id = ?", ingredientID).
		Update("embedding", models.VectorLiteral(embedding)).Error
	if err != nil {
		return fmt.Errorf("failed to update ingredient embedding: %w", err)
	}
	return nil
}

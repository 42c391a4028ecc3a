package repository

import "github.com/misolabs/miso-api/internal/models"

// RecipeRepo is the interface for read access to the recipe store. The
// guidance pipeline never writes recipe content; the only mutation it
// performs is backfilling missing embeddings.
type RecipeRepo interface {
	GetRecipeByID(recipeID uint) (*models.Recipe, error)
	ListRecipes(page, pageSize int) ([]models.Recipe, int64, error)
	GetRecipeSteps(recipeID uint) ([]models.RecipeStep, error)
	GetRecipeIngredients(recipeID uint) ([]models.Ingredient, error)
	GetStepsMissingEmbeddings(limit int) ([]models.RecipeStep, error)
	GetIngredientsMissingEmbeddings(limit int) ([]models.Ingredient, error)
	UpdateStepEmbedding(stepID uint, embedding []float32) error
	UpdateIngredientEmbedding(ingredientID uint, embedding []float32) error
}

// VectorSearcher performs similarity search over the two retrieval corpora.
// Both the pgvector-backed repository and the in-process scanner satisfy it.
type VectorSearcher interface {
	SimilarSteps(embedding []float32, threshold float64, limit int) ([]StepMatch, error)
	SimilarIngredients(embedding []float32, threshold float64, limit int) ([]IngredientMatch, error)
}

// StepMatch is a recipe step ranked by similarity to a query embedding.
type StepMatch struct {
	StepID      uint
	RecipeID    uint
	StepNumber  int
	Instruction string
	Similarity  float64
}

// IngredientMatch is an ingredient ranked by similarity to a query embedding.
type IngredientMatch struct {
	IngredientID uint
	Name         string
	Similarity   float64
}

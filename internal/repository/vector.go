package repository

import (
	"fmt"

	"github.com/misolabs/miso-api/internal/models"
	"gorm.io/gorm"
)

// VectorRepository handles pgvector similarity search over recipe steps
// and ingredients. The `<=>` operator is cosine distance, so similarity
// is computed as 1 - distance.
type VectorRepository struct {
	DB *gorm.DB
}

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(db *gorm.DB) *VectorRepository {
	return &VectorRepository{DB: db}
}

// SimilarSteps finds recipe steps whose embedding is within threshold
// cosine similarity of the query embedding, most similar first.
func (r *VectorRepository) SimilarSteps(embedding []float32, threshold float64, limit int) ([]StepMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	lit := models.VectorLiteral(embedding)

	var rows []struct {
		ID          uint
		RecipeID    uint
		StepNumber  int
		Instruction string
		Similarity  float64
	}
	err := r.DB.Raw(`
		SELECT id, recipe_id, step_number, instruction,
		       1 - (embedding <=> ?::vector) AS similarity
		FROM recipe_steps
		WHERE embedding IS NOT NULL
		  AND deleted_at IS NULL
		  AND 1 - (embedding <=> ?::vector) >= ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?`,
		lit, lit, threshold, lit, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find similar steps: %w", err)
	}

	matches := make([]StepMatch, len(rows))
	for i, row := range rows {
		matches[i] = StepMatch{
			StepID:      row.ID,
			RecipeID:    row.RecipeID,
			StepNumber:  row.StepNumber,
			Instruction: row.Instruction,
			Similarity:  row.Similarity,
		}
	}
	return matches, nil
}

// SimilarIngredients finds ingredients whose embedding is within threshold
// cosine similarity of the query embedding, most similar first.
func (r *VectorRepository) SimilarIngredients(embedding []float32, threshold float64, limit int) ([]IngredientMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	lit := models.VectorLiteral(embedding)

	var rows []struct {
		ID         uint
		Name       string
		Similarity float64
	}
	err := r.DB.Raw(`
		SELECT id, name,
		       1 - (embedding <=> ?::vector) AS similarity
		FROM ingredients
		WHERE embedding IS NOT NULL
		  AND deleted_at IS NULL
		  AND 1 - (embedding <=> ?::vector) >= ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?`,
		lit, lit, threshold, lit, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find similar ingredients: %w", err)
	}

	matches := make([]IngredientMatch, len(rows))
	for i, row := range rows {
		matches[i] = IngredientMatch{
			IngredientID: row.ID,
			Name:         row.Name,
			Similarity:   row.Similarity,
		}
	}
	return matches, nil
}

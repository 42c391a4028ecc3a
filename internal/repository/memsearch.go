package repository

import (
	"strconv"

	"github.com/misolabs/miso-api/internal/models"
	"github.com/misolabs/miso-api/internal/vector"
)

// MemorySearcher is a VectorSearcher over step and ingredient records held
// in memory. A cooking session loads one recipe's records up front, so the
// brute-force scan stays small; it also keeps the retrieval path alive
// when no database is attached (tests, local development).
type MemorySearcher struct {
	steps       []models.RecipeStep
	ingredients []models.Ingredient
}

// NewMemorySearcher creates a searcher over the given records.
func NewMemorySearcher(steps []models.RecipeStep, ingredients []models.Ingredient) *MemorySearcher {
	return &MemorySearcher{steps: steps, ingredients: ingredients}
}

// SimilarSteps ranks the in-memory steps against the query embedding.
func (m *MemorySearcher) SimilarSteps(embedding []float32, threshold float64, limit int) ([]StepMatch, error) {
	docs := make([]vector.Document, 0, len(m.steps))
	byID := make(map[string]models.RecipeStep, len(m.steps))
	for _, s := range m.steps {
		id := strconv.FormatUint(uint64(s.ID), 10)
		docs = append(docs, vector.Document{
			ID:        id,
			Content:   s.Instruction,
			Embedding: s.EmbeddingVector(),
		})
		byID[id] = s
	}

	ranked := vector.Rank(embedding, docs, threshold, limit)
	matches := make([]StepMatch, len(ranked))
	for i, r := range ranked {
		s := byID[r.SourceID]
		matches[i] = StepMatch{
			StepID:      s.ID,
			RecipeID:    s.RecipeID,
			StepNumber:  s.StepNumber,
			Instruction: s.Instruction,
			Similarity:  r.Similarity,
		}
	}
	return matches, nil
}

// SimilarIngredients ranks the in-memory ingredients against the query
// embedding.
func (m *MemorySearcher) SimilarIngredients(embedding []float32, threshold float64, limit int) ([]IngredientMatch, error) {
	docs := make([]vector.Document, 0, len(m.ingredients))
	byID := make(map[string]models.Ingredient, len(m.ingredients))
	for _, ing := range m.ingredients {
		id := strconv.FormatUint(uint64(ing.ID), 10)
		docs = append(docs, vector.Document{
			ID:        id,
			Content:   ing.Name,
			Embedding: ing.EmbeddingVector(),
		})
		byID[id] = ing
	}

	ranked := vector.Rank(embedding, docs, threshold, limit)
	matches := make([]IngredientMatch, len(ranked))
	for i, r := range ranked {
		ing := byID[r.SourceID]
		matches[i] = IngredientMatch{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Similarity:   r.Similarity,
		}
	}
	return matches, nil
}

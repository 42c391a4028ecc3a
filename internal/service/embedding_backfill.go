package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/models"
	"github.com/misolabs/miso-api/internal/repository"
	"go.uber.org/zap"
)

// backfillBatchSize is how many rows one backfill pass pulls at a time.
const backfillBatchSize = 50

// EmbeddingBackfillService populates missing step and ingredient embeddings
// so similarity search covers the whole corpus. It runs at startup and can
// be re-run whenever recipes are added.
type EmbeddingBackfillService struct {
	Repo     repository.RecipeRepo
	Embedder ai.EmbeddingProvider
}

// NewEmbeddingBackfillService creates a new EmbeddingBackfillService.
func NewEmbeddingBackfillService(repo repository.RecipeRepo, embedder ai.EmbeddingProvider) *EmbeddingBackfillService {
	return &EmbeddingBackfillService{Repo: repo, Embedder: embedder}
}

// Run embeds every step and ingredient still missing an embedding. It
// returns the number of rows updated. A single row failing to embed stops
// the pass; already-written embeddings are kept.
func (s *EmbeddingBackfillService) Run(ctx context.Context) (int, error) {
	updated := 0

	for {
		steps, err := s.Repo.GetStepsMissingEmbeddings(backfillBatchSize)
		if err != nil {
			return updated, fmt.Errorf("list steps missing embeddings: %w", err)
		}
		if len(steps) == 0 {
			break
		}
		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				return updated, err
			}
			embedding, err := s.Embedder.GenerateEmbedding(ctx, StepEmbeddingText(step))
			if err != nil {
				return updated, fmt.Errorf("embed step %d: %w", step.ID, err)
			}
			if err := s.Repo.UpdateStepEmbedding(step.ID, embedding); err != nil {
				return updated, fmt.Errorf("store step %d embedding: %w", step.ID, err)
			}
			updated++
		}
	}

	for {
		ingredients, err := s.Repo.GetIngredientsMissingEmbeddings(backfillBatchSize)
		if err != nil {
			return updated, fmt.Errorf("list ingredients missing embeddings: %w", err)
		}
		if len(ingredients) == 0 {
			break
		}
		for _, ing := range ingredients {
			if err := ctx.Err(); err != nil {
				return updated, err
			}
			embedding, err := s.Embedder.GenerateEmbedding(ctx, ing.Name)
			if err != nil {
				return updated, fmt.Errorf("embed ingredient %d: %w", ing.ID, err)
			}
			if err := s.Repo.UpdateIngredientEmbedding(ing.ID, embedding); err != nil {
				return updated, fmt.Errorf("store ingredient %d embedding: %w", ing.ID, err)
			}
			updated++
		}
	}

	if updated > 0 {
		logger.Get().Info("embedding backfill complete", zap.Int("rows", updated))
	}
	return updated, nil
}

// StepEmbeddingText is the canonical text embedded for a recipe step: the
// instruction plus the ingredients it touches, so a scene showing those
// ingredients can pull the step in even when the wording differs.
func StepEmbeddingText(step models.RecipeStep) string {
	if len(step.Ingredients) == 0 {
		return step.Instruction
	}
	return step.Instruction + " (uses: " + strings.Join(step.Ingredients, ", ") + ")"
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/repository"
)

// RetrievalContext is the ranked recipe knowledge relevant to one analysis
// cycle: similar prior steps and similar ingredients, each truncated to
// the configured match limit.
type RetrievalContext struct {
	Steps       []repository.StepMatch       `json:"steps"`
	Ingredients []repository.IngredientMatch `json:"ingredients"`
	Embedding   []float32                    `json:"-"`
}

// RetrievalService builds a composite query from the scene and current
// step, embeds it, and runs similarity search against the step and
// ingredient corpora.
type RetrievalService struct {
	Cfg       *config.Config
	Embedder  ai.EmbeddingProvider
	Searcher  repository.VectorSearcher
}

// NewRetrievalService creates a new RetrievalService.
func NewRetrievalService(cfg *config.Config, embedder ai.EmbeddingProvider, searcher repository.VectorSearcher) *RetrievalService {
	return &RetrievalService{
		Cfg:      cfg,
		Embedder: embedder,
		Searcher: searcher,
	}
}

// Retrieve embeds the composite query and searches both corpora
// concurrently. An embedding failure is propagated; a failure of either
// search leg is propagated after both complete.
func (s *RetrievalService) Retrieve(ctx context.Context, scene ai.SceneDescription, currentStepText string) (*RetrievalContext, error) {
	query := BuildCompositeQuery(scene, currentStepText)

	embedding, err := s.Embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}

	t := s.Cfg.Tunables

	type stepsResult struct {
		matches []repository.StepMatch
		err     error
	}
	stepsCh := make(chan stepsResult, 1)
	go func() {
		matches, err := s.Searcher.SimilarSteps(embedding, t.StepMatchThreshold, t.MatchLimit)
		stepsCh <- stepsResult{matches, err}
	}()

	ingredients, ingErr := s.Searcher.SimilarIngredients(embedding, t.IngredientMatchThreshold, t.MatchLimit)
	steps := <-stepsCh

	if steps.err != nil {
		return nil, fmt.Errorf("similar steps search: %w", steps.err)
	}
	if ingErr != nil {
		return nil, fmt.Errorf("similar ingredients search: %w", ingErr)
	}

	return &RetrievalContext{
		Steps:       steps.matches,
		Ingredients: ingredients,
		Embedding:   embedding,
	}, nil
}

// BuildCompositeQuery concatenates the current step and the scene's fields
// into one query string. Segments are joined in a fixed order; empty
// segments and the literal "unknown" cooking state are omitted so
// placeholder tokens do not pollute the embedding.
func BuildCompositeQuery(scene ai.SceneDescription, currentStepText string) string {
	segments := []struct {
		label string
		value string
	}{
		{"Current step", currentStepText},
		{"Scene", scene.Summary},
		{"Objects", strings.Join(scene.Objects, ", ")},
		{"Actions", strings.Join(scene.Actions, ", ")},
		{"Tools", strings.Join(scene.CookingTools, ", ")},
		{"Ingredients", strings.Join(scene.Ingredients, ", ")},
		{"State", string(scene.CookingState)},
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.value == "" || seg.value == string(ai.StateUnknown) {
			continue
		}
		parts = append(parts, seg.label+": "+seg.value)
	}
	return strings.Join(parts, " • ")
}

// AnalysisResult is the tuple handed to the session once per completed
// analysis cycle.
type AnalysisResult struct {
	Scene     ai.SceneDescription `json:"scene"`
	Retrieval *RetrievalContext   `json:"retrieval"`
	Guidance  string              `json:"guidance"`
	Timestamp time.Time           `json:"timestamp"`
}

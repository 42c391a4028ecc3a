package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/models"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/testutil"
)

func TestBuildCompositeQueryAllSegments(t *testing.T) {
	scene := testutil.TestScene()
	query := BuildCompositeQuery(scene, "Dice the tofu into small cubes")

	want := "Current step: Dice the tofu into small cubes" +
		" • Scene: Dicing tofu on a cutting board" +
		" • Objects: tofu, knife, cutting board" +
		" • Actions: dicing" +
		" • Tools: knife, cutting board" +
		" • Ingredients: tofu" +
		" • State: preparing"
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
}

func TestBuildCompositeQueryOmitsEmptyAndUnknown(t *testing.T) {
	scene := ai.SceneDescription{
		Objects:      []string{},
		Actions:      []string{"stirring"},
		CookingTools: []string{},
		Ingredients:  []string{},
		CookingState: ai.StateUnknown,
		Summary:      "",
	}
	query := BuildCompositeQuery(scene, "")

	if query != "Actions: stirring" {
		t.Errorf("query = %q, want only the actions segment", query)
	}
	if strings.Contains(query, "unknown") {
		t.Errorf("query %q should not contain the unknown state", query)
	}
}

func TestRetrievePassesConfiguredThresholds(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Tunables.StepMatchThreshold = 0.75
	cfg.Tunables.IngredientMatchThreshold = 0.65
	cfg.Tunables.MatchLimit = 3

	embedder := &testutil.MockEmbeddingProvider{
		GenerateEmbeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	searcher := &testutil.MockVectorSearcher{
		SimilarStepsFunc: func(embedding []float32, threshold float64, limit int) ([]repository.StepMatch, error) {
			if threshold != 0.75 {
				t.Errorf("step threshold = %v, want 0.75", threshold)
			}
			if limit != 3 {
				t.Errorf("step limit = %d, want 3", limit)
			}
			return []repository.StepMatch{{StepID: 2, StepNumber: 2, Instruction: "simmer", Similarity: 0.8}}, nil
		},
		SimilarIngredientsFunc: func(embedding []float32, threshold float64, limit int) ([]repository.IngredientMatch, error) {
			if threshold != 0.65 {
				t.Errorf("ingredient threshold = %v, want 0.65", threshold)
			}
			return []repository.IngredientMatch{{IngredientID: 1, Name: "tofu", Similarity: 0.7}}, nil
		},
	}

	svc := NewRetrievalService(cfg, embedder, searcher)
	result, err := svc.Retrieve(context.Background(), testutil.TestScene(), "Dice the tofu")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Steps) != 1 || result.Steps[0].Instruction != "simmer" {
		t.Errorf("steps = %+v", result.Steps)
	}
	if len(result.Ingredients) != 1 || result.Ingredients[0].Name != "tofu" {
		t.Errorf("ingredients = %+v", result.Ingredients)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding not carried through: %v", result.Embedding)
	}
}

func TestRetrieveEmbeddingFailurePropagates(t *testing.T) {
	cfg := testutil.TestConfig()
	embedder := &testutil.MockEmbeddingProvider{
		GenerateEmbeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("rate limited")
		},
	}
	svc := NewRetrievalService(cfg, embedder, &testutil.MockVectorSearcher{})

	_, err := svc.Retrieve(context.Background(), testutil.TestScene(), "step")
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if !strings.Contains(err.Error(), "embed retrieval query") {
		t.Errorf("err = %v, want wrapped embed failure", err)
	}
}

// withEmbedding sets a step's stored vector literal.
func withEmbedding(s models.RecipeStep, v []float32) models.RecipeStep {
	lit := models.VectorLiteral(v)
	s.Embedding = &lit
	return s
}

func TestRetrieveExactMatchRanksFirst(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Tunables.StepMatchThreshold = 0.1

	steps := testutil.TestRecipeSteps()
	// The dicing step gets the same direction as the query embedding; the
	// others point elsewhere.
	steps[0] = withEmbedding(steps[0], []float32{1, 0, 0})
	steps[1] = withEmbedding(steps[1], []float32{0, 1, 0})
	steps[2] = withEmbedding(steps[2], []float32{0.5, 0.5, 0})
	steps[3] = withEmbedding(steps[3], []float32{0.7, 0.3, 0})

	embedder := &testutil.MockEmbeddingProvider{
		GenerateEmbeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	searcher := repository.NewMemorySearcher(steps, nil)

	svc := NewRetrievalService(cfg, embedder, searcher)
	result, err := svc.Retrieve(context.Background(), testutil.TestScene(), "Dice the tofu into small cubes")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Steps) == 0 {
		t.Fatal("no step matches")
	}
	first := result.Steps[0]
	if first.StepNumber != 1 {
		t.Errorf("top match is step %d, want step 1", first.StepNumber)
	}
	if first.Similarity < 0.999 {
		t.Errorf("top similarity = %v, want ~1.0", first.Similarity)
	}
}

package testutil

import (
	"context"
	"fmt"

	"github.com/misolabs/miso-api/internal/models"
	"github.com/misolabs/miso-api/internal/repository"
)

// --- MockEmbeddingProvider ---

// MockEmbeddingProvider is a mock implementation of ai.EmbeddingProvider.
type MockEmbeddingProvider struct {
	GenerateEmbeddingFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.GenerateEmbeddingFunc != nil {
		return m.GenerateEmbeddingFunc(ctx, text)
	}
	return nil, fmt.Errorf("GenerateEmbedding not configured")
}

// --- MockVisionProvider ---

// MockVisionProvider is a mock implementation of ai.VisionProvider.
type MockVisionProvider struct {
	AnalyzeImageFunc func(ctx context.Context, image []byte, prompt string) (string, error)
}

func (m *MockVisionProvider) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if m.AnalyzeImageFunc != nil {
		return m.AnalyzeImageFunc(ctx, image, prompt)
	}
	return "", fmt.Errorf("AnalyzeImage not configured")
}

// --- MockChatProvider ---

// MockChatProvider is a mock implementation of ai.ChatProvider.
type MockChatProvider struct {
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (m *MockChatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt)
	}
	return "", fmt.Errorf("Complete not configured")
}

// --- MockSpeechSynthesizer ---

// MockSpeechSynthesizer is a mock implementation of ai.SpeechSynthesizer.
type MockSpeechSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)
}

func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return nil, fmt.Errorf("Synthesize not configured")
}

// --- MockFrameSource ---

// MockFrameSource satisfies service.FrameSource.
type MockFrameSource struct {
	CaptureFrameFunc func(ctx context.Context) ([]byte, error)
}

func (m *MockFrameSource) CaptureFrame(ctx context.Context) ([]byte, error) {
	if m.CaptureFrameFunc != nil {
		return m.CaptureFrameFunc(ctx)
	}
	return nil, fmt.Errorf("CaptureFrame not configured")
}

// --- MockPlayer ---

// MockPlayer satisfies speech.Player.
type MockPlayer struct {
	PlayFunc func(ctx context.Context, audio []byte) error
}

func (m *MockPlayer) Play(ctx context.Context, audio []byte) error {
	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, audio)
	}
	return fmt.Errorf("Play not configured")
}

// --- MockRecipeRepo ---

// MockRecipeRepo is a mock implementation of repository.RecipeRepo.
type MockRecipeRepo struct {
	GetRecipeByIDFunc                   func(recipeID uint) (*models.Recipe, error)
	ListRecipesFunc                     func(page, pageSize int) ([]models.Recipe, int64, error)
	GetRecipeStepsFunc                  func(recipeID uint) ([]models.RecipeStep, error)
	GetRecipeIngredientsFunc            func(recipeID uint) ([]models.Ingredient, error)
	GetStepsMissingEmbeddingsFunc       func(limit int) ([]models.RecipeStep, error)
	GetIngredientsMissingEmbeddingsFunc func(limit int) ([]models.Ingredient, error)
	UpdateStepEmbeddingFunc             func(stepID uint, embedding []float32) error
	UpdateIngredientEmbeddingFunc       func(ingredientID uint, embedding []float32) error
}

func (m *MockRecipeRepo) GetRecipeByID(recipeID uint) (*models.Recipe, error) {
	if m.GetRecipeByIDFunc != nil {
		return m.GetRecipeByIDFunc(recipeID)
	}
	return nil, fmt.Errorf("GetRecipeByID not configured")
}

func (m *MockRecipeRepo) ListRecipes(page, pageSize int) ([]models.Recipe, int64, error) {
	if m.ListRecipesFunc != nil {
		return m.ListRecipesFunc(page, pageSize)
	}
	return nil, 0, fmt.Errorf("ListRecipes not configured")
}

func (m *MockRecipeRepo) GetRecipeSteps(recipeID uint) ([]models.RecipeStep, error) {
	if m.GetRecipeStepsFunc != nil {
		return m.GetRecipeStepsFunc(recipeID)
	}
	return nil, fmt.Errorf("GetRecipeSteps not configured")
}

func (m *MockRecipeRepo) GetRecipeIngredients(recipeID uint) ([]models.Ingredient, error) {
	if m.GetRecipeIngredientsFunc != nil {
		return m.GetRecipeIngredientsFunc(recipeID)
	}
	return nil, fmt.Errorf("GetRecipeIngredients not configured")
}

func (m *MockRecipeRepo) GetStepsMissingEmbeddings(limit int) ([]models.RecipeStep, error) {
	if m.GetStepsMissingEmbeddingsFunc != nil {
		return m.GetStepsMissingEmbeddingsFunc(limit)
	}
	return nil, fmt.Errorf("GetStepsMissingEmbeddings not configured")
}

func (m *MockRecipeRepo) GetIngredientsMissingEmbeddings(limit int) ([]models.Ingredient, error) {
	if m.GetIngredientsMissingEmbeddingsFunc != nil {
		return m.GetIngredientsMissingEmbeddingsFunc(limit)
	}
	return nil, fmt.Errorf("GetIngredientsMissingEmbeddings not configured")
}

func (m *MockRecipeRepo) UpdateStepEmbedding(stepID uint, embedding []float32) error {
	if m.UpdateStepEmbeddingFunc != nil {
		return m.UpdateStepEmbeddingFunc(stepID, embedding)
	}
	return fmt.Errorf("UpdateStepEmbedding not configured")
}

func (m *MockRecipeRepo) UpdateIngredientEmbedding(ingredientID uint, embedding []float32) error {
	if m.UpdateIngredientEmbeddingFunc != nil {
		return m.UpdateIngredientEmbeddingFunc(ingredientID, embedding)
	}
	return fmt.Errorf("UpdateIngredientEmbedding not configured")
}

// --- MockVectorSearcher ---

// MockVectorSearcher is a mock implementation of repository.VectorSearcher.
type MockVectorSearcher struct {
	SimilarStepsFunc       func(embedding []float32, threshold float64, limit int) ([]repository.StepMatch, error)
	SimilarIngredientsFunc func(embedding []float32, threshold float64, limit int) ([]repository.IngredientMatch, error)
}

func (m *MockVectorSearcher) SimilarSteps(embedding []float32, threshold float64, limit int) ([]repository.StepMatch, error) {
	if m.SimilarStepsFunc != nil {
		return m.SimilarStepsFunc(embedding, threshold, limit)
	}
	return nil, fmt.Errorf("SimilarSteps not configured")
}

func (m *MockVectorSearcher) SimilarIngredients(embedding []float32, threshold float64, limit int) ([]repository.IngredientMatch, error) {
	if m.SimilarIngredientsFunc != nil {
		return m.SimilarIngredientsFunc(embedding, threshold, limit)
	}
	return nil, fmt.Errorf("SimilarIngredients not configured")
}

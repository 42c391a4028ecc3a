package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/misolabs/miso-api/internal/models"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetRecipeOK(t *testing.T) {
	repo := &testutil.MockRecipeRepo{
		GetRecipeByIDFunc: func(recipeID uint) (*models.Recipe, error) {
			if recipeID != 1 {
				t.Errorf("recipeID = %d, want 1", recipeID)
			}
			return testutil.TestRecipe(), nil
		},
	}
	h := NewRecipeHandler(repo)

	r := gin.New()
	r.GET("/recipes/:recipe_id", h.GetRecipe)

	req := httptest.NewRequest("GET", "/recipes/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		Recipe models.Recipe `json:"recipe"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Recipe.Title != "Classic Miso Soup" {
		t.Errorf("title = %q", body.Recipe.Title)
	}
	if len(body.Recipe.Steps) != 4 {
		t.Errorf("steps = %d, want 4", len(body.Recipe.Steps))
	}
}

func TestGetRecipeInvalidID(t *testing.T) {
	h := NewRecipeHandler(&testutil.MockRecipeRepo{})

	r := gin.New()
	r.GET("/recipes/:recipe_id", h.GetRecipe)

	req := httptest.NewRequest("GET", "/recipes/not-a-number", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSearchOK(t *testing.T) {
	embedder := &testutil.MockEmbeddingProvider{
		GenerateEmbeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			if text != "something with tofu" {
				t.Errorf("embedded %q", text)
			}
			return []float32{1, 0, 0}, nil
		},
	}
	searcher := &testutil.MockVectorSearcher{
		SimilarStepsFunc: func(embedding []float32, threshold float64, limit int) ([]repository.StepMatch, error) {
			return []repository.StepMatch{{StepNumber: 1, Instruction: "Dice the tofu into small cubes", Similarity: 0.91}}, nil
		},
		SimilarIngredientsFunc: func(embedding []float32, threshold float64, limit int) ([]repository.IngredientMatch, error) {
			return []repository.IngredientMatch{{Name: "tofu", Similarity: 0.88}}, nil
		},
	}
	h := NewSearchHandler(testutil.TestConfig(), embedder, searcher)

	r := gin.New()
	r.POST("/search", h.Search)

	body, _ := json.Marshal(SearchRequest{Query: "something with tofu"})
	req := httptest.NewRequest("POST", "/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Steps       []repository.StepMatch       `json:"steps"`
		Ingredients []repository.IngredientMatch `json:"ingredients"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Steps) != 1 || resp.Steps[0].Similarity != 0.91 {
		t.Errorf("steps = %+v", resp.Steps)
	}
	if len(resp.Ingredients) != 1 || resp.Ingredients[0].Name != "tofu" {
		t.Errorf("ingredients = %+v", resp.Ingredients)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	h := NewSearchHandler(testutil.TestConfig(), &testutil.MockEmbeddingProvider{}, &testutil.MockVectorSearcher{})

	r := gin.New()
	r.POST("/search", h.Search)

	req := httptest.NewRequest("POST", "/search", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

package testutil

import (
	"time"

	"github.com/lib/pq"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/models"
	"gorm.io/gorm"
)

// TestConfig returns a Config with default tunables and inline prompts,
// sufficient for any service-level test. Cache TTLs are long enough that
// entries never expire mid-test.
func TestConfig() *config.Config {
	return &config.Config{
		EnvVars: config.EnvVars{
			Port:             "8080",
			JwtSecretKey:     "test-secret",
			GuidanceProvider: "openai",
		},
		Tunables: config.Tunables{
			StepMatchThreshold:       0.7,
			IngredientMatchThreshold: 0.6,
			MatchLimit:               5,
			AnalysisHz:               1,
			CycleTimeout:             15 * time.Second,
			StepAdvanceGrace:         2 * time.Second,
			GuidanceSimilarityCutoff: 0.8,
			VisionCacheTTL:           10 * time.Second,
			EmbeddingCacheTTL:        5 * time.Minute,
			GuidanceCacheTTL:         30 * time.Second,
		},
		Prompts: TestPrompts(),
	}
}

// TestPrompts returns a minimal prompt set mirroring configs/prompts.yaml.
func TestPrompts() *config.Prompts {
	return &config.Prompts{
		Vision: config.VisionPrompts{
			Analyze: "Analyze this cooking scene and respond with JSON only.",
		},
		Guidance: config.GuidancePrompts{
			System: "Current step: {{.CurrentStep}}\nScene: {{.SceneSummary}}\n" +
				"Objects: {{.Objects}}\nActions: {{.Actions}}\nState: {{.CookingState}}\n" +
				"Relevant steps:\n{{.RelevantSteps}}\nRelevant ingredients:\n{{.RelevantIngredients}}\n" +
				"Completed: {{.CompletedSteps}}",
			User:     "Give one short spoken instruction for the cook.",
			Fallback: "Continue with: ",
		},
		Speech: config.SpeechPrompts{
			StepAnnounce:   "Step {{.StepNumber}}: {{.Instruction}}",
			RecipeComplete: "You've finished the recipe. Enjoy your meal!",
		},
	}
}

// TestRecipe creates a miso soup recipe with steps and ingredients
// populated, embeddings unset.
func TestRecipe() *models.Recipe {
	return &models.Recipe{
		Model:         gorm.Model{ID: 1},
		Title:         "Classic Miso Soup",
		Description:   "A simple dashi-based miso soup with tofu and wakame",
		Cuisine:       "Japanese",
		Difficulty:    "easy",
		EstimatedTime: 20,
		Tags:          pq.StringArray{"soup", "japanese", "quick"},
		Steps:         TestRecipeSteps(),
		Ingredients:   TestRecipeIngredients(),
	}
}

// TestRecipeSteps returns the steps of the miso soup fixture.
func TestRecipeSteps() []models.RecipeStep {
	return []models.RecipeStep{
		{
			Model:       gorm.Model{ID: 1},
			RecipeID:    1,
			StepNumber:  1,
			Instruction: "Dice the tofu into small cubes",
			Duration:    5,
			Ingredients: pq.StringArray{"tofu"},
		},
		{
			Model:       gorm.Model{ID: 2},
			RecipeID:    1,
			StepNumber:  2,
			Instruction: "Bring the dashi stock to a gentle simmer",
			Duration:    5,
			Temperature: 90,
			Ingredients: pq.StringArray{"dashi stock"},
		},
		{
			Model:       gorm.Model{ID: 3},
			RecipeID:    1,
			StepNumber:  3,
			Instruction: "Whisk the miso paste into the broth until dissolved",
			Duration:    2,
			Ingredients: pq.StringArray{"miso paste"},
		},
		{
			Model:       gorm.Model{ID: 4},
			RecipeID:    1,
			StepNumber:  4,
			Instruction: "Add the tofu and wakame, then serve",
			Duration:    3,
			Ingredients: pq.StringArray{"tofu", "wakame"},
		},
	}
}

// TestRecipeIngredients returns the ingredients of the miso soup fixture.
func TestRecipeIngredients() []models.Ingredient {
	return []models.Ingredient{
		{Model: gorm.Model{ID: 1}, RecipeID: 1, Name: "tofu", Quantity: "200", Unit: "g"},
		{Model: gorm.Model{ID: 2}, RecipeID: 1, Name: "dashi stock", Quantity: "4", Unit: "cups"},
		{Model: gorm.Model{ID: 3}, RecipeID: 1, Name: "miso paste", Quantity: "3", Unit: "tbsp"},
		{Model: gorm.Model{ID: 4}, RecipeID: 1, Name: "wakame", Quantity: "2", Unit: "tbsp"},
	}
}

// TestScene returns a high-confidence preparing-phase scene description.
func TestScene() ai.SceneDescription {
	return ai.SceneDescription{
		Objects:      []string{"tofu", "knife", "cutting board"},
		Actions:      []string{"dicing"},
		CookingTools: []string{"knife", "cutting board"},
		Ingredients:  []string{"tofu"},
		CookingState: ai.StatePreparing,
		Confidence:   0.9,
		Summary:      "Dicing tofu on a cutting board",
	}
}

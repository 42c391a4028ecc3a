package models

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Recipe is the model for a recipe.
type Recipe struct {
	gorm.Model
	Title         string `gorm:"index"`
	Description   string
	Cuisine       string
	Difficulty    string
	EstimatedTime int            // minutes
	Featured      bool           `gorm:"default:false"`
	Tags          pq.StringArray `gorm:"type:text[]"`
	ImageURL      string
	Steps         []RecipeStep  `gorm:"foreignKey:RecipeID"`
	Ingredients   []Ingredient  `gorm:"foreignKey:RecipeID"`
}

// RecipeStep is a single instruction within a recipe. StepNumber is
// 1-based and dense within a recipe. Embedding holds a precomputed
// pgvector literal for similarity search, or nil if not yet generated.
type RecipeStep struct {
	gorm.Model
	RecipeID    uint   `gorm:"index:idx_recipe_step,unique"`
	StepNumber  int    `gorm:"index:idx_recipe_step,unique"`
	Instruction string
	Duration    int            // minutes, 0 if unspecified
	Temperature int            // celsius, 0 if unspecified
	Ingredients pq.StringArray `gorm:"type:text[]"` // ingredient names involved in this step
	Embedding   *string        `gorm:"type:vector(1536)" json:"-"`
}

// Ingredient is a recipe ingredient with an optional precomputed embedding.
type Ingredient struct {
	gorm.Model
	RecipeID  uint `gorm:"index"`
	Name      string
	Quantity  string
	Unit      string
	Embedding *string `gorm:"type:vector(1536)" json:"-"`
}

// EmbeddingVector parses the step's stored pgvector literal into floats.
// Returns nil when no embedding is stored or the literal is malformed.
func (s *RecipeStep) EmbeddingVector() []float32 {
	return ParseVectorLiteral(s.Embedding)
}

// EmbeddingVector parses the ingredient's stored pgvector literal.
func (i *Ingredient) EmbeddingVector() []float32 {
	return ParseVectorLiteral(i.Embedding)
}

// VectorLiteral formats a float32 slice as a pgvector literal string:
// [0.1,0.2,0.3]
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseVectorLiteral parses a pgvector literal back into a float32 slice.
// Returns nil for nil, empty, or malformed input.
func ParseVectorLiteral(lit *string) []float32 {
	if lit == nil {
		return nil
	}
	s := strings.TrimSpace(*lit)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

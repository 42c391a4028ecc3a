package models

import "testing"

func TestVectorLiteralRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3}
	lit := VectorLiteral(vec)
	if lit != "[0.25,-1.5,3]" {
		t.Errorf("literal = %q", lit)
	}

	parsed := ParseVectorLiteral(&lit)
	if len(parsed) != 3 {
		t.Fatalf("parsed length = %d, want 3", len(parsed))
	}
	for i := range vec {
		if parsed[i] != vec[i] {
			t.Errorf("parsed[%d] = %v, want %v", i, parsed[i], vec[i])
		}
	}
}

func TestParseVectorLiteralMalformed(t *testing.T) {
	for _, s := range []string{"", "[", "[]", "[a,b]", "1,2,3"} {
		s := s
		if got := ParseVectorLiteral(&s); got != nil {
			t.Errorf("ParseVectorLiteral(%q) = %v, want nil", s, got)
		}
	}
	if got := ParseVectorLiteral(nil); got != nil {
		t.Errorf("ParseVectorLiteral(nil) = %v, want nil", got)
	}
}

func TestStepEmbeddingVector(t *testing.T) {
	lit := "[1,0,0]"
	step := RecipeStep{Embedding: &lit}
	vec := step.EmbeddingVector()
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("EmbeddingVector = %v", vec)
	}

	var none RecipeStep
	if none.EmbeddingVector() != nil {
		t.Error("step without embedding should yield nil vector")
	}
}

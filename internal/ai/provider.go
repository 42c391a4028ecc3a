package ai

import "context"

// CookingState describes the broad phase of the cooking scene.
type CookingState string

const (
	StatePreparing CookingState = "preparing"
	StateCooking   CookingState = "cooking"
	StatePlating   CookingState = "plating"
	StateUnknown   CookingState = "unknown"
)

// SceneDescription is the structured result of analyzing one camera frame.
// It is produced fresh per analysis cycle and never persisted.
type SceneDescription struct {
	Objects      []string     `json:"objects"`
	Actions      []string     `json:"actions"`
	CookingTools []string     `json:"cookingTools"`
	Ingredients  []string     `json:"ingredients"`
	CookingState CookingState `json:"cookingState"`
	Confidence   float64      `json:"confidence"`
	Summary      string       `json:"summary"`
}

// EmbeddingProvider handles vector embeddings.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VisionProvider sends an image plus an instruction prompt to a multimodal
// model and returns its raw text response. Parsing the response into a
// SceneDescription is the vision service's job, not the provider's.
type VisionProvider interface {
	AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error)
}

// ChatProvider handles text completion for guidance synthesis.
type ChatProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SpeechSynthesizer converts text to playable audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// UpstreamError marks a failure of a remote AI service: the call errored
// or returned an unusable payload. Callers decide whether to propagate,
// fall back, or absorb it.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Service + " upstream error: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

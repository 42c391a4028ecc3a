package service

import (
	"context"
	"fmt"
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"go.uber.org/zap"
)

// GuidanceService synthesizes the short spoken instruction for one
// analysis cycle. It never returns an error: any upstream failure is
// absorbed into a deterministic fallback built from the current step.
type GuidanceService struct {
	Cfg      *config.Config
	Provider ai.ChatProvider
}

// NewGuidanceService creates a new GuidanceService.
func NewGuidanceService(cfg *config.Config, provider ai.ChatProvider) *GuidanceService {
	return &GuidanceService{Cfg: cfg, Provider: provider}
}

// Generate builds the guidance prompt from the current step, the scene,
// completed steps, and the retrieved matches, and returns the model's
// trimmed response. On any failure or empty response it falls back to
// "Continue with: <instruction>". The result is masked for profanity
// before it can reach the speech engine.
func (s *GuidanceService) Generate(ctx context.Context, currentStep string, scene ai.SceneDescription, completedSteps []string, retrieval *RetrievalContext) string {
	fallback := s.Cfg.Prompts.Guidance.Fallback + currentStep

	systemPrompt, err := config.RenderPrompt(s.Cfg.Prompts.Guidance.System, map[string]interface{}{
		"CurrentStep":         currentStep,
		"SceneSummary":        scene.Summary,
		"Objects":             strings.Join(scene.Objects, ", "),
		"Actions":             strings.Join(scene.Actions, ", "),
		"CookingState":        string(scene.CookingState),
		"RelevantSteps":       formatStepMatches(retrieval),
		"RelevantIngredients": formatIngredientMatches(retrieval),
		"CompletedSteps":      strings.Join(completedSteps, "; "),
	})
	if err != nil {
		logger.Get().Error("failed to render guidance prompt", zap.Error(err))
		return fallback
	}

	response, err := s.Provider.Complete(ctx, systemPrompt, s.Cfg.Prompts.Guidance.User)
	if err != nil {
		logger.Get().Warn("guidance generation failed, using fallback",
			zap.Error(err),
			zap.String("step", currentStep),
		)
		return fallback
	}

	guidance := strings.TrimSpace(response)
	if guidance == "" {
		return fallback
	}
	return goaway.Censor(guidance)
}

func formatStepMatches(retrieval *RetrievalContext) string {
	if retrieval == nil || len(retrieval.Steps) == 0 {
		return "(none)"
	}
	lines := make([]string, len(retrieval.Steps))
	for i, m := range retrieval.Steps {
		lines[i] = fmt.Sprintf("• Step %d: %s (similarity: %.2f)", m.StepNumber, m.Instruction, m.Similarity)
	}
	return strings.Join(lines, "\n")
}

func formatIngredientMatches(retrieval *RetrievalContext) string {
	if retrieval == nil || len(retrieval.Ingredients) == 0 {
		return "(none)"
	}
	lines := make([]string, len(retrieval.Ingredients))
	for i, m := range retrieval.Ingredients {
		lines[i] = fmt.Sprintf("• %s (similarity: %.2f)", m.Name, m.Similarity)
	}
	return strings.Join(lines, "\n")
}

package service

import (
	"context"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/cache"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/util"
	"go.uber.org/zap"
)

// fallbackConfidence is assigned when the model's response could not be
// parsed and the scene is reported as unknown.
const fallbackConfidence = 0.3

// fallbackSummaryLimit caps how much raw model output is preserved as the
// fallback summary.
const fallbackSummaryLimit = 160

// VisionService analyzes camera frames into SceneDescriptions. The pipeline
// must always receive a SceneDescription: parse failures degrade to a
// low-confidence fallback instead of erroring.
type VisionService struct {
	Cfg      *config.Config
	Provider ai.VisionProvider
	cache    *cache.Cache[ai.SceneDescription]
}

// NewVisionService creates a new VisionService.
func NewVisionService(cfg *config.Config, provider ai.VisionProvider) *VisionService {
	return &VisionService{
		Cfg:      cfg,
		Provider: provider,
		cache:    cache.New[ai.SceneDescription](cfg.Tunables.VisionCacheTTL),
	}
}

// AnalyzeFrame sends a JPEG frame to the vision model and returns the
// parsed scene. Identical frames within the cache TTL are not reprocessed;
// the cache key is a cheap prefix fingerprint, so rare collisions are
// tolerated. Network or API failure is returned as an error; an unusable
// response body is not.
func (s *VisionService) AnalyzeFrame(ctx context.Context, frame []byte) (ai.SceneDescription, error) {
	key := cache.FrameKey(frame)
	if scene, ok := s.cache.Get(key); ok {
		return scene, nil
	}

	raw, err := s.Provider.AnalyzeImage(ctx, frame, s.Cfg.Prompts.Vision.Analyze)
	if err != nil {
		return ai.SceneDescription{}, err
	}

	scene := ParseSceneDescription(raw)
	s.cache.Set(key, scene, 0)
	return scene, nil
}

// ParseSceneDescription extracts a SceneDescription from free-form model
// output. It strips markdown code fences, slices from the first '{' to the
// last '}', and attempts a JSON repair pass before giving up. On failure
// it returns the fallback scene: empty lists, unknown state, low
// confidence, and a truncated excerpt of the raw text as the summary.
func ParseSceneDescription(raw string) ai.SceneDescription {
	cleaned := stripCodeFences(raw)

	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}

	var scene ai.SceneDescription
	err := util.DeserializeFromJSONString(cleaned, &scene)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr == nil {
			err = util.DeserializeFromJSONString(repaired, &scene)
		}
	}
	if err != nil {
		logger.Get().Warn("unparseable vision response, using fallback scene",
			zap.String("raw", truncateText(raw, fallbackSummaryLimit)),
		)
		return fallbackScene(raw)
	}

	return normalizeScene(scene)
}

// normalizeScene fills defaults for fields the model omitted.
func normalizeScene(scene ai.SceneDescription) ai.SceneDescription {
	if scene.Objects == nil {
		scene.Objects = []string{}
	}
	if scene.Actions == nil {
		scene.Actions = []string{}
	}
	if scene.CookingTools == nil {
		scene.CookingTools = []string{}
	}
	if scene.Ingredients == nil {
		scene.Ingredients = []string{}
	}
	switch scene.CookingState {
	case ai.StatePreparing, ai.StateCooking, ai.StatePlating:
	default:
		scene.CookingState = ai.StateUnknown
	}
	if scene.Confidence < 0 || scene.Confidence > 1 {
		scene.Confidence = fallbackConfidence
	}
	if scene.Summary == "" {
		scene.Summary = "Unable to describe the scene"
	}
	return scene
}

func fallbackScene(raw string) ai.SceneDescription {
	summary := strings.TrimSpace(truncateText(raw, fallbackSummaryLimit))
	if summary == "" {
		summary = "Unable to analyze scene"
	}
	return ai.SceneDescription{
		Objects:      []string{},
		Actions:      []string{},
		CookingTools: []string{},
		Ingredients:  []string{},
		CookingState: ai.StateUnknown,
		Confidence:   fallbackConfidence,
		Summary:      summary,
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	EnvVars  EnvVars  `json:"env"`
	Tunables Tunables `json:"tunables"`
	Prompts  *Prompts `json:"-"`
}

// EnvVars holds environment variables required by the application.
// Fields tagged `optional:"true"` are skipped by CheckConfigEnvFields.
type EnvVars struct {
	Port               string `env:"PORT" envDefault:"8080"`
	DatabaseUrl        string `env:"DATABASE_URL"`
	JwtSecretKey       string `env:"JWT_SECRET_KEY"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY" optional:"true"`
	GuidanceProvider   string `env:"GUIDANCE_PROVIDER" envDefault:"openai" optional:"true"`
	AWSRegion          string `env:"AWS_REGION" optional:"true"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" optional:"true"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" optional:"true"`
	FrameArchiveBucket string `env:"FRAME_ARCHIVE_BUCKET" optional:"true"`
}

// Tunables centralizes the similarity thresholds, result caps, cache TTLs,
// and timing constants the guidance pipeline depends on. The mobile client
// this replaces scattered these across call sites with differing ad hoc
// values; they are deliberately configuration here, not fixed law.
type Tunables struct {
	// StepMatchThreshold is the minimum cosine similarity for a recipe
	// step to count as relevant context.
	StepMatchThreshold float64 `env:"STEP_MATCH_THRESHOLD" envDefault:"0.7"`

	// IngredientMatchThreshold is the minimum cosine similarity for an
	// ingredient to count as relevant context.
	IngredientMatchThreshold float64 `env:"INGREDIENT_MATCH_THRESHOLD" envDefault:"0.6"`

	// MatchLimit caps each retrieval result list.
	MatchLimit int `env:"MATCH_LIMIT" envDefault:"5"`

	// AnalysisHz is how many analysis cycles run per second. The scheduler
	// clamps this to [0.1, 5].
	AnalysisHz float64 `env:"ANALYSIS_HZ" envDefault:"1"`

	// CycleTimeout bounds one full capture-vision-retrieval-guidance cycle.
	CycleTimeout time.Duration `env:"CYCLE_TIMEOUT" envDefault:"15s"`

	// StepAdvanceGrace is the pause between announcing a new step and
	// restarting camera analysis, so the announcement can begin speaking.
	StepAdvanceGrace time.Duration `env:"STEP_ADVANCE_GRACE" envDefault:"2s"`

	// GuidanceSimilarityCutoff is the edit-distance ratio above which two
	// guidance utterances are treated as the same thing said twice.
	GuidanceSimilarityCutoff float64 `env:"GUIDANCE_SIMILARITY_CUTOFF" envDefault:"0.8"`

	// Cache TTLs, per staleness tolerance of each remote call.
	VisionCacheTTL    time.Duration `env:"VISION_CACHE_TTL" envDefault:"10s"`
	EmbeddingCacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" envDefault:"5m"`
	GuidanceCacheTTL  time.Duration `env:"GUIDANCE_CACHE_TTL" envDefault:"30s"`
}

// LoadConfig parses environment variables into the Config struct.
func LoadConfig() (*Config, error) {
	var config Config
	if err := env.Parse(&config.EnvVars); err != nil {
		return nil, err
	}
	if err := env.Parse(&config.Tunables); err != nil {
		return nil, err
	}
	if err := config.Tunables.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects tunable values outside their working ranges.
func (t Tunables) Validate() error {
	if !govalidator.InRangeFloat64(t.StepMatchThreshold, 0, 1) {
		return fmt.Errorf("STEP_MATCH_THRESHOLD %v out of range [0,1]", t.StepMatchThreshold)
	}
	if !govalidator.InRangeFloat64(t.IngredientMatchThreshold, 0, 1) {
		return fmt.Errorf("INGREDIENT_MATCH_THRESHOLD %v out of range [0,1]", t.IngredientMatchThreshold)
	}
	if !govalidator.InRangeFloat64(t.GuidanceSimilarityCutoff, 0, 1) {
		return fmt.Errorf("GUIDANCE_SIMILARITY_CUTOFF %v out of range [0,1]", t.GuidanceSimilarityCutoff)
	}
	if t.MatchLimit <= 0 {
		return fmt.Errorf("MATCH_LIMIT must be positive, got %d", t.MatchLimit)
	}
	if t.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT must be positive, got %v", t.CycleTimeout)
	}
	return nil
}

// FrameArchiveEnabled reports whether captured frames should be uploaded
// to S3 for later review.
func (c *Config) FrameArchiveEnabled() bool {
	return c.EnvVars.FrameArchiveBucket != "" && c.EnvVars.AWSRegion != ""
}

// CheckConfigEnvFields validates that all required EnvVars fields are set.
func (c *Config) CheckConfigEnvFields() error {
	return checkFieldsRecursive(reflect.ValueOf(c.EnvVars))
}

func checkFieldsRecursive(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := v.Type().Field(i)
		if fieldType.Tag.Get("optional") == "true" {
			continue
		}
		if isZeroValue(field) {
			return fmt.Errorf("$%s must be set", fieldType.Name)
		}
		if field.Kind() == reflect.Struct {
			if err := checkFieldsRecursive(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func isZeroValue(v reflect.Value) bool {
	return v.Interface() == reflect.Zero(v.Type()).Interface()
}

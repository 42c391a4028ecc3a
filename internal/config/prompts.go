package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// VisionPrompts holds the scene-analysis instruction sent with every frame.
type VisionPrompts struct {
	Analyze string `yaml:"analyze"`
}

// GuidancePrompts holds the templates used to synthesize spoken guidance.
type GuidancePrompts struct {
	System   string `yaml:"system"`
	User     string `yaml:"user"`
	Fallback string `yaml:"fallback"`
}

// SpeechPrompts holds spoken boilerplate such as step announcements.
type SpeechPrompts struct {
	StepAnnounce   string `yaml:"step_announce"`
	RecipeComplete string `yaml:"recipe_complete"`
}

// Prompts is the top-level prompt configuration loaded from YAML.
type Prompts struct {
	Vision   VisionPrompts   `yaml:"vision"`
	Guidance GuidancePrompts `yaml:"guidance"`
	Speech   SpeechPrompts   `yaml:"speech"`
}

// LoadPrompts reads and parses a YAML prompt configuration file.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var prompts Prompts
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts YAML: %w", err)
	}

	return &prompts, nil
}

// RenderPrompt executes Go template interpolation on a prompt string.
// The data map provides values for placeholders like {{.CurrentStep}} and
// {{.SceneSummary}}.
func RenderPrompt(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

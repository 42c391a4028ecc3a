package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"

// GeminiVisionProvider implements VisionProvider using Gemini Flash over
// the REST API.
type GeminiVisionProvider struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewGeminiVisionProvider creates a vision provider backed by
// gemini-2.0-flash.
func NewGeminiVisionProvider(apiKey string) *GeminiVisionProvider {
	return &GeminiVisionProvider{
		apiKey: apiKey,
		model:  "gemini-2.0-flash",
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeImage sends a JPEG frame plus the instruction prompt to Gemini
// and returns the raw text of the first candidate.
func (p *GeminiVisionProvider) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", &UpstreamError{Service: "vision", Err: fmt.Errorf("empty image")}
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: geminiGenConfig{
			Temperature:     0.4,
			MaxOutputTokens: 1000,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vision request: %w", err)
	}

	url := p.baseURL
	if url == "" {
		url = fmt.Sprintf(geminiEndpoint, p.model, p.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Service: "vision", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Service: "vision", Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &UpstreamError{Service: "vision", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if result.Error.Message != "" {
		return "", &UpstreamError{Service: "vision", Err: fmt.Errorf("gemini error: %s", result.Error.Message)}
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", &UpstreamError{Service: "vision", Err: fmt.Errorf("no candidates in response")}
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

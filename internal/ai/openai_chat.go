package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/misolabs/miso-api/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIChatProvider implements ChatProvider using gpt-4o-mini. Guidance
// utterances are short, so the cheap model is the default.
type OpenAIChatProvider struct {
	apiKey    string
	model     string
	maxTokens int
}

// NewOpenAIChatProvider creates a new chat provider for guidance synthesis.
func NewOpenAIChatProvider(apiKey string) *OpenAIChatProvider {
	return &OpenAIChatProvider{
		apiKey:    apiKey,
		model:     openai.GPT4oMini,
		maxTokens: 200,
	}
}

// Complete sends the system and user prompts and returns the model's text
// response.
func (p *OpenAIChatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	client := openai.NewClient(p.apiKey)
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: 0.7,
		})
		if err == nil {
			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return "", &UpstreamError{Service: "chat", Err: errors.New("API returned an empty message")}
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyOpenAIError(err)
		if !shouldRetry {
			return "", &UpstreamError{Service: "chat", Err: err}
		}

		logger.Get().Warn("chat API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(waitTime * time.Duration(i+1)):
			}
		}
	}

	return "", &UpstreamError{Service: "chat", Err: fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr)}
}

// classifyOpenAIError determines whether an OpenAI API error is retryable.
func classifyOpenAIError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return true, 2 * time.Second
		case 500, 502, 503:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/misolabs/miso-api/internal/logger"
	"go.uber.org/zap"
)

// AnthropicChatProvider implements ChatProvider using Claude. Selected by
// setting GUIDANCE_PROVIDER=anthropic; Haiku keeps per-cycle latency and
// cost low for utterances this short.
type AnthropicChatProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicChatProvider creates a Claude-backed guidance provider.
func NewAnthropicChatProvider(apiKey string) *AnthropicChatProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicChatProvider{
		client: client,
		model:  anthropic.Model("claude-haiku-4-5-20251001"),
	}
}

// Complete sends the system and user prompts to Claude and returns the
// concatenated text blocks of the response.
func (p *AnthropicChatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(userPrompt)},
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", &UpstreamError{Service: "chat", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &UpstreamError{Service: "chat", Err: errors.New("no text content in Claude response")}
	}
	return text, nil
}

// createMessageWithRetry wraps the Claude API call with exponential backoff.
func (p *AnthropicChatProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyAnthropicError(err)
		if !shouldRetry {
			return nil, err
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime * time.Duration(i+1)):
		}
	}

	return nil, lastErr
}

// classifyAnthropicError determines whether to retry and the base wait duration.
func classifyAnthropicError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/misolabs/miso-api/internal/cache"
	"github.com/misolabs/miso-api/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// EmbeddingProviderImpl implements EmbeddingProvider using OpenAI embeddings.
type EmbeddingProviderImpl struct {
	apiKey string
	model  openai.EmbeddingModel
}

// NewEmbeddingProvider creates a new embedding provider using
// text-embedding-3-small by default.
func NewEmbeddingProvider(apiKey string) *EmbeddingProviderImpl {
	return &EmbeddingProviderImpl{
		apiKey: apiKey,
		model:  openai.SmallEmbedding3,
	}
}

// GenerateEmbedding produces a vector embedding for the given text. Exactly
// one input string is sent per call and its single output vector returned.
func (p *EmbeddingProviderImpl) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("embedding text is empty")
	}

	client := openai.NewClient(p.apiKey)
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: p.model,
			Input: []string{text},
		})
		if err == nil {
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, &UpstreamError{Service: "embedding", Err: errors.New("API returned empty result")}
			}
			return resp.Data[0].Embedding, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyOpenAIError(err)
		if !shouldRetry {
			return nil, &UpstreamError{Service: "embedding", Err: err}
		}

		logger.Get().Warn("embedding API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime * time.Duration(i+1)):
			}
		}
	}

	return nil, &UpstreamError{Service: "embedding", Err: fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr)}
}

// CachedEmbeddingProvider wraps an EmbeddingProvider with a TTL cache
// keyed on the literal input text. Embeddings are deterministic for a
// given model, so the TTL can be long.
type CachedEmbeddingProvider struct {
	inner EmbeddingProvider
	cache *cache.Cache[[]float32]
}

// NewCachedEmbeddingProvider wraps inner with a cache using the given TTL.
func NewCachedEmbeddingProvider(inner EmbeddingProvider, ttl time.Duration) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{
		inner: inner,
		cache: cache.New[[]float32](ttl),
	}
}

// GenerateEmbedding returns the cached vector for text when present,
// otherwise calls through and caches the result.
func (p *CachedEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := p.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(text, vec, 0)
	return vec, nil
}

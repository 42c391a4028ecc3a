package ai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITTSProvider implements SpeechSynthesizer using the OpenAI speech
// endpoint, returning MP3 audio bytes.
type OpenAITTSProvider struct {
	apiKey string
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	speed  float64
}

// NewOpenAITTSProvider creates a new text-to-speech provider. tts-1 with
// the nova voice keeps latency low enough for the analysis cadence.
func NewOpenAITTSProvider(apiKey string) *OpenAITTSProvider {
	return &OpenAITTSProvider{
		apiKey: apiKey,
		model:  openai.TTSModel1,
		voice:  openai.VoiceNova,
		speed:  1.0,
	}
}

// Synthesize converts text to MP3 audio.
func (p *OpenAITTSProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("speech text is empty")
	}

	client := openai.NewClient(p.apiKey)
	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          p.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          p.speed,
	})
	if err != nil {
		return nil, &UpstreamError{Service: "tts", Err: err}
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &UpstreamError{Service: "tts", Err: err}
	}
	if len(audio) == 0 {
		return nil, &UpstreamError{Service: "tts", Err: errors.New("API returned empty audio")}
	}
	return audio, nil
}

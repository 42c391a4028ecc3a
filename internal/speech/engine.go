package speech

import (
	"context"
	"sync"

	"github.com/misolabs/miso-api/internal/ai"
	"github.com/misolabs/miso-api/internal/logger"
	"go.uber.org/zap"
)

// Player plays one synthesized clip to completion. The WebSocket session
// implements it by pushing audio to the connected client; tests swap in a
// recorder.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Engine speaks one utterance at a time. Each Speak call supersedes the
// previous one: the old utterance is cancelled and, if it is still
// synthesizing, its audio is discarded rather than played. Sequence ids
// are monotonic so a superseded utterance can never play after its
// replacement.
type Engine struct {
	Synth  ai.SpeechSynthesizer
	Player Player

	mu       sync.Mutex
	seq      uint64
	speaking bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates a new speech engine.
func NewEngine(synth ai.SpeechSynthesizer, player Player) *Engine {
	return &Engine{Synth: synth, Player: player}
}

// Speak synthesizes and plays the text, cancelling whatever was speaking
// before. It returns immediately; synthesis and playback run in the
// background. Synthesis and playback failures are absorbed: guidance is
// advisory and the next cycle brings a fresh utterance.
func (e *Engine) Speak(ctx context.Context, text string) uint64 {
	e.mu.Lock()
	e.seq++
	id := e.seq
	if e.cancel != nil {
		e.cancel()
	}
	prevDone := e.done
	utterCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	done := make(chan struct{})
	e.done = done
	e.speaking = true
	e.mu.Unlock()

	go func() {
		if prevDone != nil {
			<-prevDone // let the superseded utterance wind down first
		}
		e.run(utterCtx, id, text, done)
	}()
	return id
}

// Stop cancels the current utterance, if any, and waits for it to wind
// down. Safe to call redundantly.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.seq++ // invalidate any in-flight utterance
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.speaking = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// IsSpeaking reports whether an utterance is being synthesized or played.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

func (e *Engine) run(ctx context.Context, id uint64, text string, done chan struct{}) {
	defer close(done)
	defer e.finish(id)

	audio, err := e.Synth.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			logger.Get().Warn("speech synthesis failed", zap.Error(err), zap.String("text", text))
		}
		return
	}
	if ctx.Err() != nil || !e.isCurrent(id) {
		return // superseded while synthesizing
	}
	if err := e.Player.Play(ctx, audio); err != nil && ctx.Err() == nil {
		logger.Get().Warn("speech playback failed", zap.Error(err))
	}
}

func (e *Engine) isCurrent(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq == id
}

func (e *Engine) finish(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq == id {
		e.speaking = false
		e.cancel = nil
		e.done = nil
	}
}

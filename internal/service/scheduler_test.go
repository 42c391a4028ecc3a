package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/testutil"
)

func TestClampHz(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.01, 0.1},
		{0.1, 0.1},
		{1, 1},
		{5, 5},
		{100, 5},
		{-3, 0.1},
	}
	for _, c := range cases {
		if got := clampHz(c.in); got != c.want {
			t.Errorf("clampHz(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

// newTestScheduler wires a scheduler whose mocked pipeline succeeds
// immediately unless a test overrides a provider.
func newTestScheduler(cfg *config.Config, vision *testutil.MockVisionProvider) *AnalysisScheduler {
	embedder := &testutil.MockEmbeddingProvider{
		GenerateEmbeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	searcher := &testutil.MockVectorSearcher{
		SimilarStepsFunc: func(embedding []float32, threshold float64, limit int) ([]repository.StepMatch, error) {
			return nil, nil
		},
		SimilarIngredientsFunc: func(embedding []float32, threshold float64, limit int) ([]repository.IngredientMatch, error) {
			return nil, nil
		},
	}
	chat := &testutil.MockChatProvider{
		CompleteFunc: func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
			return "Keep dicing the tofu", nil
		},
	}
	return NewAnalysisScheduler(cfg,
		NewVisionService(cfg, vision),
		NewRetrievalService(cfg, embedder, searcher),
		NewGuidanceService(cfg, chat),
	)
}

// frameCounter hands out a distinct frame per capture so the vision cache
// never short-circuits the provider.
func frameCounter() func(ctx context.Context) ([]byte, error) {
	var n int64
	return func(ctx context.Context) ([]byte, error) {
		i := atomic.AddInt64(&n, 1)
		frame := make([]byte, 80)
		frame[0] = byte(i)
		frame[1] = byte(i >> 8)
		return frame, nil
	}
}

func TestSchedulerDeliversResults(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Tunables.AnalysisHz = 5

	vision := &testutil.MockVisionProvider{
		AnalyzeImageFunc: func(ctx context.Context, image []byte, prompt string) (string, error) {
			return cleanSceneJSON, nil
		},
	}
	sched := newTestScheduler(cfg, vision)

	results := make(chan AnalysisResult, 16)
	sched.Start(&testutil.MockFrameSource{CaptureFrameFunc: frameCounter()},
		"Dice the tofu into small cubes", nil,
		func(r AnalysisResult) { results <- r })
	defer sched.Stop()

	select {
	case r := <-results:
		if r.Guidance != "Keep dicing the tofu" {
			t.Errorf("guidance = %q", r.Guidance)
		}
		if r.Scene.Summary == "" {
			t.Error("scene summary should be populated")
		}
		if r.Timestamp.IsZero() {
			t.Error("timestamp should be set")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no analysis result within 3s")
	}
}

func TestSchedulerSingleFlight(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Tunables.AnalysisHz = 5 // 200ms ticks

	var inFlight, maxInFlight, calls int64
	vision := &testutil.MockVisionProvider{
		AnalyzeImageFunc: func(ctx context.Context, image []byte, prompt string) (string, error) {
			cur := atomic.AddInt64(&inFlight, 1)
			defer atomic.AddInt64(&inFlight, -1)
			for {
				prev := atomic.LoadInt64(&maxInFlight)
				if cur <= prev || atomic.CompareAndSwapInt64(&maxInFlight, prev, cur) {
					break
				}
			}
			atomic.AddInt64(&calls, 1)

			// Slower than the tick interval, so ticks land mid-cycle.
			select {
			case <-time.After(300 * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return cleanSceneJSON, nil
		},
	}
	sched := newTestScheduler(cfg, vision)

	sched.Start(&testutil.MockFrameSource{CaptureFrameFunc: frameCounter()},
		"Dice the tofu into small cubes", nil,
		func(AnalysisResult) {})

	time.Sleep(1500 * time.Millisecond)
	sched.Stop()

	if got := atomic.LoadInt64(&maxInFlight); got != 1 {
		t.Errorf("max concurrent cycles = %d, want 1", got)
	}
	if got := atomic.LoadInt64(&calls); got < 2 {
		t.Errorf("vision calls = %d, want at least 2", got)
	}
}

func TestSchedulerStopDiscardsInFlightResult(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Tunables.AnalysisHz = 5

	started := make(chan struct{})
	var once sync.Once
	vision := &testutil.MockVisionProvider{
		AnalyzeImageFunc: func(ctx context.Context, image []byte, prompt string) (string, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	sched := newTestScheduler(cfg, vision)

	var delivered int64
	sched.Start(&testutil.MockFrameSource{CaptureFrameFunc: frameCounter()},
		"Dice the tofu into small cubes", nil,
		func(AnalysisResult) { atomic.AddInt64(&delivered, 1) })

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("cycle never started")
	}
	sched.Stop()

	if got := atomic.LoadInt64(&delivered); got != 0 {
		t.Errorf("results delivered after stop = %d, want 0", got)
	}
	if sched.IsAnalyzing() {
		t.Error("IsAnalyzing() should be false after Stop")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	cfg := testutil.TestConfig()
	sched := newTestScheduler(cfg, &testutil.MockVisionProvider{})

	sched.Stop()
	sched.Stop()

	sched.Start(&testutil.MockFrameSource{
		CaptureFrameFunc: func(ctx context.Context) ([]byte, error) {
			return nil, context.Canceled
		},
	}, "step", nil, func(AnalysisResult) {})
	sched.Stop()
	sched.Stop()
}

func TestSchedulerSkipsWhenNoFrame(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Tunables.AnalysisHz = 5

	var visionCalls int64
	vision := &testutil.MockVisionProvider{
		AnalyzeImageFunc: func(ctx context.Context, image []byte, prompt string) (string, error) {
			atomic.AddInt64(&visionCalls, 1)
			return cleanSceneJSON, nil
		},
	}
	sched := newTestScheduler(cfg, vision)

	var captures int64
	sched.Start(&testutil.MockFrameSource{
		CaptureFrameFunc: func(ctx context.Context) ([]byte, error) {
			atomic.AddInt64(&captures, 1)
			return nil, ErrNoFrame
		},
	}, "step", nil, func(AnalysisResult) {
		t.Error("no result expected without frames")
	})

	time.Sleep(600 * time.Millisecond)
	sched.Stop()

	if atomic.LoadInt64(&captures) == 0 {
		t.Error("frame source was never polled")
	}
	if got := atomic.LoadInt64(&visionCalls); got != 0 {
		t.Errorf("vision called %d times with no frames, want 0", got)
	}
}

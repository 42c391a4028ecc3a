package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/repository"
	"github.com/misolabs/miso-api/internal/service"
	"github.com/misolabs/miso-api/internal/speech"
	"github.com/misolabs/miso-api/internal/testutil"
)

const sessionSceneJSON = `{
	"objects": ["tofu", "knife"],
	"actions": ["dicing"],
	"cookingTools": ["cutting board"],
	"ingredients": ["tofu"],
	"cookingState": "preparing",
	"confidence": 0.9,
	"summary": "Dicing tofu on a cutting board"
}`

// eventLog collects session events and spoken audio.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	spoken []string
}

func (l *eventLog) listen(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Play(ctx context.Context, audio []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spoken = append(l.spoken, string(audio))
	return nil
}

func (l *eventLog) eventsOfType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) spokenLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.spoken...)
}

func fastConfig() *config.Config {
	cfg := testutil.TestConfig()
	cfg.Tunables.AnalysisHz = 5
	cfg.Tunables.StepAdvanceGrace = 30 * time.Millisecond
	return cfg
}

func newTestSession(t *testing.T, cfg *config.Config, guidanceText string, log *eventLog) *CookingSession {
	t.Helper()

	vision := &testutil.MockVisionProvider{
		AnalyzeImageFunc: func(ctx context.Context, image []byte, prompt string) (string, error) {
			return sessionSceneJSON, nil
		},
	}
	embedder := &testutil.MockEmbeddingProvider{
		GenerateEmbeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	chat := &testutil.MockChatProvider{
		CompleteFunc: func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
			return guidanceText, nil
		},
	}
	synth := &testutil.MockSpeechSynthesizer{
		SynthesizeFunc: func(ctx context.Context, text string) ([]byte, error) {
			return []byte(text), nil
		},
	}

	recipe := testutil.TestRecipe()
	searcher := repository.NewMemorySearcher(recipe.Steps, recipe.Ingredients)
	scheduler := service.NewAnalysisScheduler(cfg,
		service.NewVisionService(cfg, vision),
		service.NewRetrievalService(cfg, embedder, searcher),
		service.NewGuidanceService(cfg, chat),
	)
	engine := speech.NewEngine(synth, log)

	var frameN byte
	frames := &testutil.MockFrameSource{
		CaptureFrameFunc: func(ctx context.Context) ([]byte, error) {
			frameN++
			return []byte{frameN, 0xFF, 0xD8, frameN}, nil
		},
	}

	return New(cfg, recipe, scheduler, engine, frames, log.listen)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionStartAnnouncesFirstStep(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "Keep those cubes even", log)
	defer sess.Close()

	sess.Start()

	changed := log.eventsOfType(EventStepChanged)
	if len(changed) != 1 || changed[0].StepNumber != 1 {
		t.Fatalf("step events = %+v", changed)
	}
	if changed[0].Instruction != "Dice the tofu into small cubes" {
		t.Errorf("instruction = %q", changed[0].Instruction)
	}

	waitFor(t, 2*time.Second, func() bool {
		for _, line := range log.spokenLines() {
			if line == "Step 1: Dice the tofu into small cubes" {
				return true
			}
		}
		return false
	}, "step announcement never spoken")
}

func TestSessionSpeaksGuidanceAfterGrace(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "Keep those cubes even", log)
	defer sess.Close()

	sess.Start()

	waitFor(t, 3*time.Second, func() bool {
		return len(log.eventsOfType(EventGuidance)) > 0
	}, "no guidance spoken")

	guidance := log.eventsOfType(EventGuidance)
	if guidance[0].Guidance != "Keep those cubes even" {
		t.Errorf("guidance = %q", guidance[0].Guidance)
	}
}

func TestSessionRepeatedGuidanceSpokenOnce(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "Keep those cubes even", log)
	defer sess.Close()

	sess.Start()

	waitFor(t, 3*time.Second, func() bool {
		return len(log.eventsOfType(EventAnalysis)) >= 3
	}, "not enough analysis cycles")

	if got := len(log.eventsOfType(EventGuidance)); got != 1 {
		t.Errorf("guidance events = %d, want 1 (identical guidance deduplicated)", got)
	}
}

func TestSessionNextStepAnnouncesAndResets(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "Keep those cubes even", log)
	defer sess.Close()

	sess.Start()
	waitFor(t, 3*time.Second, func() bool {
		return len(log.eventsOfType(EventGuidance)) >= 1
	}, "no guidance on step 1")

	sess.NextStep()

	step, ok := sess.CurrentStep()
	if !ok || step.StepNumber != 2 {
		t.Fatalf("current step = %+v ok=%v, want step 2", step, ok)
	}

	waitFor(t, 2*time.Second, func() bool {
		for _, line := range log.spokenLines() {
			if line == "Step 2: Bring the dashi stock to a gentle simmer" {
				return true
			}
		}
		return false
	}, "step 2 announcement never spoken")

	// The filter was reset, so the same guidance text speaks again on the
	// new step.
	waitFor(t, 3*time.Second, func() bool {
		return len(log.eventsOfType(EventGuidance)) >= 2
	}, "guidance did not re-speak after step advance")
}

func TestSessionPreviousStepClampsAtFirst(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "ok", log)
	defer sess.Close()

	sess.Start()
	sess.PreviousStep()

	step, ok := sess.CurrentStep()
	if !ok || step.StepNumber != 1 {
		t.Errorf("current step = %+v, want step 1", step)
	}
	if got := len(log.eventsOfType(EventStepChanged)); got != 1 {
		t.Errorf("step events = %d, want 1 (no re-announce at clamp)", got)
	}
}

func TestSessionCompletesPastLastStep(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "ok", log)
	defer sess.Close()

	sess.Start()
	for i := 0; i < 4; i++ {
		sess.NextStep()
	}

	complete := log.eventsOfType(EventRecipeComplete)
	if len(complete) != 1 {
		t.Fatalf("complete events = %d, want 1", len(complete))
	}
	if _, ok := sess.CurrentStep(); ok {
		t.Error("CurrentStep ok after completion, want false")
	}

	// Further advances are no-ops.
	sess.NextStep()
	if got := len(log.eventsOfType(EventRecipeComplete)); got != 1 {
		t.Errorf("complete events after extra Next = %d, want 1", got)
	}
}

func TestSessionRepeatStepReannounces(t *testing.T) {
	log := &eventLog{}
	sess := newTestSession(t, fastConfig(), "ok", log)
	defer sess.Close()

	sess.Start()
	waitFor(t, 2*time.Second, func() bool {
		return len(log.spokenLines()) >= 1
	}, "start announcement never spoken")

	sess.RepeatStep()
	waitFor(t, 2*time.Second, func() bool {
		count := 0
		for _, line := range log.spokenLines() {
			if line == "Step 1: Dice the tofu into small cubes" {
				count++
			}
		}
		return count >= 2
	}, "repeat did not re-speak the announcement")
}

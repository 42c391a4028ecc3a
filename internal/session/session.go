package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"github.com/misolabs/miso-api/internal/models"
	"github.com/misolabs/miso-api/internal/service"
	"github.com/misolabs/miso-api/internal/speech"
	"go.uber.org/zap"
)

// EventType identifies what a session event carries.
type EventType string

const (
	// EventStepChanged fires when the active step changes or the session starts.
	EventStepChanged EventType = "step_changed"
	// EventAnalysis fires once per completed analysis cycle.
	EventAnalysis EventType = "analysis"
	// EventGuidance fires when guidance passed the novelty filter and was spoken.
	EventGuidance EventType = "guidance"
	// EventRecipeComplete fires when the cook advances past the last step.
	EventRecipeComplete EventType = "recipe_complete"
)

// Event is what a cooking session reports to its transport.
type Event struct {
	Type        EventType               `json:"type"`
	StepNumber  int                     `json:"stepNumber,omitempty"`
	Instruction string                  `json:"instruction,omitempty"`
	Guidance    string                  `json:"guidance,omitempty"`
	Result      *service.AnalysisResult `json:"result,omitempty"`
}

// CookingSession walks a cook through one recipe. It owns the step cursor
// and coordinates the three moving parts around it: the analysis
// scheduler, the guidance novelty filter, and the speech engine. Advancing
// a step quiesces all three, announces the new step, and re-arms analysis
// after a short grace so the announcement is heard first.
type CookingSession struct {
	ID     uuid.UUID
	Recipe *models.Recipe

	cfg       *config.Config
	steps     []models.RecipeStep
	scheduler *service.AnalysisScheduler
	filter    *service.GuidanceFilter
	speech    *speech.Engine
	frames    service.FrameSource
	listener  func(Event)

	mu           sync.Mutex
	stepIndex    int
	completed    bool
	advanceTimer *time.Timer
}

// New creates a session for the recipe. The recipe's steps are ordered by
// step number; listener receives every session event and must not block.
func New(cfg *config.Config, recipe *models.Recipe, scheduler *service.AnalysisScheduler, engine *speech.Engine, frames service.FrameSource, listener func(Event)) *CookingSession {
	steps := make([]models.RecipeStep, len(recipe.Steps))
	copy(steps, recipe.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })

	if listener == nil {
		listener = func(Event) {}
	}

	return &CookingSession{
		ID:        uuid.New(),
		Recipe:    recipe,
		cfg:       cfg,
		steps:     steps,
		scheduler: scheduler,
		filter:    service.NewGuidanceFilter(cfg.Tunables.GuidanceSimilarityCutoff),
		speech:    engine,
		frames:    frames,
		listener:  listener,
	}
}

// Start announces the first step and arms camera analysis.
func (s *CookingSession) Start() {
	s.advance(0)
}

// NextStep moves to the following step. Past the last step the session
// completes: analysis stops and the completion line is spoken.
func (s *CookingSession) NextStep() {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	next := s.stepIndex + 1
	s.mu.Unlock()
	s.advance(next)
}

// PreviousStep moves back one step, clamped at the first.
func (s *CookingSession) PreviousStep() {
	s.mu.Lock()
	if s.completed || s.stepIndex == 0 {
		s.mu.Unlock()
		return
	}
	prev := s.stepIndex - 1
	s.mu.Unlock()
	s.advance(prev)
}

// RepeatStep re-speaks the current step's announcement without disturbing
// the analysis loop or the novelty filter.
func (s *CookingSession) RepeatStep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || len(s.steps) == 0 {
		return
	}
	step := s.steps[s.stepIndex]
	s.speech.Speak(context.Background(), s.renderAnnouncement(step))
}

// CurrentStep returns the active step. ok is false once the session has
// completed or when the recipe has no steps.
func (s *CookingSession) CurrentStep() (models.RecipeStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || len(s.steps) == 0 {
		return models.RecipeStep{}, false
	}
	return s.steps[s.stepIndex], true
}

// IsAnalyzing reports whether an analysis cycle is in flight.
func (s *CookingSession) IsAnalyzing() bool {
	return s.scheduler.IsAnalyzing()
}

// IsSpeaking reports whether the speech engine is mid-utterance.
func (s *CookingSession) IsSpeaking() bool {
	return s.speech.IsSpeaking()
}

// StopAnalysis pauses the camera loop without moving the step cursor.
func (s *CookingSession) StopAnalysis() {
	s.mu.Lock()
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	s.mu.Unlock()
	s.scheduler.Stop()
}

// ResumeAnalysis re-arms the camera loop for the current step.
func (s *CookingSession) ResumeAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || len(s.steps) == 0 {
		return
	}
	s.startAnalysisLocked()
}

// Close quiesces everything. The session cannot be restarted afterwards.
func (s *CookingSession) Close() {
	s.mu.Lock()
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	s.completed = true
	s.mu.Unlock()

	s.scheduler.Stop()
	s.speech.Stop()
}

// advance is the step-change sequence: quiesce analysis, clear the
// novelty filter, cut off whatever is being spoken, announce, then re-arm
// analysis after the grace period. The scheduler and speech engine are
// stopped outside s.mu: both wait for in-flight work that may itself be
// taking the session lock.
func (s *CookingSession) advance(index int) {
	s.mu.Lock()
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	s.mu.Unlock()

	s.scheduler.Stop()
	s.speech.Stop()

	s.mu.Lock()
	s.filter.Reset()

	if len(s.steps) == 0 || index >= len(s.steps) {
		s.completed = true
		s.mu.Unlock()

		line := s.cfg.Prompts.Speech.RecipeComplete
		s.speech.Speak(context.Background(), line)
		s.listener(Event{Type: EventRecipeComplete, Guidance: line})
		logger.WithSessionID(s.ID.String()).Info("cooking session complete",
			zap.Uint("recipe_id", s.Recipe.ID),
		)
		return
	}

	s.stepIndex = index
	step := s.steps[index]

	grace := s.cfg.Tunables.StepAdvanceGrace
	s.advanceTimer = time.AfterFunc(grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.completed || s.stepIndex != index {
			return
		}
		s.advanceTimer = nil
		s.startAnalysisLocked()
	})
	s.mu.Unlock()

	s.speech.Speak(context.Background(), s.renderAnnouncement(step))
	s.listener(Event{
		Type:        EventStepChanged,
		StepNumber:  step.StepNumber,
		Instruction: step.Instruction,
	})
}

// startAnalysisLocked arms the scheduler for the current step. Callers
// hold s.mu.
func (s *CookingSession) startAnalysisLocked() {
	step := s.steps[s.stepIndex]
	completed := make([]string, 0, s.stepIndex)
	for _, done := range s.steps[:s.stepIndex] {
		completed = append(completed, done.Instruction)
	}
	s.scheduler.Start(s.frames, step.Instruction, completed, s.handleResult)
}

// handleResult runs once per completed analysis cycle, on the scheduler's
// goroutine.
func (s *CookingSession) handleResult(result service.AnalysisResult) {
	s.listener(Event{Type: EventAnalysis, Result: &result})

	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	speak := s.filter.ShouldSpeak(result.Guidance, result.Scene)
	s.mu.Unlock()

	if !speak {
		return
	}
	s.speech.Speak(context.Background(), result.Guidance)
	s.listener(Event{Type: EventGuidance, Guidance: result.Guidance})
}

func (s *CookingSession) renderAnnouncement(step models.RecipeStep) string {
	text, err := config.RenderPrompt(s.cfg.Prompts.Speech.StepAnnounce, map[string]interface{}{
		"StepNumber":  step.StepNumber,
		"Instruction": step.Instruction,
	})
	if err != nil {
		logger.WithSessionID(s.ID.String()).Error("failed to render step announcement", zap.Error(err))
		return step.Instruction
	}
	return text
}

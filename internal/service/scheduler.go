package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"go.uber.org/zap"
)

// SchedulerState is the analysis scheduler's lifecycle state.
type SchedulerState int

const (
	// SchedulerIdle means no timer is armed.
	SchedulerIdle SchedulerState = iota
	// SchedulerScheduled means the interval timer is armed and waiting.
	SchedulerScheduled
	// SchedulerCapturing means one analysis cycle is in flight.
	SchedulerCapturing
)

// ErrNoFrame is returned by a FrameSource when no frame has arrived yet.
var ErrNoFrame = errors.New("no frame available")

// FrameSource supplies the most recent camera frame. The WebSocket session
// implements it with a latest-frame buffer fed by the mobile client.
type FrameSource interface {
	// CaptureFrame returns the current frame as JPEG bytes. It returns an
	// error when no frame is available yet.
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// FrameArchiver persists analyzed frames for later review. Archiving is
// best-effort and must never block or fail a cycle.
type FrameArchiver interface {
	ArchiveFrame(ctx context.Context, frame []byte, capturedAt time.Time)
}

// AnalysisScheduler runs the capture → vision → retrieval → guidance
// pipeline on a fixed interval. At most one cycle is in flight at a time:
// ticks that land while a cycle runs are skipped, not queued. Each cycle
// is bounded by the configured timeout; a timed-out or failed cycle
// produces no result and the next tick proceeds normally.
type AnalysisScheduler struct {
	Cfg       *config.Config
	Vision    *VisionService
	Retrieval *RetrievalService
	Guidance  *GuidanceService
	Archiver  FrameArchiver // optional

	mu         sync.Mutex
	state      SchedulerState
	generation int
	cancel     context.CancelFunc
	ticker     *time.Ticker
}

// NewAnalysisScheduler creates a scheduler in the Idle state.
func NewAnalysisScheduler(cfg *config.Config, vision *VisionService, retrieval *RetrievalService, guidance *GuidanceService) *AnalysisScheduler {
	return &AnalysisScheduler{
		Cfg:       cfg,
		Vision:    vision,
		Retrieval: retrieval,
		Guidance:  guidance,
		state:     SchedulerIdle,
	}
}

// clampHz bounds the analysis frequency to [0.1, 5] cycles per second.
func clampHz(hz float64) float64 {
	if hz < 0.1 {
		return 0.1
	}
	if hz > 5 {
		return 5
	}
	return hz
}

// Start arms the interval timer for the given step. If the scheduler is
// already running it stops first, discarding any in-flight cycle's
// eventual result. onResult is invoked once per successfully completed
// cycle.
func (s *AnalysisScheduler) Start(source FrameSource, currentStep string, completedSteps []string, onResult func(AnalysisResult)) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	gen := s.generation

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	interval := time.Duration(float64(time.Second) / clampHz(s.Cfg.Tunables.AnalysisHz))
	s.ticker = time.NewTicker(interval)
	s.state = SchedulerScheduled

	go s.run(ctx, gen, s.ticker, source, currentStep, completedSteps, onResult)
}

// Stop cancels the timer and returns the scheduler to Idle. It does not
// wait for an in-flight cycle: the cycle's context is cancelled and its
// eventual result is discarded by the generation guard. Safe to call
// redundantly.
func (s *AnalysisScheduler) Stop() {
	s.mu.Lock()
	if s.state == SchedulerIdle {
		s.mu.Unlock()
		return
	}
	s.generation++
	cancel := s.cancel
	ticker := s.ticker
	s.cancel = nil
	s.ticker = nil
	s.state = SchedulerIdle
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ticker != nil {
		ticker.Stop()
	}
}

// IsAnalyzing reports whether an analysis cycle is currently in flight.
func (s *AnalysisScheduler) IsAnalyzing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SchedulerCapturing
}

func (s *AnalysisScheduler) run(ctx context.Context, gen int, ticker *time.Ticker, source FrameSource, currentStep string, completedSteps []string, onResult func(AnalysisResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.beginCycle(gen) {
				continue // a cycle is still in flight, or we were stopped
			}

			result, ok := s.runCycle(ctx, source, currentStep, completedSteps)
			s.endCycle(gen)

			if ok && s.currentGeneration() == gen && ctx.Err() == nil {
				onResult(result)
			}
		}
	}
}

// beginCycle transitions Scheduled → Capturing. It refuses when another
// cycle is in flight or the scheduler was stopped or restarted.
func (s *AnalysisScheduler) beginCycle(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != SchedulerScheduled {
		return false
	}
	s.state = SchedulerCapturing
	return true
}

// endCycle transitions back to Scheduled regardless of the cycle's outcome.
func (s *AnalysisScheduler) endCycle(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.state == SchedulerCapturing {
		s.state = SchedulerScheduled
	}
}

func (s *AnalysisScheduler) currentGeneration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// runCycle executes one capture-vision-retrieval-guidance pass under the
// cycle timeout. Any stage failure or timeout is logged and yields no
// result; the caller proceeds to the next tick.
func (s *AnalysisScheduler) runCycle(parent context.Context, source FrameSource, currentStep string, completedSteps []string) (AnalysisResult, bool) {
	ctx, cancel := context.WithTimeout(parent, s.Cfg.Tunables.CycleTimeout)
	defer cancel()

	log := logger.Get()

	frame, err := source.CaptureFrame(ctx)
	if err != nil {
		log.Debug("no frame available, skipping cycle", zap.Error(err))
		return AnalysisResult{}, false
	}

	capturedAt := time.Now()
	if s.Archiver != nil {
		go s.Archiver.ArchiveFrame(context.WithoutCancel(ctx), frame, capturedAt)
	}

	scene, err := s.Vision.AnalyzeFrame(ctx, frame)
	if err != nil {
		log.Warn("vision analysis failed", zap.Error(err))
		return AnalysisResult{}, false
	}

	retrieval, err := s.Retrieval.Retrieve(ctx, scene, currentStep)
	if err != nil {
		log.Warn("retrieval failed", zap.Error(err))
		return AnalysisResult{}, false
	}

	guidance := s.Guidance.Generate(ctx, currentStep, scene, completedSteps, retrieval)

	if ctx.Err() != nil {
		log.Warn("analysis cycle timed out", zap.Duration("timeout", s.Cfg.Tunables.CycleTimeout))
		return AnalysisResult{}, false
	}

	return AnalysisResult{
		Scene:     scene,
		Retrieval: retrieval,
		Guidance:  guidance,
		Timestamp: capturedAt,
	}, true
}

// Package worker runs the harvest task for a single source.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
	"github.com/JakeFAU/eventwatch/internal/metrics"
)

// State is the lifecycle position of a source task.
type State int

// Task states. Done and Failed are terminal.
const (
	StateIdle State = iota
	StateRequested
	StateRendered
	StateExtracted
	StateClassified
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateRendered:
		return "rendered"
	case StateExtracted:
		return "extracted"
	case StateClassified:
		return "classified"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Extractor turns listing markup into candidates.
type Extractor interface {
	Extract(html string, src harvest.SourceDescriptor) []harvest.Candidate
}

// Result is the outcome of one source task.
type Result struct {
	SourceID   string
	State      State
	Candidates []harvest.Candidate
	Err        error
	Duration   time.Duration
}

// Worker renders, extracts and classifies one source per Run call. A Worker
// holds no per-task state and may run tasks concurrently.
type Worker struct {
	renderer   harvest.Renderer
	extractor  Extractor
	classifier harvest.Classifier
	clock      harvest.Clock
	logger     *zap.Logger
}

// New constructs a Worker.
func New(
	renderer harvest.Renderer,
	extractor Extractor,
	classifier harvest.Classifier,
	clock harvest.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		renderer:   renderer,
		extractor:  extractor,
		classifier: classifier,
		clock:      clock,
		logger:     logger,
	}
}

// Run executes the task for src. Failures end in StateFailed with no
// candidates; Run itself never returns an error or panics.
func (w *Worker) Run(ctx context.Context, src harvest.SourceDescriptor) (res Result) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := w.now()
	res = Result{SourceID: src.ID, State: StateIdle}
	logger := w.logger.With(zap.String("source_id", src.ID), zap.String("url", src.URL))

	defer func() {
		if r := recover(); r != nil {
			res.State = StateFailed
			res.Candidates = nil
			res.Err = fmt.Errorf("source task panic: %v", r)
		}
		res.Duration = w.now().Sub(start)
		if res.State == StateFailed {
			logger.Warn("source task failed", zap.Stringer("state", res.State), zap.Error(res.Err))
		} else {
			logger.Info("source task finished",
				zap.Stringer("state", res.State),
				zap.Int("candidates", len(res.Candidates)),
				zap.Duration("duration", res.Duration),
			)
		}
		metrics.ObserveSourceTask(src.ID, res.State.String(), len(res.Candidates))
	}()

	if err := ctx.Err(); err != nil {
		return fail(res, fmt.Errorf("source task canceled: %w", err))
	}

	res.State = StateRequested
	logger.Debug("rendering source", zap.Bool("scripted", src.Render != nil))
	html, err := w.renderer.Render(ctx, src.URL, src.Render)
	if err != nil {
		return fail(res, fmt.Errorf("render %s: %w", src.ID, err))
	}

	res.State = StateRendered
	candidates := w.extractor.Extract(html, src)

	res.State = StateExtracted
	for i := range candidates {
		candidates[i].Involved = w.classifier.Classify(candidates[i].Title, candidates[i].ClassifierText())
	}

	res.State = StateClassified
	res.Candidates = candidates
	res.State = StateDone
	return res
}

func fail(res Result, err error) Result {
	res.State = StateFailed
	res.Candidates = nil
	res.Err = err
	return res
}

func (w *Worker) now() time.Time {
	if w.clock == nil {
		return time.Now()
	}
	return w.clock.Now()
}

// Package pipeline runs one complete harvest, dedup and notify pass.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/dispatcher"
	"github.com/JakeFAU/eventwatch/internal/harvest"
	"github.com/JakeFAU/eventwatch/internal/metrics"
	"github.com/JakeFAU/eventwatch/internal/notify"
)

// Harvester fans out over the sources and returns every candidate.
type Harvester interface {
	Run(ctx context.Context, sources []harvest.SourceDescriptor) dispatcher.Aggregate
}

// Deps are the collaborators of a run.
type Deps struct {
	Sources    []harvest.SourceDescriptor
	Harvester  Harvester
	Notified   harvest.NotifiedStore
	Snapshot   harvest.SnapshotStore
	Recipients harvest.RecipientLoader
	Notifier   harvest.Notifier
	// Reporter is optional.
	Reporter harvest.Reporter
	Clock    harvest.Clock
}

// Options carry the notification settings.
type Options struct {
	TrackedName string
	Sender      string
	Subject     string
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Sources    int
	Failed     int
	Candidates int
	Relevant   []harvest.Candidate
	New        []harvest.Candidate
	Duration   time.Duration
}

// Pipeline executes runs. Two runs must not share a store concurrently.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New builds a Pipeline.
func New(deps Deps, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, logger: logger}
}

// Run performs one pass. It fails only when ctx is already done before
// harvesting starts; store and delivery failures are logged and the run
// completes.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("run canceled before harvest: %w", err)
	}
	start := p.now()
	rep := Report{RunID: newRunID(), Sources: len(p.deps.Sources)}
	logger := p.logger.With(zap.String("run_id", rep.RunID))
	logger.Info("run started", zap.Int("sources", rep.Sources))

	notified, err := p.deps.Notified.LoadNotified(ctx)
	loadFailed := err != nil
	if loadFailed {
		metrics.ObservePersistenceError("notified")
		logger.Warn("notified set unreadable, treating as empty", zap.Error(err))
	}
	if notified == nil {
		notified = harvest.NewURLSet()
	}

	agg := p.deps.Harvester.Run(ctx, p.deps.Sources)
	rep.Failed = agg.Failed()
	rep.Candidates = len(agg.Candidates)

	rep.Relevant = relevant(agg.Candidates)
	rep.New = fresh(rep.Relevant, notified)
	p.report("Relevant events", rep.Relevant)

	if err := p.deps.Snapshot.SaveSnapshot(ctx, rep.Relevant); err != nil {
		metrics.ObservePersistenceError("snapshot")
		logger.Error("save snapshot failed", zap.Error(err))
	}

	if len(rep.New) == 0 {
		logger.Info("no new events")
	} else {
		p.report("New events", rep.New)
		p.deliver(ctx, logger, rep.New)
		for _, ev := range rep.New {
			notified.Add(ev.URL)
		}
		if loadFailed {
			logger.Warn("notified set was not loaded, leaving the stored set unchanged",
				zap.Int("unsaved", len(rep.New)))
		} else if err := p.deps.Notified.SaveNotified(ctx, notified); err != nil {
			metrics.ObservePersistenceError("notified")
			logger.Error("save notified set failed", zap.Error(err))
		}
	}

	rep.Duration = p.now().Sub(start)
	metrics.ObserveRun(len(rep.Relevant), len(rep.New), rep.Duration)
	logger.Info("run finished",
		zap.Int("failed_sources", rep.Failed),
		zap.Int("candidates", rep.Candidates),
		zap.Int("relevant", len(rep.Relevant)),
		zap.Int("new", len(rep.New)),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (p *Pipeline) deliver(ctx context.Context, logger *zap.Logger, events []harvest.Candidate) {
	var recipients []string
	if p.deps.Recipients != nil {
		recipients = p.deps.Recipients.Load()
	}
	n, err := notify.Compose(p.opts.TrackedName, events, p.opts.Sender, p.opts.Subject, recipients)
	if err != nil {
		logger.Error("compose notification failed", zap.Error(err))
		return
	}
	p.deps.Notifier.Notify(ctx, n)
}

func (p *Pipeline) report(heading string, events []harvest.Candidate) {
	if p.deps.Reporter != nil {
		p.deps.Reporter.Report(heading, events)
	}
}

func (p *Pipeline) now() time.Time {
	if p.deps.Clock == nil {
		return time.Now()
	}
	return p.deps.Clock.Now()
}

func relevant(candidates []harvest.Candidate) []harvest.Candidate {
	out := make([]harvest.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Involved {
			out = append(out, c)
		}
	}
	return out
}

func fresh(events []harvest.Candidate, notified harvest.URLSet) []harvest.Candidate {
	out := make([]harvest.Candidate, 0, len(events))
	for _, ev := range events {
		if !notified.Contains(ev.URL) {
			out = append(out, ev)
		}
	}
	return out
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

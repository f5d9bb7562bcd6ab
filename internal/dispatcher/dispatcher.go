// Package dispatcher fans source tasks out over a bounded worker pool and
// aggregates their results.
package dispatcher

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/eventwatch/internal/harvest"
	"github.com/JakeFAU/eventwatch/internal/worker"
)

// DefaultMaxWorkers caps the pool when no limit is configured.
const DefaultMaxWorkers = 16

// Task runs one source to completion.
type Task interface {
	Run(ctx context.Context, src harvest.SourceDescriptor) worker.Result
}

// Config bounds the pool size.
type Config struct {
	// Concurrency is the requested worker count; 0 means runtime.NumCPU().
	Concurrency int
	MaxWorkers  int
}

// Aggregate is the combined output of all source tasks. Candidate order is
// unspecified.
type Aggregate struct {
	Candidates []harvest.Candidate
	Results    []worker.Result
}

// Failed counts the tasks that ended in worker.StateFailed.
func (a Aggregate) Failed() int {
	n := 0
	for _, r := range a.Results {
		if r.State == worker.StateFailed {
			n++
		}
	}
	return n
}

// Dispatcher runs one task per source.
type Dispatcher struct {
	task   Task
	cfg    Config
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(task Task, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{task: task, cfg: cfg, logger: logger}
}

// Run dispatches every source and blocks until all tasks have finished.
// A failing task contributes nothing and never cancels its siblings.
func (d *Dispatcher) Run(ctx context.Context, sources []harvest.SourceDescriptor) Aggregate {
	var (
		mu  sync.Mutex
		agg Aggregate
	)
	if len(sources) == 0 {
		return agg
	}

	workers := d.workerCount(len(sources))
	d.logger.Info("dispatching sources", zap.Int("sources", len(sources)), zap.Int("workers", workers))

	var g errgroup.Group
	g.SetLimit(workers)
	for _, src := range sources {
		g.Go(func() error {
			res := d.task.Run(ctx, src)
			mu.Lock()
			agg.Results = append(agg.Results, res)
			agg.Candidates = append(agg.Candidates, res.Candidates...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return agg
}

func (d *Dispatcher) workerCount(sources int) int {
	n := d.cfg.Concurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}
	limit := d.cfg.MaxWorkers
	if limit <= 0 {
		limit = DefaultMaxWorkers
	}
	return max(1, min(n, limit, sources))
}

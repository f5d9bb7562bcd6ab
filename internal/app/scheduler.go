package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/pipeline"
)

// Runner executes one full pass.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// Scheduler runs passes on a cron schedule and on demand. At most one pass
// runs at a time; a pass that would overlap is skipped.
type Scheduler struct {
	runner Runner
	logger *zap.Logger
	cron   *cron.Cron

	running sync.Mutex
	wg      sync.WaitGroup

	mu       sync.Mutex
	ctx      context.Context
	last     pipeline.Report
	finished time.Time
	hasLast  bool
}

// NewScheduler validates schedule and builds a stopped Scheduler.
func NewScheduler(runner Runner, schedule string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	s := &Scheduler{runner: runner, logger: logger, cron: c, ctx: context.Background()}
	if _, err := c.AddFunc(schedule, s.scheduled); err != nil {
		return nil, fmt.Errorf("parse watch.schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing the schedule. Runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("schedule started", zap.Time("next_run", e.Next))
	}
}

// Stop halts the schedule and waits for any pass in flight.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// Trigger starts a pass in the background unless one is running.
func (s *Scheduler) Trigger() bool {
	if !s.running.TryLock() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		s.execute()
	}()
	return true
}

// Last returns the latest finished pass.
func (s *Scheduler) Last() (pipeline.Report, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.finished, s.hasLast
}

func (s *Scheduler) scheduled() {
	if !s.running.TryLock() {
		s.logger.Warn("previous run still in progress, skipping scheduled run")
		return
	}
	defer s.running.Unlock()
	s.execute()
}

func (s *Scheduler) execute() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	rep, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Warn("run aborted", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.last, s.finished, s.hasLast = rep, time.Now().UTC(), true
	s.mu.Unlock()
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

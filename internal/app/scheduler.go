package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/shouldipickitup/pkg/logger"
)

// BatchFunc runs one batch.
type BatchFunc func(ctx context.Context) error

// Scheduler runs the batch on a cron schedule. A run that is still going when
// the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	run    BatchFunc
	logger *slog.Logger
}

// NewScheduler creates a scheduler. Runs use a context derived from ctx that
// is cancelled by Stop.
func NewScheduler(ctx context.Context, run BatchFunc, l *slog.Logger) *Scheduler {
	l = logger.OrDefault(l)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(l.Handler(), slog.LevelDebug))
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		ctx:    ctx,
		cancel: cancel,
		run:    run,
		logger: l,
	}
}

// Start registers the batch under expr (standard five-field cron or a
// descriptor such as "@every 6h") and starts the cron loop.
func (s *Scheduler) Start(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.runScheduledTask); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", "cron_expr", expr)
	return nil
}

// Stop cancels a running batch and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runScheduledTask() {
	if s.ctx.Err() != nil {
		return
	}
	s.logger.Info("Scheduled batch starting")
	if err := s.run(s.ctx); err != nil {
		s.logger.Error("Scheduled batch failed", "error", err)
	}
}

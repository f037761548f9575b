package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler drives the time-based machinery: the deadline sweep that
// forfeits no-shows and auto-confirms stale results, and the settlement
// retry loop for failed payouts.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

func NewScheduler(
	matchSvc MatchService,
	settlementSvc SettlementService,
	clock clockwork.Clock,
	sweepInterval time.Duration,
	settlementInterval time.Duration,
	logger *slog.Logger,
) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepInterval)
			defer cancel()
			if err := matchSvc.SweepDeadlines(ctx); err != nil {
				logger.Error("deadline sweep failed", slog.Any("error", err))
			}
		}),
		gocron.WithName("deadline-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule deadline sweep: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(settlementInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), settlementInterval)
			defer cancel()
			if err := settlementSvc.RetryFailed(ctx); err != nil {
				logger.Error("settlement retry pass failed", slog.Any("error", err))
			}
		}),
		gocron.WithName("settlement-retry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule settlement retry: %w", err)
	}

	return &Scheduler{scheduler: sched, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("scheduler started")
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

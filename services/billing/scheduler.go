package billing

import (
	"context"
	"time"

	"sportflow-license/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues the monthly generation task on the first day of every
// month at 02:00 local time.
type Scheduler struct {
	enqueuer task.Enqueuer
	cancel   context.CancelFunc
}

func NewScheduler(enqueuer task.Enqueuer) *Scheduler {
	return &Scheduler{enqueuer: enqueuer}
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		next := nextRun(time.Now())
		zap.L().Info("invoice scheduler sleeping", zap.Time("next_run", next))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if err := s.enqueueCurrentPeriod(ctx, time.Now()); err != nil {
			zap.L().Error("failed to enqueue monthly invoice task", zap.Error(err))
		}
	}
}

func (s *Scheduler) enqueueCurrentPeriod(ctx context.Context, now time.Time) error {
	t, err := NewGenerateMonthlyTask(now.Year(), int(now.Month()))
	if err != nil {
		return err
	}
	if _, err := s.enqueuer.Enqueue(ctx, t); err != nil {
		return err
	}
	zap.L().Info("monthly invoice task enqueued",
		zap.Int("year", now.Year()),
		zap.Int("month", int(now.Month())),
	)
	return nil
}

// nextRun returns the upcoming first-of-month 02:00 after now.
func nextRun(now time.Time) time.Time {
	run := time.Date(now.Year(), now.Month(), 1, 2, 0, 0, 0, now.Location())
	if !run.After(now) {
		run = run.AddDate(0, 1, 0)
	}
	return run
}

func registerScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if s.cancel != nil {
				s.cancel()
			}
			return nil
		},
	})
}

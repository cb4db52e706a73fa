package redemption

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler enqueues the stale-code sweep once a day.
type Scheduler struct {
	client enqueuer
}

func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{client: client}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started redemption code sweep scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, 3, 0)

		zap.L().Info("[Scheduler] next sweep scheduled", zap.Time("next_run", next))
		select {
		case <-time.After(next.Sub(now)):
			s.enqueueSweep(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) enqueueSweep(ctx context.Context) {
	if _, err := s.client.EnqueueContext(ctx, NewCleanupCodesTask()); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue code sweep", zap.Error(err))
		return
	}
	zap.L().Info("[Scheduler] enqueued redemption code sweep")
}

// nextRunTime is the next wall-clock occurrence of hour:minute after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

package redemption

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/taskname"
)

var TaskModule = fx.Module("task.redemption",
	fx.Provide(NewTask, NewScheduler),
	fx.Invoke(StartScheduler),
)

// NewCleanupCodesTask builds the periodic sweep of stale redemption
// codes. Stale rows are harmless to correctness, the sweep just keeps
// the table from growing without bound.
func NewCleanupCodesTask() *asynq.Task {
	return asynq.NewTask(taskname.RedemptionCleanupCodes, nil, asynq.Queue("rewards"))
}

type TaskParams struct {
	fx.In

	DB *gorm.DB
}

type Task struct {
	db *gorm.DB
}

func NewTask(p TaskParams) *Task {
	return &Task{db: p.DB}
}

func (s *Task) HandleCleanupCodesTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-24 * time.Hour)

	res := s.db.WithContext(ctx).
		Where("refreshed_at < ?", cutoff).
		Delete(&Request{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected > 0 {
		zap.L().Info("cleaned up stale redemption codes", zap.Int64("rows", res.RowsAffected))
	}
	return nil
}

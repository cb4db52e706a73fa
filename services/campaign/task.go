package campaign

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/taskname"
)

var TaskModule = fx.Module("task.campaign",
	fx.Provide(NewTask),
)

type SyncParticipantsPayload struct {
	CampaignID string `json:"campaign_id"`
}

// NewSyncParticipantsTask builds the task enqueued after a successful
// referral claim. The counter moves off the claim path so a slow or
// unavailable broker never blocks the claim itself.
func NewSyncParticipantsTask(campaignID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncParticipantsPayload{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.CampaignSyncParticipants, payload, asynq.Queue("rewards")), nil
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

func (s *Task) HandleSyncParticipantsTask(ctx context.Context, t *asynq.Task) error {
	var payload SyncParticipantsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	res := s.db.WithContext(ctx).
		Model(&Campaign{}).
		Where("campaign_id = ?", payload.CampaignID).
		Update("participants_count", gorm.Expr("participants_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// campaign deleted between claim and sync, nothing to count
		zap.L().Warn("participant sync skipped, campaign missing",
			zap.String("campaign_id", payload.CampaignID),
		)
	}
	return nil
}

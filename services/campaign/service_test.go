package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caffino-rewards/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Campaign{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreateAndFind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &Campaign{
		OwnerUserID:         "merchant-1",
		Name:                "Bring a friend",
		StartDate:           time.Now().Add(-time.Hour),
		ReferrerRewardPoint: 500,
		ReferredRewardType:  RewardPoint,
		ReferredRewardValue: 200,
		DaysToRedeem:        7,
		IsEnabled:           true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.CampaignID)

	found, err := svc.FindByID(ctx, created.CampaignID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "Bring a friend", found.Name)

	missing, err := svc.FindByID(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCreate_DisabledPersists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &Campaign{
		OwnerUserID: "merchant-1",
		Name:        "Draft campaign",
		StartDate:   time.Now(),
		IsEnabled:   false,
	})
	require.NoError(t, err)

	found, err := svc.FindByID(ctx, created.CampaignID)
	require.NoError(t, err)
	require.False(t, found.IsEnabled)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), &Campaign{OwnerUserID: "merchant-1"})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), &Campaign{Name: "No owner"})
	require.Error(t, err)
}

func TestSetEnabled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &Campaign{
		OwnerUserID: "merchant-1",
		Name:        "Toggle me",
		StartDate:   time.Now(),
		IsEnabled:   true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetEnabled(ctx, created.CampaignID, false))

	found, err := svc.FindByID(ctx, created.CampaignID)
	require.NoError(t, err)
	require.False(t, found.IsEnabled)

	err = svc.SetEnabled(ctx, "nope", true)
	require.Error(t, err)
}

func TestCampaignWindow(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	c := &Campaign{StartDate: now.Add(-time.Hour), EndDate: &end}

	require.True(t, c.Started(now))
	require.False(t, c.Ended(now))
	require.True(t, c.Ended(now.Add(2*time.Hour)))

	open := &Campaign{StartDate: now}
	require.False(t, open.Ended(now.Add(24*365*time.Hour)))
	require.False(t, open.Started(now.Add(-time.Second)))
}

func TestAtCapacity(t *testing.T) {
	limit := int64(2)

	c := &Campaign{MaxParticipants: &limit, ParticipantsCount: 1}
	require.False(t, c.AtCapacity())

	c.ParticipantsCount = 2
	require.True(t, c.AtCapacity())

	unlimited := &Campaign{ParticipantsCount: 1_000_000}
	require.False(t, unlimited.AtCapacity())
}

func TestHandleSyncParticipantsTask(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &Campaign{
		OwnerUserID: "merchant-1",
		Name:        "Counted",
		StartDate:   time.Now(),
	})
	require.NoError(t, err)

	task := NewTask(TaskParams{DB: svc.db})

	payload, err := NewSyncParticipantsTask(created.CampaignID)
	require.NoError(t, err)

	require.NoError(t, task.HandleSyncParticipantsTask(ctx, payload))
	require.NoError(t, task.HandleSyncParticipantsTask(ctx, payload))

	found, err := svc.FindByID(ctx, created.CampaignID)
	require.NoError(t, err)
	require.EqualValues(t, 2, found.ParticipantsCount)
}

func TestHandleSyncParticipantsTask_BadPayload(t *testing.T) {
	svc := newTestService(t)
	task := NewTask(TaskParams{DB: svc.db})

	err := task.HandleSyncParticipantsTask(context.Background(), asynq.NewTask("campaign:sync:participants", []byte("{")))
	require.Error(t, err)
}

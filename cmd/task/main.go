package main

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"caffino-rewards/pkg/asynqmod"
	"caffino-rewards/pkg/config"
	"caffino-rewards/pkg/db"
	"caffino-rewards/pkg/logger"
	"caffino-rewards/pkg/redis"
	"caffino-rewards/pkg/taskname"
	"caffino-rewards/services/campaign"
	"caffino-rewards/services/redemption"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		asynqmod.Client,
		campaign.TaskModule,
		redemption.TaskModule,
		asynqmod.Server,
		fx.Invoke(registerHandlers),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func registerHandlers(mux *asynq.ServeMux, campaigns *campaign.Task, redemptions *redemption.Task) {
	mux.HandleFunc(taskname.CampaignSyncParticipants, campaigns.HandleSyncParticipantsTask)
	mux.HandleFunc(taskname.RedemptionCleanupCodes, redemptions.HandleCleanupCodesTask)
}

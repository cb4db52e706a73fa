package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/internal/httpapi"
	"caffino-rewards/pkg/asynqmod"
	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/config"
	"caffino-rewards/pkg/db"
	"caffino-rewards/pkg/health"
	"caffino-rewards/pkg/logger"
	"caffino-rewards/pkg/redis"
	"caffino-rewards/pkg/refcode"
	"caffino-rewards/pkg/sequence"
	"caffino-rewards/pkg/server"
	"caffino-rewards/services/campaign"
	"caffino-rewards/services/directory"
	"caffino-rewards/services/ledger"
	"caffino-rewards/services/redemption"
	"caffino-rewards/services/reward"
	"caffino-rewards/services/settlement"
	"caffino-rewards/services/withdrawal"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		asynqmod.Client,
		health.Module,
		fx.Provide(
			provideSnowflakeNode,
			provideCodeGenerator,
		),
		directory.Module,
		campaign.Module,
		ledger.Module,
		reward.Module,
		redemption.Module,
		settlement.Module,
		withdrawal.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Invoke(
			db.Otel,
			db.Metric,
			autoMigrate,
			seedOffers,
		),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// provideCodeGenerator switches to the keyed derivation when a secret
// is configured. Flipping the secret invalidates every outstanding
// code, so it is a deployment decision, not a default.
func provideCodeGenerator(cfg *config.Config) refcode.Generator {
	if cfg.Referral.CodeSecret != "" {
		return refcode.NewHMACGenerator(cfg.Referral.CodeSecret)
	}
	return refcode.HashGenerator{}
}

func autoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&directory.User{},
		&directory.Outlet{},
		&directory.CheckIn{},
		&campaign.Campaign{},
		&reward.Reward{},
		&reward.Payout{},
		&redemption.Request{},
		&redemption.Offer{},
		&ledger.Transaction{},
		&withdrawal.Withdrawal{},
	)
}

func seedOffers(lc fx.Lifecycle, svc *redemption.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.EnsureDefaultOffers(ctx)
		},
	})
}

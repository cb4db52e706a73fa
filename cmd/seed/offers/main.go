package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/config"
	"caffino-rewards/pkg/db"
	"caffino-rewards/pkg/logger"
	"caffino-rewards/pkg/redis"
	"caffino-rewards/pkg/refcode"
	"caffino-rewards/pkg/sequence"
	"caffino-rewards/services/campaign"
	"caffino-rewards/services/directory"
	"caffino-rewards/services/redemption"
	"caffino-rewards/services/reward"
)

// Seeds the default voucher catalog and exits.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		refcode.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(1)
		}),
		directory.Module,
		campaign.Module,
		reward.Module,
		redemption.Module,
		fx.Invoke(run),
		fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	app.Run()
}

func run(lc fx.Lifecycle, sh fx.Shutdowner, gdb *gorm.DB, svc *redemption.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := gdb.AutoMigrate(&redemption.Offer{}); err != nil {
				return err
			}
			if err := svc.EnsureDefaultOffers(ctx); err != nil {
				return err
			}
			zap.L().Info("offer catalog ready")
			return sh.Shutdown()
		},
	})
}

package redemption

import (
	"go.uber.org/fx"
)

var Module = fx.Module("redemption.service",
	fx.Provide(NewService),
)

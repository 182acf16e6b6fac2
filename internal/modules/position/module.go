package position

import (
	"signal_bot/internal/modules/position/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("position",
		fx.Provide(
			service.NewStore,
		),
	)
}

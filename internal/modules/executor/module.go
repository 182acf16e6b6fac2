package executor

import (
	"signal_bot/internal/modules/executor/service"
	okx "signal_bot/internal/modules/okx_client/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			func(c *okx.Client) service.Venue { return c },
			service.NewExecutor,
		),
	)
}

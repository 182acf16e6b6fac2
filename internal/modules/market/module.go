package market

import (
	"signal_bot/internal/modules/market/service"
	okx "signal_bot/internal/modules/okx_client/service"

	"go.uber.org/fx"
)

// Module provides the per-instrument bar feed backed by the OKX client.
func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			func(c *okx.Client) service.Source { return c },
			service.NewFeed,
		),
	)
}

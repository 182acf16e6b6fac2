package strategy

import (
	"signal_bot/internal/indicator"
	"signal_bot/internal/modules/strategy/service"

	"go.uber.org/fx"
)

// Module provides the signal detector and the indicator store sized to the
// lines the configured variants read.
func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewDetector,
			func(d *service.Detector) *indicator.Store {
				return indicator.NewStore(d.Indicators()...)
			},
		),
	)
}

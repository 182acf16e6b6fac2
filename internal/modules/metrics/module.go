package metrics

import (
	position "signal_bot/internal/modules/position/service"
	"signal_bot/internal/modules/metrics/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			service.NewMetrics,
		),
		fx.Invoke(func(m *service.Metrics, ps *position.Store) {
			ps.Observe(m.Transition)
		}),
	)
}

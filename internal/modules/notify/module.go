package notify

import (
	"context"

	"signal_bot/internal/modules/notify/service"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			service.NewNotifier,
		),
		// critical log entries are forwarded to the notifier
		fx.Invoke(func(lc fx.Lifecycle, m *logger.Mirror, n service.Notifier, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go m.Run(ctx, n, log.Named("notify"))
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}

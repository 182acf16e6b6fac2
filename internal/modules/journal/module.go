package journal

import (
	"context"

	"signal_bot/internal/modules/journal/service"
	position "signal_bot/internal/modules/position/service"
	"signal_bot/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			func(pg *db.PgTxManager, log *zap.Logger) *service.Journal {
				if pg == nil {
					return service.NewJournal(nil, log)
				}
				return service.NewJournal(pg, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, j *service.Journal, ps *position.Store) {
			ctx, cancel := context.WithCancel(context.Background())
			ps.Observe(j.Observe)
			lc.Append(fx.Hook{
				OnStart: func(start context.Context) error {
					if err := j.Migrate(start); err != nil {
						cancel()
						return err
					}
					go j.Run(ctx)
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

package postgres

import (
	"context"

	"signal_bot/internal/modules/config"
	"signal_bot/pkg/db"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Module provides the Postgres transaction manager. Without a DSN it provides
// nil and everything that depends on the database stays off.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB.DSN == "" {
					return nil, nil
				}
				m, err := db.Open(context.Background(), db.PoolConfig{
					DSN:      cfg.DB.DSN,
					MaxConns: cfg.DB.MaxConns,
				})
				if err != nil {
					return nil, errors.Wrap(err, "postgres")
				}
				lc.Append(fx.StopHook(m.Close))
				return m, nil
			},
		),
	)
}

package bootstrap

import (
	"context"

	"signal_bot/internal/indicator"
	"signal_bot/internal/modules/bootstrap/service"
	"signal_bot/internal/modules/config"
	market "signal_bot/internal/modules/market/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// symbols known before the first cycle; multi mode without an explicit list
// discovers its universe in the scanner instead
func symbols(cfg *config.Config) []string {
	if cfg.Scanner.Mode == "single" {
		return []string{cfg.Scanner.Symbol}
	}
	return cfg.Scanner.Symbols
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(f *market.Feed, st *indicator.Store, log *zap.Logger) *service.Warmuper {
				return service.NewWarmuper(f, st, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, wu *service.Warmuper, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					syms := symbols(cfg)
					if len(syms) == 0 {
						return nil
					}
					n, err := wu.Warmup(ctx, syms)
					if err != nil {
						log.Warn("warmup incomplete", zap.Int("loaded", n), zap.Int("symbols", len(syms)), zap.Error(err))
						return nil
					}
					log.Info("warmup done", zap.Int("symbols", n))
					return nil
				},
			})
		}),
	)
}

package scanner

import (
	"context"

	"signal_bot/internal/indicator"
	admin "signal_bot/internal/modules/admin/service"
	"signal_bot/internal/modules/config"
	control "signal_bot/internal/modules/control/service"
	executor "signal_bot/internal/modules/executor/service"
	market "signal_bot/internal/modules/market/service"
	metrics "signal_bot/internal/modules/metrics/service"
	okx "signal_bot/internal/modules/okx_client/service"
	position "signal_bot/internal/modules/position/service"
	"signal_bot/internal/modules/scanner/service"
	strategy "signal_bot/internal/modules/strategy/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewScanner(
	cfg *config.Config,
	gate *control.Gate,
	feed *market.Feed,
	client *okx.Client,
	exec *executor.Executor,
	det *strategy.Detector,
	lines *indicator.Store,
	ps *position.Store,
	m *metrics.Metrics,
	state *admin.State,
	log *zap.Logger,
) *service.Scanner {
	return service.NewScanner(cfg, service.Deps{
		Gate:      gate,
		Bars:      feed,
		Venue:     client,
		Executor:  exec,
		Detector:  det,
		Lines:     lines,
		Positions: ps,
		Recorder:  m,
		Heartbeat: state,
	}, log)
}

// Module runs the scanner for the lifetime of the app. A fatal scan error
// shuts the app down with exit code 1.
func Module() fx.Option {
	return fx.Module("scanner",
		fx.Provide(NewScanner),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Scanner, sd fx.Shutdowner, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						if err := s.Run(ctx); err != nil {
							log.Error("scanner stopped", zap.Error(err))
							_ = sd.Shutdown(fx.ExitCode(1))
						}
					}()
					return nil
				},
				OnStop: func(stop context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stop.Done():
					}
					return nil
				},
			})
		}),
	)
}

package admin

import (
	"context"
	"net"
	"net/http"
	"time"

	"signal_bot/internal/modules/admin/service"
	"signal_bot/internal/modules/config"
	control "signal_bot/internal/modules/control/service"
	metrics "signal_bot/internal/modules/metrics/service"
	position "signal_bot/internal/modules/position/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewServer(cfg *config.Config, state *service.State, ctl control.Store, ps *position.Store, m *metrics.Metrics, log *zap.Logger) *service.Server {
	tail := service.NewTailer(cfg.Log.File, cfg.Admin.TailPoll)
	return service.NewServer(state, ctl, ps, tail, m.Handler(), log)
}

// RunHTTP serves the admin API unless admin.addr is empty.
func RunHTTP(lc fx.Lifecycle, cfg *config.Config, s *service.Server, log *zap.Logger) {
	if cfg.Admin.Addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Admin.Addr)
			if err != nil {
				return err
			}
			log.Info("admin listening", zap.String("addr", ln.Addr().String()))
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("admin",
		fx.Provide(
			service.NewState,
			NewServer,
		),
		fx.Invoke(RunHTTP),
	)
}

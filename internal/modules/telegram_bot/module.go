package telegram

import (
	"context"

	"signal_bot/internal/modules/config"
	control "signal_bot/internal/modules/control/service"
	position "signal_bot/internal/modules/position/service"
	"signal_bot/internal/modules/telegram_bot/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module runs the operator chat bot when a token and chat id are configured.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(cfg *config.Config, ctl control.Store, ps *position.Store, log *zap.Logger) *service.Commands {
				return service.NewCommands(cfg.Notify.TelegramChatID, ctl, ps, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, cmds *service.Commands, log *zap.Logger) {
			if cfg.Notify.TelegramToken == "" || cfg.Notify.TelegramChatID == 0 {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					bot, err := service.NewBot(cfg.Notify.TelegramToken, cmds, log)
					if err != nil {
						log.Warn("telegram commands disabled", zap.Error(err))
						return nil
					}
					go bot.Run(ctx)
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

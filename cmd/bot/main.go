package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/admin"
	"signal_bot/internal/modules/bootstrap"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/control"
	controlsvc "signal_bot/internal/modules/control/service"
	"signal_bot/internal/modules/executor"
	"signal_bot/internal/modules/journal"
	"signal_bot/internal/modules/market"
	"signal_bot/internal/modules/metrics"
	"signal_bot/internal/modules/notify"
	okx "signal_bot/internal/modules/okx_client"
	"signal_bot/internal/modules/position"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/scanner"
	"signal_bot/internal/modules/strategy"
	telegram "signal_bot/internal/modules/telegram_bot"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const stopTimeout = 15 * time.Second

func newLogger(cfg *config.Config, mirror *logger.Mirror) (*zap.Logger, error) {
	return logger.New(logger.Config{
		File:    cfg.Log.File,
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
	}, zap.Hooks(mirror.Hook))
}

func startTracing(lc fx.Lifecycle, cfg *config.Config) error {
	_, closer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Service: cfg.Log.Service,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,

		SampleRate: cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.StopHook(closer))
	return nil
}

func newApp(opts config.Options) *fx.App {
	return fx.New(
		fx.Supply(opts, logger.NewMirror(64)),
		config.Module(),
		fx.Provide(newLogger),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			zl := &fxevent.ZapLogger{Logger: l.Named("fx")}
			zl.UseLogLevel(zapcore.DebugLevel)
			return zl
		}),
		fx.Invoke(startTracing),

		okx.Module(),
		market.Module(),
		strategy.Module(),
		position.Module(),
		executor.Module(),
		control.Module(),
		notify.Module(),
		metrics.Module(),
		postgres.Module(),
		journal.Module(),
		admin.Module(),
		telegram.Module(),
		bootstrap.Module(),
		scanner.Module(),
	)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	app := newApp(config.Options{
		Path:   cmd.String("config"),
		Mode:   cmd.String("mode"),
		Symbol: cmd.String("symbol"),
	})
	if err := app.Start(ctx); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	sig := <-app.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if sig.ExitCode != 0 {
		return cli.Exit("strategy halted", sig.ExitCode)
	}
	return nil
}

func signalAction(sig models.ControlSignal) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		src, err := controlsvc.NewFileSource(cmd.String("file"))
		if err != nil {
			return err
		}
		if err := src.SetSignal(ctx, sig); err != nil {
			return err
		}
		fmt.Printf("%s signal written to %s\n", sig, src.Path())
		return nil
	}
}

func configAction(_ context.Context, cmd *cli.Command) error {
	out, err := config.Dump(config.Options{
		Path:   cmd.String("config"),
		Mode:   cmd.String("mode"),
		Symbol: cmd.String("symbol"),
	})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func main() {
	configFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the config file (yaml or toml)",
		},
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Scan mode: single or multi",
		},
		&cli.StringFlag{
			Name:    "symbol",
			Aliases: []string{"s"},
			Usage:   "Instrument for single mode, e.g. BTC-USDT-SWAP",
		},
	}
	fileFlag := &cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Control signal file",
		Value:   "control_signal.txt",
	}

	cmd := &cli.Command{
		Name:  "bot",
		Usage: "MA/EMA signal bot for OKX perpetual swaps",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the scanner",
				Flags:  configFlags,
				Action: runAction,
			},
			{
				Name:  "signal",
				Usage: "Write the control signal read by a running bot",
				Commands: []*cli.Command{
					{
						Name:   "start",
						Usage:  "Resume trading",
						Flags:  []cli.Flag{fileFlag},
						Action: signalAction(models.ControlStart),
					},
					{
						Name:   "stop",
						Usage:  "Pause trading",
						Flags:  []cli.Flag{fileFlag},
						Action: signalAction(models.ControlStop),
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective config with secrets masked",
				Flags:  configFlags,
				Action: configAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

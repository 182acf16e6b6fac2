package service

import (
	"context"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"

	"go.uber.org/zap"
)

// Gate decides whether a scan tick may run.
type Gate struct {
	src      Source
	log      *zap.Logger
	critical *zap.Logger
	poll     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewGate(cfg *config.Config, src Source, log *zap.Logger) *Gate {
	l := log.Named("control")
	return &Gate{
		src:      src,
		log:      l,
		critical: logger.Critical(l),
		poll:     cfg.Control.PollInterval,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pass reads the signal once. On stop it blocks, polling until start is
// seen, and then lets the tick run. An unrecognised signal skips the tick.
// Read errors are returned as they are.
func (g *Gate) Pass(ctx context.Context) (bool, error) {
	sig, err := g.src.CurrentSignal(ctx)
	if err != nil {
		return false, err
	}
	switch sig {
	case models.ControlStart:
		return true, nil
	case models.ControlStop:
	default:
		g.log.Debug("unrecognised control signal, skipping tick", zap.String("signal", string(sig)))
		return false, nil
	}

	g.critical.Info("trading stopped\ntime: " + g.now().Format(time.DateTime) + "\nstatus: stop signal received")
	for {
		if err := g.sleep(ctx, g.poll); err != nil {
			return false, err
		}
		sig, err := g.src.CurrentSignal(ctx)
		if err != nil {
			return false, err
		}
		if sig == models.ControlStart {
			g.critical.Info("trading resumed\ntime: " + g.now().Format(time.DateTime) + "\nstatus: start signal received")
			return true, nil
		}
	}
}

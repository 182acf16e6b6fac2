package service

import (
	"context"
	"sync/atomic"

	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	market "signal_bot/internal/modules/market/service"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// parallel history loads, kept low for the public candle rate limit
const warmupParallel = 8

type Bars interface {
	Update(ctx context.Context, instID string) (market.Snapshot, error)
}

type Lines interface {
	Refresh(instID string, bars []models.Bar, from int) indicator.Set
}

// Warmuper loads history and computes indicator lines before the first tick
// so the scanner starts on incremental updates.
type Warmuper struct {
	bars  Bars
	lines Lines
	log   *zap.Logger
}

func NewWarmuper(bars Bars, lines Lines, log *zap.Logger) *Warmuper {
	return &Warmuper{bars: bars, lines: lines, log: log.Named("warmup")}
}

// Warmup returns the number of instruments loaded. Failures are reported
// through the first error; the other instruments still load.
func (w *Warmuper) Warmup(ctx context.Context, symbols []string) (int, error) {
	var (
		g      errgroup.Group
		loaded atomic.Int32
		first  atomic.Pointer[error]
	)
	g.SetLimit(warmupParallel)

	for _, sym := range symbols {
		g.Go(func() error {
			snap, err := w.bars.Update(ctx, sym)
			if err != nil {
				err = errors.Wrapf(err, "warmup %s", sym)
				first.CompareAndSwap(nil, &err)
				return nil
			}
			w.lines.Refresh(sym, snap.Bars, snap.From)
			loaded.Add(1)
			w.log.Debug("instrument warm", zap.String("instrument", sym), zap.Int("bars", len(snap.Bars)))
			return nil
		})
	}
	_ = g.Wait()

	if p := first.Load(); p != nil {
		return int(loaded.Load()), *p
	}
	return int(loaded.Load()), nil
}

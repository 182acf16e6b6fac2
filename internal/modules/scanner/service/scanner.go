package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/helper"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	market "signal_bot/internal/modules/market/service"
	position "signal_bot/internal/modules/position/service"
	strategy "signal_bot/internal/modules/strategy/service"
	"signal_bot/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

type Bars interface {
	Update(ctx context.Context, instID string) (market.Snapshot, error)
	Drop(instID string)
}

type Venue interface {
	Positions(ctx context.Context, instID string) ([]models.VenuePosition, error)
	Balance(ctx context.Context, ccy string) (models.Balance, error)
	Universe(ctx context.Context) ([]string, error)
}

type Executor interface {
	Enter(ctx context.Context, sig models.Signal, amount float64, bracket models.Bracket) (*models.Fill, error)
	Close(ctx context.Context, pos models.Position) (models.Order, error)
	StopOut(ctx context.Context, pos models.Position, reverse bool) (*models.Fill, error)
	RoundBracket(ctx context.Context, instID string, b models.Bracket) models.Bracket
}

type Gate interface {
	Pass(ctx context.Context) (bool, error)
}

// Recorder receives scan outcomes for metrics.
type Recorder interface {
	Cycle(mode string, instruments int, took time.Duration)
	Signal(sig models.Signal)
	Exit(instID string, kind models.ExitKind)
	Error(kind apperr.Kind)
}

// Heartbeat is the readiness surface.
type Heartbeat interface {
	SetReady(v bool)
	TouchTick(t time.Time)
}

type Deps struct {
	Gate      Gate
	Bars      Bars
	Venue     Venue
	Executor  Executor
	Detector  *strategy.Detector
	Lines     *indicator.Store
	Positions *position.Store
	Recorder  Recorder
	Heartbeat Heartbeat
}

// Scanner drives the per-tick pipeline: bars, indicators, venue
// reconciliation, exits and entries.
type Scanner struct {
	cfg     config.Scanner
	trading config.Trading
	reverse bool

	gate  Gate
	bars  Bars
	venue Venue
	exec  Executor
	det   *strategy.Detector
	lines *indicator.Store
	pos   *position.Store
	rec   Recorder
	hb    Heartbeat

	log      *zap.Logger
	critical *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu         sync.Mutex
	universe   []string
	universeAt time.Time
	scanning   map[string]bool
}

func NewScanner(cfg *config.Config, d Deps, log *zap.Logger) *Scanner {
	l := log.Named("scanner")
	s := &Scanner{
		cfg:      cfg.Scanner,
		trading:  cfg.Trading,
		reverse:  cfg.Strategy.StopThenReverse,
		gate:     d.Gate,
		bars:     d.Bars,
		venue:    d.Venue,
		exec:     d.Executor,
		det:      d.Detector,
		lines:    d.Lines,
		pos:      d.Positions,
		rec:      d.Recorder,
		hb:       d.Heartbeat,
		log:      l,
		critical: logger.Critical(l),
		sleep:    sleepCtx,
		now:      time.Now,
		scanning: make(map[string]bool),
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.hb == nil {
		s.hb = nopHeartbeat{}
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run scans until ctx is done. Only fatal errors are returned.
func (s *Scanner) Run(ctx context.Context) error {
	s.announce(ctx)
	s.hb.SetReady(true)
	defer s.hb.SetReady(false)

	var err error
	if s.cfg.Mode == ModeMulti {
		err = s.runMulti(ctx)
	} else {
		err = s.runSingle(ctx)
	}
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		s.critical.Error("strategy halted: " + err.Error())
	}
	return err
}

func (s *Scanner) announce(ctx context.Context) {
	target := s.cfg.Symbol
	if s.cfg.Mode == ModeMulti {
		target = "all USDT perpetual swaps"
		if len(s.cfg.Symbols) > 0 {
			target = strings.Join(s.cfg.Symbols, ", ")
		}
	}
	balance := "unknown"
	if b, err := s.venue.Balance(ctx, "USDT"); err != nil {
		s.log.Warn("balance unavailable", zap.Error(err))
	} else {
		balance = fmt.Sprintf("%.4f", b.Total)
	}
	variants := make([]string, 0, len(s.det.Variants()))
	for _, v := range s.det.Variants() {
		variants = append(variants, string(v))
	}
	s.critical.Info(fmt.Sprintf(
		"strategy started\ntime: %s\nmode: %s\nsymbols: %s\nvariants: %s\nleverage: %dx\ncontracts: %v\nUSDT balance: %s",
		s.now().Format(time.DateTime), s.cfg.Mode, target, strings.Join(variants, ", "),
		s.trading.Leverage, s.trading.Amount, balance,
	))
}

func (s *Scanner) runSingle(ctx context.Context) error {
	for ctx.Err() == nil {
		pause := s.cfg.Tick
		ok, err := s.gate.Pass(ctx)
		if err != nil {
			return err
		}
		if ok {
			start := s.now()
			err := s.tickSingle(ctx)
			s.rec.Cycle(ModeSingle, 1, s.now().Sub(start))
			if err != nil {
				if apperr.Is(err, apperr.KindFatal) {
					return err
				}
				s.report(s.cfg.Symbol, err)
				if apperr.Is(err, apperr.KindTransient) {
					pause = s.cfg.ErrorDelay
				}
			}
		}
		if err := s.sleep(ctx, pause); err != nil {
			return nil
		}
	}
	return nil
}

func (s *Scanner) tickSingle(ctx context.Context) error {
	held, err := s.venue.Positions(ctx, s.cfg.Symbol)
	if err != nil {
		return err
	}
	return s.Process(ctx, s.cfg.Symbol, held)
}

func (s *Scanner) runMulti(ctx context.Context) error {
	for ctx.Err() == nil {
		pause := s.cfg.CyclePause
		ok, err := s.gate.Pass(ctx)
		if err != nil {
			return err
		}
		if ok {
			if err := s.cycle(ctx); err != nil {
				if apperr.Is(err, apperr.KindFatal) {
					return err
				}
				s.report("", err)
				pause = max(pause, s.cfg.ErrorDelay)
			}
		}
		if err := s.sleep(ctx, pause); err != nil {
			return nil
		}
	}
	return nil
}

// cycle scans the whole set once, batch after batch.
func (s *Scanner) cycle(ctx context.Context) error {
	start := s.now()
	symbols, err := s.ScanSet(ctx)
	if err != nil {
		return err
	}
	all, err := s.venue.Positions(ctx, "")
	if err != nil {
		return err
	}
	held := make(map[string][]models.VenuePosition, len(all))
	for _, p := range all {
		held[p.InstID] = append(held[p.InstID], p)
	}

	batches := helper.Batches(symbols, s.cfg.BatchSize)
	for i, batch := range batches {
		if err := s.runBatch(ctx, batch, held); err != nil {
			return err
		}
		if i < len(batches)-1 {
			if err := s.sleep(ctx, s.cfg.BatchPause); err != nil {
				return nil
			}
		}
	}
	s.rec.Cycle(ModeMulti, len(symbols), s.now().Sub(start))
	s.log.Debug("cycle done", zap.Int("instruments", len(symbols)), zap.Int("batches", len(batches)))
	return nil
}

// runBatch processes one goroutine per instrument and waits for all of them.
// Only fatal errors escape; an in-flight order protocol is never cut short
// by a sibling failing.
func (s *Scanner) runBatch(ctx context.Context, batch []string, held map[string][]models.VenuePosition) error {
	var g errgroup.Group
	for _, instID := range batch {
		g.Go(func() error {
			err := s.Process(ctx, instID, held[instID])
			if err == nil {
				return nil
			}
			if apperr.Is(err, apperr.KindFatal) {
				return err
			}
			s.report(instID, err)
			return nil
		})
	}
	return g.Wait()
}

// report applies the logging policy for err's kind.
func (s *Scanner) report(instID string, err error) {
	kind := apperr.KindOf(err)
	s.rec.Error(kind)
	l := s.log
	if instID != "" {
		l = l.With(zap.String("instrument", instID))
	}
	switch kind {
	case apperr.KindData:
		l.Debug("not enough data", zap.Error(err))
	case apperr.KindOrder:
		l.Error("order failed", zap.Error(err))
	case apperr.KindFatal:
		l.Error("fatal", zap.Error(err))
	default:
		l.Warn("tick aborted", zap.Error(err))
	}
}

type nopRecorder struct{}

func (nopRecorder) Cycle(string, int, time.Duration) {}
func (nopRecorder) Signal(models.Signal)             {}
func (nopRecorder) Exit(string, models.ExitKind)     {}
func (nopRecorder) Error(apperr.Kind)                {}

type nopHeartbeat struct{}

func (nopHeartbeat) SetReady(bool)        {}
func (nopHeartbeat) TouchTick(time.Time) {}

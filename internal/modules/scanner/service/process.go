package service

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	executor "signal_bot/internal/modules/executor/service"
	market "signal_bot/internal/modules/market/service"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Process runs one tick for instID. held is what the venue reports for the
// instrument at the start of the tick.
func (s *Scanner) Process(ctx context.Context, instID string, held []models.VenuePosition) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "scanner.process")
	defer span.Finish()
	span.SetTag("instrument", instID)

	snap, err := s.bars.Update(ctx, instID)
	if err != nil {
		return err
	}
	set := s.lines.Refresh(instID, snap.Bars, snap.From)
	s.hb.TouchTick(s.now())

	exposed := s.reconcile(instID, held)

	pos := s.pos.Get(instID)
	switch pos.State {
	case models.StateOpen:
		return s.manageExit(ctx, pos, snap, set)
	case models.StateFlat:
		if exposed {
			s.log.Debug("venue holds a position, entry blocked", zap.String("instrument", instID))
			return nil
		}
		return s.tryEnter(ctx, snap, set)
	}
	return nil
}

// reconcile returns true when the venue holds exposure on instID. An open
// local position the venue no longer has was closed server-side and goes
// back to flat.
func (s *Scanner) reconcile(instID string, held []models.VenuePosition) bool {
	exposed := false
	for _, p := range held {
		if p.InstID == instID && p.Size > 0 {
			exposed = true
			break
		}
	}
	pos := s.pos.Get(instID)
	if exposed || pos.State != models.StateOpen {
		return exposed
	}

	if _, err := s.pos.BeginExit(instID); err != nil {
		return exposed
	}
	if err := s.pos.ConfirmExit(instID); err != nil {
		s.log.Error("venue exit not recorded", zap.String("instrument", instID), zap.Error(err))
		return exposed
	}
	s.rec.Exit(instID, models.ExitVenue)
	s.critical.Info(fmt.Sprintf("position closed by venue\nsymbol: %s\nvariant: %s\nside: %s\ntime: %s\nentry: %.8g\nstop: %.8g\ntake-profit: %.8g",
		instID, pos.Variant, pos.Side, s.now().Format(time.DateTime), pos.EntryPrice, pos.StopLevel, pos.TakeProfitLevel))
	return exposed
}

func (s *Scanner) tryEnter(ctx context.Context, snap market.Snapshot, set indicator.Set) error {
	sig, ok, err := s.det.Entry(snap.InstID, snap.Bars, set)
	if err != nil || !ok {
		return err
	}
	s.rec.Signal(sig)
	log := s.log.With(zap.String("instrument", sig.InstID), zap.String("variant", string(sig.Variant)))

	if err := s.pos.Reserve(sig.InstID, sig.Variant, sig.Side); err != nil {
		log.Debug("signal ignored", zap.Error(err))
		return nil
	}

	var bracket models.Bracket
	if sig.Variant.IsEMA() {
		lv := s.det.Levels(sig.Variant, sig.Side, sig.Price, snap.Bars)
		bracket = s.exec.RoundBracket(ctx, sig.InstID, s.det.Bracket(sig.Variant, lv))
	}

	fill, err := s.exec.Enter(ctx, sig, s.trading.Amount, bracket)
	if fill == nil {
		if aerr := s.pos.Abort(sig.InstID); aerr != nil {
			log.Error("abort failed", zap.Error(aerr))
		}
		return err
	}

	lv := models.Levels{Stop: bracket.StopLoss, TakeProfit: bracket.TakeProfit}
	if !sig.Variant.IsEMA() {
		lv = s.det.Levels(sig.Variant, sig.Side, fill.Price, snap.Bars)
	}
	p, cerr := s.pos.Confirm(sig.InstID, *fill, lv)
	if cerr != nil {
		log.Error("entry not recorded", zap.Error(cerr))
		return err
	}

	s.critical.Info(fmt.Sprintf("open %s (%s)\nsymbol: %s\ntime: %s\nprice: %.8g\ncontracts: %v\nstop: %.8g\ntake-profit: %.8g\nconditions: %s",
		p.Side, p.Variant, p.InstID, s.now().Format(time.DateTime), p.EntryPrice, p.Quantity, p.StopLevel, p.TakeProfitLevel, sig.Reason))
	return err
}

func (s *Scanner) manageExit(ctx context.Context, pos models.Position, snap market.Snapshot, set indicator.Set) error {
	d := s.det.Exit(pos, snap.Bars, set, snap.Last)
	if d.Kind == models.ExitNone {
		return nil
	}
	log := s.log.With(zap.String("instrument", pos.InstID), zap.String("exit", string(d.Kind)))

	p, err := s.pos.BeginExit(pos.InstID)
	if err != nil {
		log.Debug("exit skipped", zap.Error(err))
		return nil
	}

	if d.Kind == models.ExitTakeProfit {
		if _, err := s.exec.Close(ctx, p); err != nil {
			s.cancelExit(p.InstID)
			return err
		}
		s.confirmExit(p, d)
		return nil
	}

	fill, err := s.exec.StopOut(ctx, p, s.reverse)
	if err != nil && !errors.Is(err, executor.ErrReverseFailed) {
		s.cancelExit(p.InstID)
		return err
	}
	s.confirmExit(p, d)
	if err != nil || fill == nil {
		return err
	}

	side := p.Side.Opposite()
	if err := s.pos.Reserve(p.InstID, p.Variant, side); err != nil {
		// the reverse order is live on the venue; reconciliation blocks new
		// entries until it is gone
		log.Error("reverse not recorded", zap.Error(err))
		return nil
	}
	lv := s.det.Levels(p.Variant, side, fill.Price, snap.Bars)
	rp, err := s.pos.Confirm(p.InstID, *fill, lv)
	if err != nil {
		log.Error("reverse not recorded", zap.Error(err))
		return nil
	}
	s.critical.Info(fmt.Sprintf("reverse into %s (%s)\nsymbol: %s\ntime: %s\nprice: %.8g\ncontracts: %v\nstop: %.8g\ntake-profit: %.8g",
		rp.Side, rp.Variant, rp.InstID, s.now().Format(time.DateTime), rp.EntryPrice, rp.Quantity, rp.StopLevel, rp.TakeProfitLevel))
	return nil
}

func (s *Scanner) cancelExit(instID string) {
	if err := s.pos.CancelExit(instID); err != nil {
		s.log.Error("cancel exit failed", zap.String("instrument", instID), zap.Error(err))
	}
}

func (s *Scanner) confirmExit(p models.Position, d models.ExitDecision) {
	if err := s.pos.ConfirmExit(p.InstID); err != nil {
		s.log.Error("exit not recorded", zap.String("instrument", p.InstID), zap.Error(err))
		return
	}
	s.rec.Exit(p.InstID, d.Kind)
	title := "take-profit close"
	if d.Kind == models.ExitStop {
		title = "stop-loss close"
	}
	s.critical.Info(fmt.Sprintf("%s (%s)\nsymbol: %s\nside: %s\ntime: %s\nentry: %.8g\nprice: %.8g\nreason: %s",
		title, p.Variant, p.InstID, p.Side, s.now().Format(time.DateTime), p.EntryPrice, d.Price, d.Reason))
}

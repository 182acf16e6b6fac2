package service

import (
	"fmt"

	"signal_bot/internal/apperr"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"

	"github.com/pkg/errors"
)

// Detector evaluates the configured variants on the last closed bar and
// derives protective levels and local exits for open positions.
type Detector struct {
	variants []models.Variant
	st       config.Strategy
}

func NewDetector(cfg *config.Config) (*Detector, error) {
	d := &Detector{st: cfg.Strategy}
	for _, raw := range cfg.Trading.Variants {
		v, ok := models.ParseVariant(raw)
		if !ok {
			return nil, apperr.Fatal("detector", errors.Errorf("unknown variant %q", raw))
		}
		d.variants = append(d.variants, v)
	}
	if len(d.variants) == 0 {
		return nil, apperr.Fatal("detector", errors.New("no variants configured"))
	}
	return d, nil
}

func (d *Detector) Variants() []models.Variant { return d.variants }

func (d *Detector) maVariant(v models.Variant) config.MAVariant {
	if v == models.VariantMA60 {
		return d.st.MA60
	}
	return d.st.MA25
}

// Indicators lists the lines the configured variants read.
func (d *Detector) Indicators() []indicator.Spec {
	var specs []indicator.Spec
	for _, v := range d.variants {
		switch v {
		case models.VariantMA25, models.VariantMA60:
			specs = append(specs, indicator.SMA(d.maVariant(v).Window))
		case models.VariantEMAOriginal, models.VariantEMANew:
			specs = append(specs, ema5, ema10, ema24, ema50, ema150)
		}
	}
	return specs
}

// Entry returns the first firing variant in configured order. A data error
// is returned only when no variant fired and at least one lacked data.
func (d *Detector) Entry(instID string, bars []models.Bar, set indicator.Set) (models.Signal, bool, error) {
	var dataErr error
	for _, v := range d.variants {
		sig, ok, err := d.evaluate(v, bars, set)
		if err != nil {
			if dataErr == nil {
				dataErr = err
			}
			continue
		}
		if ok {
			sig.InstID = instID
			sig.Variant = v
			sig.Price = bars[len(bars)-1].Close
			return sig, true, nil
		}
	}
	return models.Signal{}, false, dataErr
}

func (d *Detector) evaluate(v models.Variant, bars []models.Bar, set indicator.Set) (models.Signal, bool, error) {
	switch v {
	case models.VariantMA25, models.VariantMA60:
		spec := indicator.SMA(d.maVariant(v).Window)
		ma, ok := set.Get(spec)
		if !ok {
			return models.Signal{}, false, apperr.Dataf("ma cross", "%s not computed", spec.ID())
		}
		long, err := MACrossLong(bars, ma)
		if err != nil {
			return models.Signal{}, false, err
		}
		n := len(bars)
		if long {
			return models.Signal{Side: models.PosLong, Reason: fmt.Sprintf(
				"bar[-2] low %.8g >= %s %.8g, close %.8g > %s; bar[-3] low %.8g <= %s %.8g",
				bars[n-2].Low, spec.ID(), ma.At(-2), bars[n-2].Close, spec.ID(), bars[n-3].Low, spec.ID(), ma.At(-3),
			)}, true, nil
		}
		short, _ := MACrossShort(bars, ma)
		if short {
			return models.Signal{Side: models.PosShort, Reason: fmt.Sprintf(
				"bar[-2] high %.8g < %s %.8g, close %.8g < %s; bar[-3] high %.8g >= %s %.8g",
				bars[n-2].High, spec.ID(), ma.At(-2), bars[n-2].Close, spec.ID(), bars[n-3].High, spec.ID(), ma.At(-3),
			)}, true, nil
		}
		return models.Signal{}, false, nil

	case models.VariantEMAOriginal:
		ok, err := EMADominance(bars, set)
		if err != nil || !ok {
			return models.Signal{}, false, err
		}
		return models.Signal{Side: models.PosLong, Reason: emaReason("EMA150 dominance breakout", bars, set)}, true, nil

	case models.VariantEMANew:
		ok, err := EMAUniqueExtreme(bars, set)
		if err != nil || !ok {
			return models.Signal{}, false, err
		}
		return models.Signal{Side: models.PosLong, Reason: emaReason("unique 53-bar closing high", bars, set)}, true, nil
	}
	return models.Signal{}, false, apperr.Fatal("detector", errors.Errorf("unknown variant %q", v))
}

func emaReason(title string, bars []models.Bar, set indicator.Set) string {
	b := bars[len(bars)-2]
	return fmt.Sprintf("%s: open %.8g close %.8g high %.8g | EMA5 %.8g EMA10 %.8g EMA24 %.8g EMA50 %.8g EMA150 %.8g",
		title, b.Open, b.Close, b.High,
		set[ema5.ID()].At(-2), set[ema10.ID()].At(-2), set[ema24.ID()].At(-2), set[ema50.ID()].At(-2), set[ema150.ID()].At(-2))
}

// Levels fixes stop and take-profit at entry.
func (d *Detector) Levels(v models.Variant, side models.PosSide, entry float64, bars []models.Bar) models.Levels {
	sign := 1.0
	if side == models.PosShort {
		sign = -1
	}
	switch v {
	case models.VariantMA25, models.VariantMA60:
		mv := d.maVariant(v)
		stop := entry - sign*mv.StopPoints
		if mv.StopPoints <= 0 {
			stop = RollingExtreme(bars, d.st.StopLookback, side)
		}
		return models.Levels{Stop: stop, TakeProfit: entry + sign*mv.TakeProfitPoints}
	case models.VariantEMAOriginal:
		return models.Levels{
			Stop:       entry * (1 - d.st.EMAOriginal.StopLossPct),
			TakeProfit: entry * (1 + d.st.EMAOriginal.TakeProfitPct),
		}
	case models.VariantEMANew:
		return models.Levels{Stop: entry * (1 - d.st.EMANew.StopLossPct)}
	}
	return models.Levels{}
}

// Bracket is what the venue enforces server-side for the variant.
func (d *Detector) Bracket(v models.Variant, lv models.Levels) models.Bracket {
	switch v {
	case models.VariantEMAOriginal:
		return models.Bracket{TakeProfit: lv.TakeProfit, StopLoss: lv.Stop}
	case models.VariantEMANew:
		return models.Bracket{StopLoss: lv.Stop}
	}
	return models.Bracket{}
}

// RollingExtreme is the lowest low (long) or highest high (short) over the
// trailing window bars, or over all bars when fewer are available.
func RollingExtreme(bars []models.Bar, window int, side models.PosSide) float64 {
	if len(bars) == 0 {
		return 0
	}
	from := max(0, len(bars)-window)
	if side == models.PosShort {
		hi := bars[from].High
		for _, b := range bars[from+1:] {
			hi = max(hi, b.High)
		}
		return hi
	}
	lo := bars[from].Low
	for _, b := range bars[from+1:] {
		lo = min(lo, b.Low)
	}
	return lo
}

// Exit checks the locally polled exits against the latest price. Exits the
// venue enforces through the bracket are not reported here.
func (d *Detector) Exit(pos models.Position, bars []models.Bar, set indicator.Set, last float64) models.ExitDecision {
	if pos.State != models.StateOpen || last <= 0 {
		return models.ExitDecision{}
	}
	switch pos.Variant {
	case models.VariantMA25, models.VariantMA60:
		switch pos.Side {
		case models.PosLong:
			if pos.TakeProfitLevel > 0 && last >= pos.TakeProfitLevel {
				return models.ExitDecision{Kind: models.ExitTakeProfit, Price: last, Reason: fmt.Sprintf("price %.8g >= take-profit %.8g", last, pos.TakeProfitLevel)}
			}
			if last <= pos.StopLevel {
				return models.ExitDecision{Kind: models.ExitStop, Price: last, Reason: fmt.Sprintf("price %.8g <= stop %.8g", last, pos.StopLevel)}
			}
		case models.PosShort:
			if pos.TakeProfitLevel > 0 && last <= pos.TakeProfitLevel {
				return models.ExitDecision{Kind: models.ExitTakeProfit, Price: last, Reason: fmt.Sprintf("price %.8g <= take-profit %.8g", last, pos.TakeProfitLevel)}
			}
			if last >= pos.StopLevel {
				return models.ExitDecision{Kind: models.ExitStop, Price: last, Reason: fmt.Sprintf("price %.8g >= stop %.8g", last, pos.StopLevel)}
			}
		}
	case models.VariantEMANew:
		e5, ok := set.Get(ema5)
		if !ok || pos.EntryPrice <= 0 || len(bars) == 0 {
			return models.ExitDecision{}
		}
		gain := (last - pos.EntryPrice) / pos.EntryPrice
		closeNow := bars[len(bars)-1].Close
		if gain > d.st.EMANew.TakeProfitGain && closeNow < e5.At(-1) {
			return models.ExitDecision{Kind: models.ExitTakeProfit, Price: last, Reason: fmt.Sprintf(
				"gain %.2f%% with close %.8g under EMA5 %.8g", gain*100, closeNow, e5.At(-1))}
		}
	}
	return models.ExitDecision{}
}

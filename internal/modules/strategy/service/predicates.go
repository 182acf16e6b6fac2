package service

import (
	"signal_bot/internal/apperr"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
)

var (
	ema5   = indicator.EMA(5)
	ema10  = indicator.EMA(10)
	ema24  = indicator.EMA(24)
	ema50  = indicator.EMA(50)
	ema150 = indicator.EMA(150)
)

const (
	// bars whose EMA150 must dominate, offsets -3 through -53
	dominanceLookback = 51
	// trailing window of the unique-extreme check, ending at bar[-2]
	extremeWindow = 53
)

// MACrossLong: the closed bar sits fully above the MA after the bar before
// touched it from below.
func MACrossLong(bars []models.Bar, ma indicator.Line) (bool, error) {
	if err := needCross(bars, ma); err != nil {
		return false, err
	}
	n := len(bars)
	b2, b3 := bars[n-2], bars[n-3]
	return b2.Low >= ma.At(-2) && b2.Close > ma.At(-2) && b3.Low <= ma.At(-3), nil
}

// MACrossShort mirrors MACrossLong on highs.
func MACrossShort(bars []models.Bar, ma indicator.Line) (bool, error) {
	if err := needCross(bars, ma); err != nil {
		return false, err
	}
	n := len(bars)
	b2, b3 := bars[n-2], bars[n-3]
	return b2.Close < ma.At(-2) && b2.High < ma.At(-2) && b3.High >= ma.At(-3), nil
}

func needCross(bars []models.Bar, ma indicator.Line) error {
	if len(bars) < 3 || ma.Len() != len(bars) {
		return apperr.Dataf("ma cross", "need 3 aligned bars, have %d bars and %d values", len(bars), ma.Len())
	}
	if !ma.Defined(-3) {
		return apperr.Dataf("ma cross", "ma undefined at bar[-3], first value at %d of %d", ma.From, ma.Len())
	}
	return nil
}

func lines(set indicator.Set, specs ...indicator.Spec) ([]indicator.Line, error) {
	out := make([]indicator.Line, len(specs))
	for i, spec := range specs {
		l, ok := set.Get(spec)
		if !ok {
			return nil, apperr.Dataf("ema", "%s not computed", spec.ID())
		}
		out[i] = l
	}
	return out, nil
}

// EMADominance: on the closed bar EMA150 is above the four short EMAs and
// the high, the bar opens below all short EMAs and closes above all of them,
// and EMA150 stayed on top for the 51 bars before it.
func EMADominance(bars []models.Bar, set indicator.Set) (bool, error) {
	ls, err := lines(set, ema5, ema10, ema24, ema50, ema150)
	if err != nil {
		return false, err
	}
	n := len(bars)
	if n < 2+dominanceLookback {
		return false, apperr.Dataf("ema dominance", "need %d bars, have %d", 2+dominanceLookback, n)
	}
	long := ls[4]
	if long.Len() != n || !long.Defined(-2) {
		return false, apperr.Dataf("ema dominance", "EMA150 undefined at bar[-2]")
	}
	short := ls[:4]

	dominates := func(i int) bool {
		for _, s := range short {
			if !(long.At(i) > s.At(i)) {
				return false
			}
		}
		return true
	}

	i := n - 2
	b := bars[i]
	if !dominates(i) || !(b.High < long.At(i)) {
		return false, nil
	}
	lo, hi := short[0].At(i), short[0].At(i)
	for _, s := range short[1:] {
		lo = min(lo, s.At(i))
		hi = max(hi, s.At(i))
	}
	if !(b.Open < lo && b.Close > hi) {
		return false, nil
	}
	for off := 3; off <= 2+dominanceLookback; off++ {
		if !dominates(n - off) {
			return false, nil
		}
	}
	return true, nil
}

// EMAUniqueExtreme: bullish alignment on the closed bar, the closed bar is
// the only one in the trailing 53 that opened under EMA5 and closed at the
// 53-bar high, and price dipped under EMA150 somewhere in that window.
func EMAUniqueExtreme(bars []models.Bar, set indicator.Set) (bool, error) {
	ls, err := lines(set, ema5, ema10, ema24, ema150)
	if err != nil {
		return false, err
	}
	n := len(bars)
	need := 2 + 2*(extremeWindow-1)
	if n < need {
		return false, apperr.Dataf("ema unique extreme", "need %d bars, have %d", need, n)
	}
	e5, e10, e24, e150 := ls[0], ls[1], ls[2], ls[3]
	if e150.Len() != n || !e150.Defined(-2) {
		return false, apperr.Dataf("ema unique extreme", "EMA150 undefined at bar[-2]")
	}

	i := n - 2
	if !(e5.At(i) > e10.At(i) && e10.At(i) > e24.At(i) && e24.At(i) > e150.At(i)) {
		return false, nil
	}

	basic := func(j int) bool {
		if !(bars[j].Open < e5.At(j)) {
			return false
		}
		hi := bars[j].Close
		for k := j - extremeWindow + 1; k < j; k++ {
			hi = max(hi, bars[k].Close)
		}
		return bars[j].Close == hi
	}

	if !basic(i) {
		return false, nil
	}
	start := i - extremeWindow + 1
	dipped := false
	for j := start; j <= i; j++ {
		if j != i && basic(j) {
			return false, nil
		}
		if bars[j].Low < e150.At(j) {
			dipped = true
		}
	}
	return dipped, nil
}

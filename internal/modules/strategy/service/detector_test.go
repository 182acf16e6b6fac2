package service

import (
	"testing"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(variants ...string) *config.Config {
	cfg := &config.Config{}
	cfg.Trading.Variants = variants
	cfg.Strategy.MA25 = config.MAVariant{Window: 25, TakeProfitPoints: 2000}
	cfg.Strategy.MA60 = config.MAVariant{Window: 60, TakeProfitPoints: 750}
	cfg.Strategy.StopLookback = 144
	cfg.Strategy.EMAOriginal.TakeProfitPct = 0.04
	cfg.Strategy.EMAOriginal.StopLossPct = 0.02
	cfg.Strategy.EMANew.StopLossPct = 0.05
	cfg.Strategy.EMANew.TakeProfitGain = 0.20
	return cfg
}

func mkBars(n int, f func(i int) models.Bar) []models.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		out[i] = f(i)
		out[i].Timestamp = t0.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func flat(n int, v float64) indicator.Line {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return indicator.Line{Values: vals}
}

func crossBars(lows, closes []float64) []models.Bar {
	return mkBars(len(lows), func(i int) models.Bar {
		return models.Bar{Open: closes[i], Low: lows[i], Close: closes[i], High: closes[i] + 0.5}
	})
}

func TestMACrossLongLiteralSequence(t *testing.T) {
	ma := flat(3, 10)

	ok, err := MACrossLong(crossBars([]float64{9, 11, 12}, []float64{9.5, 12, 12.5}), ma)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MACrossLong(crossBars([]float64{10.5, 11, 12}, []float64{9.5, 12, 12.5}), ma)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMACrossShort(t *testing.T) {
	ma := flat(3, 10)
	bars := mkBars(3, func(i int) models.Bar {
		return []models.Bar{
			{Open: 10.5, High: 11, Low: 10, Close: 10.2},
			{Open: 9.5, High: 9.8, Low: 8, Close: 8.5},
			{Open: 8.5, High: 8.7, Low: 8, Close: 8.1},
		}[i]
	})
	ok, err := MACrossShort(bars, ma)
	require.NoError(t, err)
	assert.True(t, ok)

	long, err := MACrossLong(bars, ma)
	require.NoError(t, err)
	assert.False(t, long)
}

func TestMACrossNeedsData(t *testing.T) {
	_, err := MACrossLong(crossBars([]float64{9, 11}, []float64{9.5, 12}), flat(2, 10))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindData))

	warm := indicator.Line{Values: []float64{0, 0, 10}, From: 2}
	_, err = MACrossLong(crossBars([]float64{9, 11, 12}, []float64{9.5, 12, 12.5}), warm)
	assert.True(t, apperr.Is(err, apperr.KindData))
}

func dominanceSet(n int) indicator.Set {
	return indicator.Set{
		"EMA5":   flat(n, 90),
		"EMA10":  flat(n, 91),
		"EMA24":  flat(n, 92),
		"EMA50":  flat(n, 93),
		"EMA150": flat(n, 100),
	}
}

func dominanceBars(n int) []models.Bar {
	return mkBars(n, func(i int) models.Bar {
		if i == n-2 {
			return models.Bar{Open: 80, High: 96, Low: 79, Close: 95}
		}
		return models.Bar{Open: 95, High: 96, Low: 94, Close: 95}
	})
}

func TestEMADominance(t *testing.T) {
	const n = 60
	bars := dominanceBars(n)

	ok, err := EMADominance(bars, dominanceSet(n))
	require.NoError(t, err)
	assert.True(t, ok)

	// EMA150 loses the top spot inside the lookback
	set := dominanceSet(n)
	set["EMA10"].Values[n-30] = 101
	ok, err = EMADominance(bars, set)
	require.NoError(t, err)
	assert.False(t, ok)

	// outside the lookback it does not matter
	set = dominanceSet(n)
	set["EMA10"].Values[n-54] = 101
	ok, err = EMADominance(bars, set)
	require.NoError(t, err)
	assert.True(t, ok)

	// high above EMA150 on the closed bar
	bars[n-2].High = 100.5
	ok, err = EMADominance(bars, dominanceSet(n))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEMADominanceShortestHistory(t *testing.T) {
	// bar[-53] is the oldest bar the lookback reads
	ok, err := EMADominance(dominanceBars(53), dominanceSet(53))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = EMADominance(dominanceBars(52), dominanceSet(52))
	assert.True(t, apperr.Is(err, apperr.KindData))
}

func TestEMADominanceNeedsData(t *testing.T) {
	_, err := EMADominance(dominanceBars(40), dominanceSet(40))
	assert.True(t, apperr.Is(err, apperr.KindData))

	set := dominanceSet(60)
	delete(set, "EMA50")
	_, err = EMADominance(dominanceBars(60), set)
	assert.True(t, apperr.Is(err, apperr.KindData))
}

func extremeSet(n int) indicator.Set {
	return indicator.Set{
		"EMA5":   flat(n, 50),
		"EMA10":  flat(n, 40),
		"EMA24":  flat(n, 30),
		"EMA50":  flat(n, 25),
		"EMA150": flat(n, 20),
	}
}

func extremeBars(n int) []models.Bar {
	return mkBars(n, func(i int) models.Bar {
		switch i {
		case n - 2:
			return models.Bar{Open: 45, High: 101, Low: 44, Close: 100}
		case n - 10:
			return models.Bar{Open: 60, High: 35, Low: 15, Close: 30}
		}
		return models.Bar{Open: 60, High: 35, Low: 25, Close: 30}
	})
}

func TestEMAUniqueExtreme(t *testing.T) {
	const n = 120
	ok, err := EMAUniqueExtreme(extremeBars(n), extremeSet(n))
	require.NoError(t, err)
	assert.True(t, ok)

	// a second bar in the window meets the basic condition
	bars := extremeBars(n)
	bars[n-20] = models.Bar{Timestamp: bars[n-20].Timestamp, Open: 45, High: 101, Low: 44, Close: 100}
	ok, err = EMAUniqueExtreme(bars, extremeSet(n))
	require.NoError(t, err)
	assert.False(t, ok)

	// no pullback under EMA150
	bars = extremeBars(n)
	bars[n-10].Low = 25
	ok, err = EMAUniqueExtreme(bars, extremeSet(n))
	require.NoError(t, err)
	assert.False(t, ok)

	// broken alignment
	set := extremeSet(n)
	set["EMA10"].Values[n-2] = 60
	ok, err = EMAUniqueExtreme(extremeBars(n), set)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEMAUniqueExtremeNeedsData(t *testing.T) {
	_, err := EMAUniqueExtreme(extremeBars(100), extremeSet(100))
	assert.True(t, apperr.Is(err, apperr.KindData))
}

func TestDetectorEntryOrderAndPrice(t *testing.T) {
	d, err := NewDetector(testConfig("ema_original", "ma25"))
	require.NoError(t, err)
	assert.Equal(t, []models.Variant{models.VariantEMAOriginal, models.VariantMA25}, d.Variants())

	ids := map[string]bool{}
	for _, s := range d.Indicators() {
		ids[s.ID()] = true
	}
	assert.True(t, ids["SMA25"])
	assert.True(t, ids["EMA150"])

	const n = 60
	set := dominanceSet(n)
	set["SMA25"] = flat(n, 1000)
	bars := dominanceBars(n)
	bars[n-1].Close = 97

	sig, ok, err := d.Entry("BTC-USDT-SWAP", bars, set)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.VariantEMAOriginal, sig.Variant)
	assert.Equal(t, models.PosLong, sig.Side)
	assert.Equal(t, 97.0, sig.Price)
	assert.Equal(t, "BTC-USDT-SWAP", sig.InstID)
	assert.Contains(t, sig.Reason, "EMA150 100")
}

func TestDetectorEntryReportsDataError(t *testing.T) {
	d, err := NewDetector(testConfig("ema_new"))
	require.NoError(t, err)

	_, ok, err := d.Entry("BTC-USDT-SWAP", extremeBars(50), extremeSet(50))
	assert.False(t, ok)
	assert.True(t, apperr.Is(err, apperr.KindData))
}

func TestNewDetectorRejectsUnknownVariant(t *testing.T) {
	_, err := NewDetector(testConfig("rsi"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindFatal))
}

func TestLevels(t *testing.T) {
	cfg := testConfig("ma25", "ma60", "ema_original", "ema_new")
	cfg.Strategy.MA60.StopPoints = 3000
	d, err := NewDetector(cfg)
	require.NoError(t, err)

	bars := mkBars(200, func(i int) models.Bar {
		return models.Bar{Low: float64(1000 + i), High: float64(2000 + i), Close: 1500}
	})

	lv := d.Levels(models.VariantMA25, models.PosLong, 30000, bars)
	assert.Equal(t, 1056.0, lv.Stop)
	assert.Equal(t, 32000.0, lv.TakeProfit)

	lv = d.Levels(models.VariantMA25, models.PosShort, 30000, bars)
	assert.Equal(t, 2199.0, lv.Stop)
	assert.Equal(t, 28000.0, lv.TakeProfit)

	lv = d.Levels(models.VariantMA60, models.PosShort, 30000, bars)
	assert.Equal(t, 33000.0, lv.Stop)
	assert.Equal(t, 29250.0, lv.TakeProfit)

	lv = d.Levels(models.VariantEMAOriginal, models.PosLong, 100, bars)
	assert.InDelta(t, 98, lv.Stop, 1e-9)
	assert.InDelta(t, 104, lv.TakeProfit, 1e-9)
	assert.Equal(t, models.Bracket{TakeProfit: lv.TakeProfit, StopLoss: lv.Stop}, d.Bracket(models.VariantEMAOriginal, lv))

	lv = d.Levels(models.VariantEMANew, models.PosLong, 100, bars)
	assert.InDelta(t, 95, lv.Stop, 1e-9)
	assert.Zero(t, lv.TakeProfit)
	assert.Equal(t, models.Bracket{StopLoss: lv.Stop}, d.Bracket(models.VariantEMANew, lv))
	assert.True(t, d.Bracket(models.VariantMA25, lv).Empty())
}

func TestRollingExtremeShortHistory(t *testing.T) {
	bars := mkBars(3, func(i int) models.Bar {
		return models.Bar{Low: []float64{5, 3, 4}[i], High: []float64{7, 9, 8}[i]}
	})
	assert.Equal(t, 3.0, RollingExtreme(bars, 144, models.PosLong))
	assert.Equal(t, 9.0, RollingExtreme(bars, 144, models.PosShort))
	assert.Equal(t, 4.0, RollingExtreme(bars, 1, models.PosLong))
}

func TestExit(t *testing.T) {
	d, err := NewDetector(testConfig("ma25", "ema_new"))
	require.NoError(t, err)

	long := models.Position{State: models.StateOpen, Side: models.PosLong, Variant: models.VariantMA25,
		EntryPrice: 30000, StopLevel: 29000, TakeProfitLevel: 32000}
	assert.Equal(t, models.ExitNone, d.Exit(long, nil, nil, 31000).Kind)
	assert.Equal(t, models.ExitTakeProfit, d.Exit(long, nil, nil, 32000).Kind)
	assert.Equal(t, models.ExitStop, d.Exit(long, nil, nil, 28999).Kind)

	short := models.Position{State: models.StateOpen, Side: models.PosShort, Variant: models.VariantMA25,
		EntryPrice: 30000, StopLevel: 31000, TakeProfitLevel: 28000}
	assert.Equal(t, models.ExitTakeProfit, d.Exit(short, nil, nil, 27990).Kind)
	assert.Equal(t, models.ExitStop, d.Exit(short, nil, nil, 31000).Kind)

	pending := long
	pending.State = models.StatePendingExit
	assert.Equal(t, models.ExitNone, d.Exit(pending, nil, nil, 40000).Kind)

	emaNew := models.Position{State: models.StateOpen, Side: models.PosLong, Variant: models.VariantEMANew, EntryPrice: 100, StopLevel: 95}
	bars := mkBars(3, func(int) models.Bar { return models.Bar{Close: 125} })
	set := indicator.Set{"EMA5": flat(3, 130)}
	assert.Equal(t, models.ExitTakeProfit, d.Exit(emaNew, bars, set, 125).Kind)

	// still above EMA5
	set = indicator.Set{"EMA5": flat(3, 120)}
	assert.Equal(t, models.ExitNone, d.Exit(emaNew, bars, set, 125).Kind)
	// gain too small
	set = indicator.Set{"EMA5": flat(3, 130)}
	assert.Equal(t, models.ExitNone, d.Exit(emaNew, bars, set, 115).Kind)
}

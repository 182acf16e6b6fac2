package indicator

import (
	"math/rand"
	"testing"
	"time"

	"signal_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFrom(closes ...float64) []models.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{Timestamp: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func randomBars(n int, seed int64) []models.Bar {
	r := rand.New(rand.NewSource(seed))
	cs := make([]float64, n)
	px := 100.0
	for i := range cs {
		px += r.Float64() - 0.5
		cs[i] = px
	}
	return barsFrom(cs...)
}

func TestLinesMatchBarCount(t *testing.T) {
	specs := []Spec{SMA(25), SMA(60), EMA(5), EMA(150)}
	for _, n := range []int{0, 1, 24, 25, 149, 150, 300} {
		set := Compute(randomBars(n, 1), specs)
		for _, spec := range specs {
			assert.Equal(t, n, set[spec.ID()].Len(), "%s n=%d", spec.ID(), n)
		}
	}
}

func TestSMA(t *testing.T) {
	set := Compute(barsFrom(1, 2, 3, 4, 5), []Spec{SMA(3)})
	l := set["SMA3"]

	assert.Equal(t, 2, l.From)
	assert.Equal(t, []float64{0, 0, 2, 3, 4}, l.Values)
	assert.False(t, l.Defined(1))
	assert.True(t, l.Defined(-1))
	assert.Equal(t, 4.0, l.At(-1))
	assert.Equal(t, 0.0, l.At(10))
}

func TestEMAConstantSeriesIsExact(t *testing.T) {
	for _, w := range []int{5, 10, 24, 50, 150} {
		cs := make([]float64, 200)
		for i := range cs {
			cs[i] = 0.1
		}
		l := Compute(barsFrom(cs...), []Spec{EMA(w)})[EMA(w).ID()]
		for i := w - 1; i < len(cs); i++ {
			require.Equal(t, 0.1, l.Values[i], "EMA%d[%d]", w, i)
		}
		for i := 0; i < w-1; i++ {
			require.Zero(t, l.Values[i])
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	l := Compute(barsFrom(10, 20, 30, 40, 20), []Spec{EMA(3)})["EMA3"]
	// seed SMA3 = 20, then alpha 0.5: 30, 25
	assert.Equal(t, []float64{0, 0, 20, 30, 25}, l.Values)
	assert.Equal(t, 2, l.From)

	one := Compute(barsFrom(7, 9), []Spec{EMA(1)})["EMA1"]
	assert.Equal(t, []float64{7, 9}, one.Values)
}

func TestEMASeedIgnoresEarlierCloses(t *testing.T) {
	// the seed only averages the first window
	a := Compute(barsFrom(1000, 10, 20, 30, 40), []Spec{EMA(3)})["EMA3"]
	assert.Zero(t, a.Values[1])
	assert.InDelta(t, 1030.0/3, a.Values[2], 1e-9)
	assert.InDelta(t, (1030.0/3+30)/2, a.Values[3], 1e-9)

	b := Compute(barsFrom(10, 20, 30, 40), []Spec{EMA(3)})["EMA3"]
	assert.Equal(t, 20.0, b.Values[2])
	assert.Equal(t, 30.0, b.Values[3])
}

func TestStoreIncrementalMatchesFull(t *testing.T) {
	specs := []Spec{SMA(25), EMA(5), EMA(150)}
	bars := randomBars(260, 7)
	st := NewStore(specs...)

	st.Refresh("BTC-USDT-SWAP", bars[:200], 0)

	// forming bar updated in place
	upd := append([]models.Bar(nil), bars[:200]...)
	upd[199].Close += 3
	got := st.Refresh("BTC-USDT-SWAP", upd, 199)
	assertSame(t, Compute(upd, specs), got)

	// new bars appended, previous one finalised
	upd = append(upd[:199:199], bars[199:260]...)
	got = st.Refresh("BTC-USDT-SWAP", upd, 199)
	assertSame(t, Compute(upd, specs), got)
}

func TestStoreRecomputesAfterTrim(t *testing.T) {
	specs := []Spec{SMA(25), EMA(24)}
	bars := randomBars(120, 3)
	st := NewStore(specs...)
	st.Refresh("ETH-USDT-SWAP", bars, 0)

	trimmed := bars[40:]
	got := st.Refresh("ETH-USDT-SWAP", trimmed, 0)
	assertSame(t, Compute(trimmed, specs), got)

	// a from past the cached length falls back to a full pass
	got = st.Refresh("SOL-USDT-SWAP", bars, 90)
	assertSame(t, Compute(bars, specs), got)
}

func TestSpecID(t *testing.T) {
	assert.Equal(t, "SMA25", SMA(25).ID())
	assert.Equal(t, "EMA150", EMA(150).ID())
}

func assertSame(t *testing.T, want, got Set) {
	t.Helper()
	require.Len(t, got, len(want))
	for id, w := range want {
		g := got[id]
		require.Equal(t, w.Len(), g.Len(), id)
		for i := range w.Values {
			require.InDelta(t, w.Values[i], g.Values[i], 1e-9, "%s[%d]", id, i)
		}
	}
}

package service

import (
	"context"
	"sync"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"

	"go.uber.org/zap"
)

type Source interface {
	Candles(ctx context.Context, instID, timeframe string, limit int) ([]models.Bar, error)
	LastPrice(ctx context.Context, instID string) (models.Ticker, error)
}

// Snapshot is the bar series of one instrument after an update.
type Snapshot struct {
	InstID string
	Bars   []models.Bar
	// From is the first bar index that changed since the previous snapshot.
	From int
	Last float64
}

// Feed keeps the bar series per instrument, loaded once with history and
// then advanced incrementally every tick.
type Feed struct {
	src       Source
	log       *zap.Logger
	timeframe string
	history   int
	maxBars   int

	mu     sync.Mutex
	series map[string][]models.Bar
}

func NewFeed(cfg *config.Config, src Source, log *zap.Logger) *Feed {
	return &Feed{
		src:       src,
		log:       log.Named("feed"),
		timeframe: cfg.Trading.Timeframe,
		history:   cfg.Trading.HistoryBars,
		maxBars:   cfg.Trading.MaxBars,
		series:    make(map[string][]models.Bar),
	}
}

func (f *Feed) get(instID string) []models.Bar {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.series[instID]
}

func (f *Feed) put(instID string, bars []models.Bar) {
	f.mu.Lock()
	f.series[instID] = bars
	f.mu.Unlock()
}

func (f *Feed) Drop(instID string) {
	f.mu.Lock()
	delete(f.series, instID)
	f.mu.Unlock()
}

// Load replaces the series with the last history bars.
func (f *Feed) Load(ctx context.Context, instID string) ([]models.Bar, error) {
	bars, err := f.src.Candles(ctx, instID, f.timeframe, f.history)
	if err != nil {
		return nil, err
	}
	bars, _ = Merge(nil, bars)
	f.put(instID, bars)
	f.log.Debug("history loaded", zap.String("instrument", instID), zap.Int("bars", len(bars)))
	return bars, nil
}

// Update pulls the newest two candles and the ticker. New bars are appended,
// a bar with a known timestamp overwrites the stored one, and the forming bar
// then takes the ticker price.
func (f *Feed) Update(ctx context.Context, instID string) (Snapshot, error) {
	bars := f.get(instID)
	from := len(bars)
	if len(bars) == 0 {
		loaded, err := f.Load(ctx, instID)
		if err != nil {
			return Snapshot{}, err
		}
		bars, from = loaded, 0
	} else {
		recent, err := f.src.Candles(ctx, instID, f.timeframe, 2)
		if err != nil {
			return Snapshot{}, err
		}
		var changed int
		bars, changed = Merge(bars, recent)
		from = min(from, changed)
	}
	if len(bars) == 0 {
		return Snapshot{}, apperr.Dataf("feed "+instID, "no bars")
	}

	tk, err := f.src.LastPrice(ctx, instID)
	if err != nil {
		return Snapshot{}, err
	}
	if ApplyPrice(bars, tk.Last) {
		from = min(from, len(bars)-1)
	}

	if f.maxBars > 0 && len(bars) > f.maxBars {
		keep := min(f.history, f.maxBars)
		bars = append([]models.Bar(nil), bars[len(bars)-keep:]...)
		from = 0
	}
	f.put(instID, bars)

	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return Snapshot{InstID: instID, Bars: out, From: from, Last: tk.Last}, nil
}

// Merge folds incoming bars into bars keyed by timestamp, last write wins. It
// returns the merged series and the first index that changed (len(bars) when
// nothing did). Incoming bars may be in any order.
func Merge(bars, incoming []models.Bar) ([]models.Bar, int) {
	first := len(bars)
	for _, b := range incoming {
		n := len(bars)
		switch {
		case n == 0 || b.Timestamp.After(bars[n-1].Timestamp):
			bars = append(bars, b)
			first = min(first, n)
		default:
			i := search(bars, b)
			if i < n && bars[i].Timestamp.Equal(b.Timestamp) {
				if bars[i] != b {
					bars[i] = b
					first = min(first, i)
				}
				continue
			}
			bars = append(bars, models.Bar{})
			copy(bars[i+1:], bars[i:])
			bars[i] = b
			first = min(first, i)
		}
	}
	return bars, first
}

func search(bars []models.Bar, b models.Bar) int {
	lo, hi := 0, len(bars)
	for lo < hi {
		m := (lo + hi) / 2
		if bars[m].Timestamp.Before(b.Timestamp) {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}

// ApplyPrice moves the forming bar to px. Applying the same price twice is a
// no-op. It reports whether the bar changed.
func ApplyPrice(bars []models.Bar, px float64) bool {
	if len(bars) == 0 || px <= 0 {
		return false
	}
	last := &bars[len(bars)-1]
	before := *last
	last.Close = px
	last.High = max(last.High, px)
	last.Low = min(last.Low, px)
	return *last != before
}

package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrReverseFailed marks a stop-out whose close went through but whose
// opposite entry did not. The position is flat in that case.
var ErrReverseFailed = errors.New("reverse entry failed")

type Venue interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.Order, error)
	CancelOrder(ctx context.Context, instID, orderID string) error
	GetOrder(ctx context.Context, instID, orderID string) (models.Order, error)
	SetLeverage(ctx context.Context, instID string, lever int) error
	Instrument(ctx context.Context, instID string) (models.Instrument, error)
}

type Executor struct {
	venue    Venue
	log      *zap.Logger
	fillWait time.Duration
	leverage int
	// remainder sends only the unfilled part as the market fallback, at the
	// cost of a second status query after the cancel
	remainder bool

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	mu        sync.Mutex
	leveraged map[string]bool
	meta      map[string]models.Instrument
}

func NewExecutor(cfg *config.Config, venue Venue, log *zap.Logger) *Executor {
	return &Executor{
		venue:     venue,
		log:       log.Named("executor"),
		fillWait:  cfg.Executor.FillWait,
		remainder: cfg.Executor.FallbackAmount == config.FallbackRemainder,
		leverage:  cfg.Trading.Leverage,
		sleep:     sleepCtx,
		newID:     clientID,
		leveraged: make(map[string]bool),
		meta:      make(map[string]models.Instrument),
	}
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

// okx clOrdId: alphanumeric, up to 32 chars
func clientID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Instrument returns cached contract metadata.
func (e *Executor) Instrument(ctx context.Context, instID string) (models.Instrument, error) {
	e.mu.Lock()
	m, ok := e.meta[instID]
	e.mu.Unlock()
	if ok {
		return m, nil
	}
	m, err := e.venue.Instrument(ctx, instID)
	if err != nil {
		return models.Instrument{}, err
	}
	e.mu.Lock()
	e.meta[instID] = m
	e.mu.Unlock()
	return m, nil
}

// EnsureLeverage sets leverage once per instrument.
func (e *Executor) EnsureLeverage(ctx context.Context, instID string) error {
	e.mu.Lock()
	done := e.leveraged[instID]
	e.mu.Unlock()
	if done || e.leverage <= 0 {
		return nil
	}
	if err := e.venue.SetLeverage(ctx, instID, e.leverage); err != nil {
		return err
	}
	e.mu.Lock()
	e.leveraged[instID] = true
	e.mu.Unlock()
	return nil
}

func roundStep(v, step float64, up bool) float64 {
	if step <= 0 {
		return v
	}
	d, s := decimal.NewFromFloat(v), decimal.NewFromFloat(step)
	q := d.Div(s)
	if up {
		q = q.Ceil()
	} else {
		q = q.Floor()
	}
	f, _ := q.Mul(s).Float64()
	return f
}

func roundTick(v, tick float64) float64 {
	if tick <= 0 {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Div(decimal.NewFromFloat(tick)).Round(0).Mul(decimal.NewFromFloat(tick)).Float64()
	return f
}

// RoundBracket snaps both legs to the instrument tick.
func (e *Executor) RoundBracket(ctx context.Context, instID string, b models.Bracket) models.Bracket {
	m, err := e.Instrument(ctx, instID)
	if err != nil {
		return b
	}
	if b.TakeProfit > 0 {
		b.TakeProfit = roundTick(b.TakeProfit, m.TickSz)
	}
	if b.StopLoss > 0 {
		b.StopLoss = roundTick(b.StopLoss, m.TickSz)
	}
	return b
}

// Enter opens sig.Side with a limit order at the signal price. After
// fillWait the order is checked once; if it is not filled it is cancelled and
// one market order for the full amount follows (only the unfilled part in
// remainder mode). A partial fill seen by the check is added to the returned
// fill. A non-nil fill is real exposure on the venue even when err is also
// set.
func (e *Executor) Enter(ctx context.Context, sig models.Signal, amount float64, bracket models.Bracket) (*models.Fill, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "executor.enter")
	defer span.Finish()
	span.SetTag("instrument", sig.InstID)
	span.SetTag("variant", string(sig.Variant))

	log := e.log.With(zap.String("instrument", sig.InstID), zap.String("side", string(sig.Side)))

	if err := e.EnsureLeverage(ctx, sig.InstID); err != nil {
		return nil, apperr.Order("enter", err)
	}
	meta, err := e.Instrument(ctx, sig.InstID)
	if err != nil {
		return nil, err
	}
	amount = roundStep(amount, meta.LotSz, false)
	if amount <= 0 || amount < meta.MinSz {
		return nil, apperr.Order("enter", errors.Errorf("amount %v below min size %v", amount, meta.MinSz))
	}
	price := roundTick(sig.Price, meta.TickSz)

	limit, err := e.venue.PlaceOrder(ctx, models.OrderRequest{
		InstID:   sig.InstID,
		ClientID: e.newID(),
		Side:     sig.Side.OpenOrderSide(),
		PosSide:  sig.Side,
		Kind:     models.OrderLimit,
		Price:    optional.Some(price),
		Amount:   amount,
		Bracket:  bracket,
	})
	if err != nil {
		log.Error("limit entry rejected", zap.Error(err))
		return nil, apperr.Order("enter limit", err)
	}
	log.Info("limit entry placed", zap.String("ordId", limit.ID), zap.Float64("px", price), zap.Float64("sz", amount))

	if err := e.sleep(ctx, e.fillWait); err != nil {
		// shutting down: withdraw the resting order and report nothing opened
		_ = e.venue.CancelOrder(context.WithoutCancel(ctx), sig.InstID, limit.ID)
		return nil, apperr.Transient("enter wait", err)
	}

	st, err := e.venue.GetOrder(ctx, sig.InstID, limit.ID)
	if err == nil && st.Status == models.OrderFilled {
		return fillOf(st, price), nil
	}
	if err != nil {
		log.Warn("order status unknown, falling back", zap.String("ordId", limit.ID), zap.Error(err))
		st = limit
	}

	if err := e.venue.CancelOrder(ctx, sig.InstID, limit.ID); err != nil {
		// the cancel usually fails because the order completed in the meantime
		again, qerr := e.venue.GetOrder(ctx, sig.InstID, limit.ID)
		if qerr == nil && again.Status == models.OrderFilled {
			return fillOf(again, price), nil
		}
		log.Error("cancel failed, not sending market order", zap.String("ordId", limit.ID), zap.Error(err))
		if qerr == nil && again.Filled > 0 {
			return fillOf(again, price), apperr.Order("cancel limit", err)
		}
		return nil, apperr.Order("cancel limit", err)
	}
	remaining := amount
	if e.remainder {
		if final, err := e.venue.GetOrder(ctx, sig.InstID, limit.ID); err == nil {
			st = final
		}
		remaining = roundStep(amount-st.Filled, meta.LotSz, false)
		if remaining <= 0 {
			return fillOf(st, price), nil
		}
	}

	mkt, err := e.venue.PlaceOrder(ctx, models.OrderRequest{
		InstID:   sig.InstID,
		ClientID: e.newID(),
		Side:     sig.Side.OpenOrderSide(),
		PosSide:  sig.Side,
		Kind:     models.OrderMarket,
		Price:    optional.None[float64](),
		Amount:   remaining,
		Bracket:  bracket,
	})
	if err != nil {
		log.Error("market fallback rejected", zap.Error(err))
		if st.Filled > 0 {
			return fillOf(st, price), apperr.Order("enter market", err)
		}
		return nil, apperr.Order("enter market", err)
	}
	log.Info("market fallback placed", zap.String("ordId", mkt.ID), zap.Float64("sz", remaining))

	mktPx := price
	if done, err := e.venue.GetOrder(ctx, sig.InstID, mkt.ID); err == nil && done.AvgPrice > 0 {
		mktPx = done.AvgPrice
	}

	fill := &models.Fill{Quantity: remaining, Price: mktPx}
	if st.Filled > 0 {
		limitPx := st.AvgPrice
		if limitPx <= 0 {
			limitPx = price
		}
		fill.Quantity = st.Filled + remaining
		fill.Price = (limitPx*st.Filled + mktPx*remaining) / fill.Quantity
		fill.OrderIDs = append(fill.OrderIDs, limit.ID)
	}
	fill.OrderIDs = append(fill.OrderIDs, mkt.ID)
	return fill, nil
}

func fillOf(o models.Order, fallbackPx float64) *models.Fill {
	px := o.AvgPrice
	if px <= 0 {
		px = fallbackPx
	}
	qty := o.Filled
	if o.Status == models.OrderFilled && qty <= 0 {
		qty = o.Amount
	}
	return &models.Fill{OrderIDs: []string{o.ID}, Price: px, Quantity: qty}
}

// Close flattens pos with a reduce-only market order.
func (e *Executor) Close(ctx context.Context, pos models.Position) (models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "executor.close")
	defer span.Finish()
	span.SetTag("instrument", pos.InstID)

	if pos.Quantity <= 0 || (pos.Side != models.PosLong && pos.Side != models.PosShort) {
		return models.Order{}, apperr.Order("close", errors.Errorf("nothing to close on %s", pos.InstID))
	}
	o, err := e.venue.PlaceOrder(ctx, models.OrderRequest{
		InstID:     pos.InstID,
		ClientID:   e.newID(),
		Side:       pos.Side.CloseOrderSide(),
		PosSide:    pos.Side,
		Kind:       models.OrderMarket,
		Price:      optional.None[float64](),
		Amount:     pos.Quantity,
		ReduceOnly: true,
	})
	if err != nil {
		return models.Order{}, apperr.Order("close", err)
	}
	e.log.Info("position closed", zap.String("instrument", pos.InstID), zap.String("ordId", o.ID))
	return o, nil
}

// StopOut closes pos at market and, when reverse is set, immediately opens
// the same size on the opposite side. A nil fill with a nil error means the
// position was only flattened. Errors wrapping ErrReverseFailed leave the
// instrument flat; any other error means nothing was closed.
func (e *Executor) StopOut(ctx context.Context, pos models.Position, reverse bool) (*models.Fill, error) {
	if _, err := e.Close(ctx, pos); err != nil {
		return nil, err
	}
	if !reverse {
		return nil, nil
	}

	side := pos.Side.Opposite()
	o, err := e.venue.PlaceOrder(ctx, models.OrderRequest{
		InstID:   pos.InstID,
		ClientID: e.newID(),
		Side:     side.OpenOrderSide(),
		PosSide:  side,
		Kind:     models.OrderMarket,
		Price:    optional.None[float64](),
		Amount:   pos.Quantity,
	})
	if err != nil {
		return nil, apperr.Order("reverse", errors.Wrapf(ErrReverseFailed, "%v", err))
	}
	px := pos.StopLevel
	if done, err := e.venue.GetOrder(ctx, pos.InstID, o.ID); err == nil && done.AvgPrice > 0 {
		px = done.AvgPrice
	}
	return &models.Fill{OrderIDs: []string{o.ID}, Price: px, Quantity: pos.Quantity}, nil
}

package service

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"

	"github.com/pkg/errors"
)

// okx caps /market/candles at 300 rows per call
const maxCandleLimit = 300

// Candles returns up to limit bars, oldest first. The last bar is the one
// still forming.
func (c *Client) Candles(ctx context.Context, instID, timeframe string, limit int) ([]models.Bar, error) {
	if limit <= 0 || limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	bar, err := okxBar(timeframe)
	if err != nil {
		return nil, apperr.Fatal("candles", err)
	}

	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))

	rows, err := request[[]string](ctx, c, http.MethodGet, "/api/v5/market/candles", q, nil, false)
	if err != nil {
		return nil, apperr.Transient("candles "+instID, err)
	}

	// CandleRow: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm], newest first
	out := make([]models.Bar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 5 {
			continue
		}
		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		b := models.Bar{
			Timestamp: time.UnixMilli(tsMs).UTC(),
			Open:      parseFloat(row[1]),
			High:      parseFloat(row[2]),
			Low:       parseFloat(row[3]),
			Close:     parseFloat(row[4]),
		}
		if len(row) >= 6 {
			b.Volume = parseFloat(row[5])
		}
		if b.Close <= 0 {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) LastPrice(ctx context.Context, instID string) (models.Ticker, error) {
	q := url.Values{}
	q.Set("instId", instID)

	data, err := request[rawTicker](ctx, c, http.MethodGet, "/api/v5/market/ticker", q, nil, false)
	if err != nil {
		return models.Ticker{}, apperr.Transient("ticker "+instID, err)
	}
	if len(data) == 0 {
		return models.Ticker{}, apperr.Transient("ticker "+instID, errors.New("empty ticker"))
	}
	last := parseFloat(data[0].Last)
	if last <= 0 {
		return models.Ticker{}, apperr.Transient("ticker "+instID, errors.Errorf("last <= 0: %q", data[0].Last))
	}
	t := models.Ticker{InstID: data[0].InstID, Last: last, Time: c.now().UTC()}
	if ms, err := strconv.ParseInt(data[0].Ts, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
	}
	return t, nil
}

var perpetualUSDT = regexp.MustCompile(`^[A-Z0-9]+-USDT-SWAP$`)

// IsPerpetualUSDT matches USDT-margined perpetual swap ids. Dated contracts
// (BTC-USDT-250627) do not match.
func IsPerpetualUSDT(instID string) bool {
	return perpetualUSDT.MatchString(instID)
}

// Universe lists live USDT-margined perpetual swaps.
func (c *Client) Universe(ctx context.Context) ([]string, error) {
	insts, err := c.instruments(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		if inst.State != "" && inst.State != "live" {
			continue
		}
		if !strings.EqualFold(inst.SettleCcy, "USDT") || !IsPerpetualUSDT(inst.InstID) {
			continue
		}
		out = append(out, inst.InstID)
	}
	return out, nil
}

func (c *Client) Instrument(ctx context.Context, instID string) (models.Instrument, error) {
	insts, err := c.instruments(ctx, instID)
	if err != nil {
		return models.Instrument{}, err
	}
	if len(insts) == 0 {
		return models.Instrument{}, apperr.Fatal("instrument", errors.Errorf("instrument %s not found", instID))
	}
	inst := insts[0]
	if inst.State != "" && inst.State != "live" {
		return models.Instrument{}, apperr.Data("instrument", errors.Errorf("instrument %s not live: state=%s", instID, inst.State))
	}

	ctVal := parseFloat(inst.CtVal)
	if m := parseFloat(inst.CtMult); m > 0 {
		ctVal *= m
	}
	return models.Instrument{
		InstID:    inst.InstID,
		SettleCcy: inst.SettleCcy,
		TickSz:    parseFloat(inst.TickSz),
		LotSz:     parseFloat(inst.LotSz),
		MinSz:     parseFloat(inst.MinSz),
		CtVal:     ctVal,
		State:     inst.State,
	}, nil
}

func (c *Client) instruments(ctx context.Context, instID string) ([]rawInstrument, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	if instID != "" {
		q.Set("instId", instID)
	}
	data, err := request[rawInstrument](ctx, c, http.MethodGet, "/api/v5/public/instruments", q, nil, false)
	if err != nil {
		return nil, apperr.Transient("instruments", err)
	}
	return data, nil
}

func okxBar(tf string) (string, error) {
	switch s := helper.NormTF(tf); s {
	case "1m", "3m", "5m", "15m", "30m":
		return s, nil
	case "1h", "2h", "4h", "6h", "12h", "1d", "1w":
		return strings.ToUpper(s), nil
	}
	return "", errors.Errorf("unsupported timeframe for OKX bar: %q", tf)
}

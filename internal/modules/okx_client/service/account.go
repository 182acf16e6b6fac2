package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"
)

// Positions returns non-empty swap positions, optionally for one instrument.
// In net mode the side comes from the sign of pos.
func (c *Client) Positions(ctx context.Context, instID string) ([]models.VenuePosition, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	if instID != "" {
		q.Set("instId", instID)
	}
	data, err := request[rawPosition](ctx, c, http.MethodGet, "/api/v5/account/positions", q, nil, true)
	if err != nil {
		return nil, apperr.Transient("positions", err)
	}

	out := make([]models.VenuePosition, 0, len(data))
	for _, d := range data {
		size := parseFloat(d.Pos)
		if size == 0 {
			continue
		}
		side := models.PosSide(d.PosSide)
		if side != models.PosLong && side != models.PosShort {
			side = models.PosLong
			if size < 0 {
				side = models.PosShort
			}
		}
		if size < 0 {
			size = -size
		}
		lev, _ := strconv.Atoi(d.Lever)
		out = append(out, models.VenuePosition{
			InstID:  d.InstID,
			PosSide: side,
			Size:    size,
			AvgPx:   parseFloat(d.AvgPx),
			Lever:   lev,
		})
	}
	return out, nil
}

func (c *Client) Balance(ctx context.Context, ccy string) (models.Balance, error) {
	q := url.Values{}
	if ccy != "" {
		q.Set("ccy", ccy)
	}
	data, err := request[rawBalance](ctx, c, http.MethodGet, "/api/v5/account/balance", q, nil, true)
	if err != nil {
		return models.Balance{}, apperr.Transient("balance", err)
	}
	b := models.Balance{Ccy: ccy}
	if len(data) == 0 {
		return b, nil
	}
	b.Total = parseFloat(data[0].TotalEq)
	for _, d := range data[0].Details {
		if strings.EqualFold(d.Ccy, ccy) {
			b.Total = parseFloat(d.Eq)
			b.Avail = parseFloat(d.AvailBal)
		}
	}
	return b, nil
}

func (c *Client) SetLeverage(ctx context.Context, instID string, lever int) error {
	body := map[string]string{
		"instId":  instID,
		"lever":   strconv.Itoa(lever),
		"mgnMode": c.tdMode,
	}
	if _, err := request[rawLeverage](ctx, c, http.MethodPost, "/api/v5/account/set-leverage", nil, body, true); err != nil {
		return apperr.Order("set leverage "+instID, err)
	}
	return nil
}

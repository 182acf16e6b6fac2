package service

import (
	"context"
	"net/http"
	"net/url"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"

	"github.com/moznion/go-optional"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PlaceOrder submits a limit or market order. A bracket is attached as
// server-side take-profit/stop-loss legs executed at market.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.Order, error) {
	if req.Amount <= 0 {
		return models.Order{}, apperr.Order("place order", errors.Errorf("amount <= 0: %v", req.Amount))
	}

	body := placeOrderBody{
		InstID:     req.InstID,
		TdMode:     c.tdMode,
		Side:       string(req.Side),
		OrdType:    string(req.Kind),
		Sz:         formatDecimal(req.Amount),
		ClOrdID:    req.ClientID,
		ReduceOnly: req.ReduceOnly,
	}
	if req.PosSide == models.PosLong || req.PosSide == models.PosShort {
		body.PosSide = string(req.PosSide)
	}
	if req.Kind == models.OrderLimit {
		if req.Price.IsNone() || req.Price.Unwrap() <= 0 {
			return models.Order{}, apperr.Order("place order", errors.New("limit order without price"))
		}
		body.Px = formatDecimal(req.Price.Unwrap())
	}
	if !req.Bracket.Empty() {
		algo := attachAlgo{}
		if req.Bracket.TakeProfit > 0 {
			algo.TpTriggerPx = formatDecimal(req.Bracket.TakeProfit)
			algo.TpOrdPx = "-1"
		}
		if req.Bracket.StopLoss > 0 {
			algo.SlTriggerPx = formatDecimal(req.Bracket.StopLoss)
			algo.SlOrdPx = "-1"
		}
		body.AttachAlgoOrds = []attachAlgo{algo}
	}

	data, err := request[rawOrderAck](ctx, c, http.MethodPost, "/api/v5/trade/order", nil, body, true)
	if err = ackError(data, err); err != nil {
		return models.Order{}, apperr.Order("place order "+req.InstID, err)
	}

	c.log.Info("order placed",
		zap.String("instrument", req.InstID),
		zap.String("ordId", data[0].OrdID),
		zap.String("kind", string(req.Kind)),
		zap.String("side", string(req.Side)),
		zap.String("sz", body.Sz),
		zap.String("px", body.Px),
	)

	return models.Order{
		ID:       data[0].OrdID,
		ClientID: data[0].ClOrdID,
		InstID:   req.InstID,
		Side:     req.Side,
		PosSide:  req.PosSide,
		Kind:     req.Kind,
		Price:    req.Price,
		Amount:   req.Amount,
		Status:   models.OrderOpen,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, instID, orderID string) error {
	body := map[string]string{"instId": instID, "ordId": orderID}
	data, err := request[rawOrderAck](ctx, c, http.MethodPost, "/api/v5/trade/cancel-order", nil, body, true)
	if err = ackError(data, err); err != nil {
		return apperr.Order("cancel order "+orderID, err)
	}
	return nil
}

func (c *Client) GetOrder(ctx context.Context, instID, orderID string) (models.Order, error) {
	q := url.Values{}
	q.Set("instId", instID)
	q.Set("ordId", orderID)

	data, err := request[rawOrder](ctx, c, http.MethodGet, "/api/v5/trade/order", q, nil, true)
	if err != nil {
		return models.Order{}, apperr.Transient("get order "+orderID, err)
	}
	if len(data) == 0 {
		return models.Order{}, apperr.Order("get order", errors.Errorf("order %s not found", orderID))
	}
	return toOrder(data[0]), nil
}

func toOrder(r rawOrder) models.Order {
	o := models.Order{
		ID:       r.OrdID,
		ClientID: r.ClOrdID,
		InstID:   r.InstID,
		Side:     models.Side(r.Side),
		PosSide:  models.PosSide(r.PosSide),
		Kind:     models.OrderKind(r.OrdType),
		Amount:   parseFloat(r.Sz),
		Filled:   parseFloat(r.AccFillSz),
		AvgPrice: parseFloat(r.AvgPx),
		Price:    optional.None[float64](),
	}
	if px := parseFloat(r.Px); px > 0 {
		o.Price = optional.Some(px)
	}
	switch r.State {
	case "filled":
		o.Status = models.OrderFilled
	case "partially_filled":
		o.Status = models.OrderPartiallyFilled
	case "canceled", "mmp_canceled":
		o.Status = models.OrderCanceled
	default:
		o.Status = models.OrderOpen
	}
	return o
}

// ackError folds the per-order sCode into the envelope error.
func ackError(data []rawOrderAck, err error) error {
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		return err
	}
	if len(data) == 0 {
		if apiErr != nil {
			return apiErr
		}
		return errors.New("empty order ack")
	}
	if apiErr != nil || data[0].SCode != "0" {
		if apiErr == nil {
			apiErr = &APIError{Code: "0"}
		}
		apiErr.SCode, apiErr.SMsg = data[0].SCode, data[0].SMsg
		return apiErr
	}
	return nil
}

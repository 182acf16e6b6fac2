package models

import "github.com/moznion/go-optional"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderKind string

const (
	OrderLimit  OrderKind = "limit"
	OrderMarket OrderKind = "market"
)

type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderFilled          OrderStatus = "filled"
	OrderPartiallyFilled OrderStatus = "partially-filled"
	OrderCanceled        OrderStatus = "canceled"
)

// Bracket is a take-profit / stop-loss pair attached to an entry order.
// Zero means no leg.
type Bracket struct {
	TakeProfit float64
	StopLoss   float64
}

func (b Bracket) Empty() bool { return b.TakeProfit == 0 && b.StopLoss == 0 }

type OrderRequest struct {
	InstID     string
	ClientID   string
	Side       Side
	PosSide    PosSide
	Kind       OrderKind
	Price      optional.Option[float64]
	Amount     float64
	ReduceOnly bool
	Bracket    Bracket
}

type Order struct {
	ID       string
	ClientID string
	InstID   string
	Side     Side
	PosSide  PosSide
	Kind     OrderKind
	Price    optional.Option[float64]
	Amount   float64
	Filled   float64
	AvgPrice float64
	Status   OrderStatus
}

// Remaining is the unfilled part of the order amount.
func (o Order) Remaining() float64 {
	r := o.Amount - o.Filled
	if r < 0 {
		return 0
	}
	return r
}

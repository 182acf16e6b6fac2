package models

import "time"

type PosSide string

const (
	PosFlat  PosSide = "flat"
	PosLong  PosSide = "long"
	PosShort PosSide = "short"
)

func (s PosSide) Opposite() PosSide {
	switch s {
	case PosLong:
		return PosShort
	case PosShort:
		return PosLong
	}
	return PosFlat
}

// OpenOrderSide is the order side that opens a position on this side.
func (s PosSide) OpenOrderSide() Side {
	if s == PosShort {
		return SideSell
	}
	return SideBuy
}

// CloseOrderSide is the order side that reduces a position on this side.
func (s PosSide) CloseOrderSide() Side {
	if s == PosShort {
		return SideBuy
	}
	return SideSell
}

type PositionState string

const (
	StateFlat         PositionState = "flat"
	StatePendingEntry PositionState = "pending_entry"
	StateOpen         PositionState = "open"
	StatePendingExit  PositionState = "pending_exit"
)

// Position is the per-instrument lifecycle record. Levels are zero while flat.
type Position struct {
	InstID          string
	Side            PosSide
	State           PositionState
	Variant         Variant
	EntryPrice      float64
	Quantity        float64
	StopLevel       float64
	TakeProfitLevel float64
	OpenOrderIDs    []string
	Updated         time.Time
}

func (p Position) IsFlat() bool { return p.State == StateFlat }

// Levels is recorded together with the transition to open.
type Levels struct {
	Stop       float64
	TakeProfit float64
}

// Fill is what a successful entry returns.
type Fill struct {
	OrderIDs []string
	Price    float64
	Quantity float64
}

// VenuePosition is a position as reported by the exchange.
type VenuePosition struct {
	InstID  string
	PosSide PosSide
	Size    float64
	AvgPx   float64
	Lever   int
}

type Balance struct {
	Ccy   string
	Total float64
	Avail float64
}

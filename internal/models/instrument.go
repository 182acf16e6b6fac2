package models

// Instrument holds the contract metadata needed to round prices and sizes.
type Instrument struct {
	InstID    string
	SettleCcy string
	TickSz    float64
	LotSz     float64
	MinSz     float64
	CtVal     float64
	State     string
}

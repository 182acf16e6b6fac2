package models

import "time"

// Bar is one OHLCV candle. Bars are kept ordered by Timestamp, the last one
// is still forming.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

type Ticker struct {
	InstID string
	Last   float64
	Time   time.Time
}

package models

import "strings"

// Variant selects one family of entry/exit rules.
type Variant string

const (
	VariantMA25        Variant = "ma25"
	VariantMA60        Variant = "ma60"
	VariantEMAOriginal Variant = "ema_original"
	VariantEMANew      Variant = "ema_new"
)

func ParseVariant(s string) (Variant, bool) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VariantMA25, VariantMA60, VariantEMAOriginal, VariantEMANew:
		return v, true
	}
	return "", false
}

// IsEMA reports whether protective levels are attached server-side.
func (v Variant) IsEMA() bool {
	return v == VariantEMAOriginal || v == VariantEMANew
}

// Signal is an entry decision taken on the last closed bar.
type Signal struct {
	InstID  string
	Variant Variant
	Side    PosSide
	Price   float64
	Reason  string
}

// ExitKind tells the executor how to leave a position.
type ExitKind string

const (
	ExitNone       ExitKind = ""
	ExitTakeProfit ExitKind = "take_profit"
	ExitStop       ExitKind = "stop"
	// ExitVenue is a position the venue closed on its own, usually through
	// an attached bracket.
	ExitVenue ExitKind = "venue"
)

type ExitDecision struct {
	Kind   ExitKind
	Price  float64
	Reason string
}

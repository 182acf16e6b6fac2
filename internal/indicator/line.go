// Package indicator computes SMA/EMA lines aligned 1:1 with a bar series.
//
// Entries before the warm-up index hold the zero sentinel. Signal predicates
// compare against those zeros the same way they compare real values.
package indicator

import "fmt"

type Kind string

const (
	KindSMA Kind = "SMA"
	KindEMA Kind = "EMA"
)

type Spec struct {
	Kind   Kind
	Window int
}

func SMA(w int) Spec { return Spec{Kind: KindSMA, Window: w} }
func EMA(w int) Spec { return Spec{Kind: KindEMA, Window: w} }

// ID renders the spec as "SMA25" / "EMA150".
func (s Spec) ID() string { return fmt.Sprintf("%s%d", s.Kind, s.Window) }

// Line is one indicator series. len(Values) always equals the bar count.
type Line struct {
	Values []float64
	// From is the first defined index.
	From int

	// ema recurrence state, zero before From
	raw []float64
}

func (l Line) Len() int { return len(l.Values) }

func (l Line) index(i int) int {
	if i < 0 {
		return len(l.Values) + i
	}
	return i
}

// At returns the value at i. Negative i counts from the end (-1 is the last
// bar). Out of range reads return the sentinel.
func (l Line) At(i int) float64 {
	i = l.index(i)
	if i < 0 || i >= len(l.Values) {
		return 0
	}
	return l.Values[i]
}

func (l Line) Defined(i int) bool {
	i = l.index(i)
	return i >= l.From && i < len(l.Values)
}

// Set maps indicator ids to lines.
type Set map[string]Line

func (s Set) Get(spec Spec) (Line, bool) {
	l, ok := s[spec.ID()]
	return l, ok
}

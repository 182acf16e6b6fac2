package indicator

import "signal_bot/internal/models"

func closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Compute builds every requested line from scratch.
func Compute(bars []models.Bar, specs []Spec) Set {
	cs := closes(bars)
	set := make(Set, len(specs))
	for _, spec := range specs {
		set[spec.ID()] = extend(Line{}, spec, cs, 0)
	}
	return set
}

// extend recomputes l from index from to the end of cs, reusing the values
// before from.
func extend(l Line, spec Spec, cs []float64, from int) Line {
	if from < 0 || from > len(l.Values) {
		from = 0
	}
	w := spec.Window
	l.From = w - 1
	l.Values = l.Values[:from]
	if spec.Kind == KindEMA {
		l.raw = l.raw[:min(from, len(l.raw))]
	}

	for i := from; i < len(cs); i++ {
		switch spec.Kind {
		case KindSMA:
			l.Values = append(l.Values, smaAt(cs, w, i))
		case KindEMA:
			v := emaStep(l.raw, cs, w, i)
			l.raw = append(l.raw, v)
			l.Values = append(l.Values, v)
		}
	}
	return l
}

func smaAt(cs []float64, w, i int) float64 {
	if i < w-1 {
		return 0
	}
	var sum float64
	for _, c := range cs[i-w+1 : i+1] {
		sum += c
	}
	return sum / float64(w)
}

// emaStep seeds with SMA(w) at index w-1 and applies prev + α(close-prev)
// after it. Indexes before the seed hold zero.
func emaStep(raw, cs []float64, w, i int) float64 {
	switch {
	case i < w-1:
		return 0
	case i == w-1:
		return runningMean(cs[i-w+1 : i+1])
	}
	alpha := 2.0 / float64(w+1)
	prev := raw[i-1]
	return prev + alpha*(cs[i]-prev)
}

// runningMean keeps a constant window exactly constant, unlike sum/n.
func runningMean(cs []float64) float64 {
	if len(cs) == 0 {
		return 0
	}
	m := cs[0]
	for k, c := range cs[1:] {
		m += (c - m) / float64(k+2)
	}
	return m
}

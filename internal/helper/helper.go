package helper

import "strings"

// NormTF maps bar and channel spellings like candle1H or 60m onto the
// lowercase timeframe form.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1h"
	case "240m", "4h":
		return "4h"
	case "1440m", "1d":
		return "1d"
	default:
		return s
	}
}

// Batches splits items into consecutive chunks of at most size elements.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		j := min(i+size, len(items))
		out = append(out, items[i:j:j])
	}
	return out
}

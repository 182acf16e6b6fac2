package helper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatches(t *testing.T) {
	syms := make([]string, 12)
	for i := range syms {
		syms[i] = fmt.Sprintf("S%02d-USDT-SWAP", i)
	}

	got := Batches(syms, 10)
	require.Len(t, got, 2)
	assert.Len(t, got[0], 10)
	assert.Len(t, got[1], 2)
	assert.Equal(t, "S10-USDT-SWAP", got[1][0])

	assert.Nil(t, Batches([]string{}, 10))
	assert.Len(t, Batches(syms[:10], 10), 1)
}

func TestBatchesDoNotAlias(t *testing.T) {
	items := []int{1, 2, 3, 4}
	got := Batches(items, 2)
	got[0] = append(got[0], 99)
	assert.Equal(t, 3, items[2])
}

func TestNormTF(t *testing.T) {
	assert.Equal(t, "1h", NormTF("candle1H"))
	assert.Equal(t, "15m", NormTF(" 15m "))
}

package miniroom

import (
	"math"
	"testing"

	"github.com/kasuganosora/worldsrv/config"
	"github.com/stretchr/testify/assert"
)

func TestTax_DefaultBrackets(t *testing.T) {
	cases := []struct {
		total, net int32
	}{
		{0, 0},
		{99_999, 99_999},
		{100_000, 99_200},
		{1_000_000, 982_000},
		{5_000_000, 4_850_000},
		{10_000_000, 9_600_000},
		{25_000_000, 23_750_000},
		{100_000_000, 94_000_000},
		{math.MaxInt32, math.MaxInt32 - int32(int64(math.MaxInt32)*600/10_000)},
	}
	for _, c := range cases {
		assert.Equal(t, c.net, Tax(c.total), "total %d", c.total)
	}
}

func TestTax_RoundsTaxDown(t *testing.T) {
	table := NewTaxTable([]config.TaxBracket{{Threshold: 1, BasisPoints: 80}})
	// 0.8% of 199 is 1.592
	assert.Equal(t, int32(198), table.Net(199))
	assert.Equal(t, int32(100), table.Net(100)) // 0.8 rounds to 0
}

func TestNewTaxTable_SortsBrackets(t *testing.T) {
	table := NewTaxTable([]config.TaxBracket{
		{Threshold: 100, BasisPoints: 100},
		{Threshold: 1000, BasisPoints: 1000},
	})
	assert.Equal(t, int32(1000), table.BasisPoints(5000))
	assert.Equal(t, int32(100), table.BasisPoints(500))
	assert.Equal(t, int32(0), table.BasisPoints(50))
}

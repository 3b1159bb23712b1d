package miniroom

import (
	"sort"

	"github.com/kasuganosora/worldsrv/config"
)

// TaxTable is a list of brackets sorted by descending threshold.
type TaxTable []config.TaxBracket

// DefaultTaxTable is built from config.DefaultShopTax.
var DefaultTaxTable = NewTaxTable(config.DefaultShopTax)

// NewTaxTable copies brackets and sorts them for lookup.
func NewTaxTable(brackets []config.TaxBracket) TaxTable {
	t := make(TaxTable, len(brackets))
	copy(t, brackets)
	sort.Slice(t, func(i, j int) bool { return t[i].Threshold > t[j].Threshold })
	return t
}

// BasisPoints returns the rate that applies to a sale of total.
func (t TaxTable) BasisPoints(total int32) int32 {
	for _, b := range t {
		if total >= b.Threshold {
			return b.BasisPoints
		}
	}
	return 0
}

// Net returns the proceeds of a sale of total after tax. The tax is rounded
// down.
func (t TaxTable) Net(total int32) int32 {
	if total <= 0 {
		return total
	}
	tax := int64(total) * int64(t.BasisPoints(total)) / 10_000
	return total - int32(tax)
}

// Tax returns the proceeds of a sale of total under the default table.
func Tax(total int32) int32 {
	return DefaultTaxTable.Net(total)
}

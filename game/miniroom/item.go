package miniroom

import "github.com/kasuganosora/worldsrv/game/item"

// PlayerShopItem is one stocked entry. Item is a snapshot whose Quantity is
// not used; PerBundle units are sold per bundle at Price.
type PlayerShopItem struct {
	Item      *item.Item
	PerBundle int32
	Bundles   int32
	Price     int32
}

// SetSize is the number of units in one bundle.
func (si *PlayerShopItem) SetSize() int32 { return si.PerBundle }

// SetCount is the number of bundles left.
func (si *PlayerShopItem) SetCount() int32 { return si.Bundles }

// Remaining returns the item with its quantity set to every unsold unit.
func (si *PlayerShopItem) Remaining() *item.Item {
	it := si.Item.Clone()
	it.Quantity = si.Bundles * si.PerBundle
	return it
}

func (si *PlayerShopItem) clone() *PlayerShopItem {
	c := *si
	c.Item = si.Item.Clone()
	return &c
}

// SoldItemRecord is one sale, kept for the owner's sale history while the
// shop is up.
type SoldItemRecord struct {
	ItemID    int32
	Quantity  int32
	NetPrice  int32
	BuyerName string
	Item      *item.Item
}

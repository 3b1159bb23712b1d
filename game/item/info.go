package item

import "context"

const defaultSlotMax = 100

// Info is static per-item metadata.
type Info struct {
	ItemID          int32  `json:"item_id"`
	Name            string `json:"name"`
	SlotMax         int32  `json:"slot_max"`
	Price           int32  `json:"price"`
	TradeBlock      bool   `json:"trade_block"`
	AccountSharable bool   `json:"account_sharable"`
}

// IsTradeBlock reports whether this particular instance may not change hands.
// A trade-blocked item becomes tradable once it carries AttrPossibleTrading.
func (i *Info) IsTradeBlock(it *Item) bool {
	if it.Attribute&AttrUntradable != 0 {
		return true
	}
	return i.TradeBlock && it.Attribute&AttrPossibleTrading == 0
}

// InfoProvider resolves item metadata by id.
type InfoProvider interface {
	ItemInfo(itemID int32) (*Info, bool)
}

// SerialAllocator hands out fresh durable item serial numbers.
type SerialAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// slotMax is the stack limit for an item id.
func slotMax(p InfoProvider, itemID int32) int32 {
	if InventoryTypeOf(itemID) == Equip {
		return 1
	}
	if p != nil {
		if info, ok := p.ItemInfo(itemID); ok && info.SlotMax > 0 {
			return info.SlotMax
		}
	}
	return defaultSlotMax
}

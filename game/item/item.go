package item

import (
	"math"

	"github.com/kasuganosora/worldsrv/game/packet"
)

// InventoryType is the inventory tab an item lives in.
type InventoryType int8

const (
	Equipped InventoryType = -1
	Equip    InventoryType = 1
	Consume  InventoryType = 2
	Install  InventoryType = 3
	Etc      InventoryType = 4
	Cash     InventoryType = 5
)

// InventoryTypes lists the bag tabs in wire order.
var InventoryTypes = []InventoryType{Equip, Consume, Install, Etc, Cash}

// InventoryTypeFromValue maps a wire value to a bag tab.
func InventoryTypeFromValue(v int8) (InventoryType, bool) {
	t := InventoryType(v)
	switch t {
	case Equipped, Equip, Consume, Install, Etc, Cash:
		return t, true
	}
	return 0, false
}

// InventoryTypeOf derives the bag tab from an item id.
func InventoryTypeOf(itemID int32) InventoryType {
	switch itemID / 1_000_000 {
	case 1:
		return Equip
	case 2:
		return Consume
	case 3:
		return Install
	case 5:
		return Cash
	default:
		return Etc
	}
}

// Item attribute flags.
const (
	AttrLocked          int16 = 0x01
	AttrUntradable      int16 = 0x08
	AttrPossibleTrading int16 = 0x10
)

// Item is one item instance. SN is zero until the item is given a durable
// serial number.
type Item struct {
	SN         int64
	ItemID     int32
	Quantity   int32
	Attribute  int16
	Title      string
	DateExpire int64
}

// Clone returns an independent copy.
func (it *Item) Clone() *Item {
	c := *it
	return &c
}

// Type returns the bag tab this item belongs in.
func (it *Item) Type() InventoryType {
	return InventoryTypeOf(it.ItemID)
}

// Stacks reports whether two items may share an inventory slot.
func (it *Item) Stacks(other *Item) bool {
	return it.ItemID == other.ItemID &&
		it.Attribute == other.Attribute &&
		it.DateExpire == other.DateExpire &&
		it.Title == other.Title &&
		it.Type() != Equip
}

// Encode writes the item with its own quantity.
func (it *Item) Encode(out *packet.OutPacket) {
	it.EncodeWithQuantity(out, it.Quantity)
}

// EncodeWithQuantity writes the item with an explicit quantity, clamped to the
// wire's int16 field.
func (it *Item) EncodeWithQuantity(out *packet.OutPacket, qty int32) {
	if qty > math.MaxInt16 {
		qty = math.MaxInt16
	}
	out.EncodeInt(it.ItemID)
	out.EncodeLong(it.SN)
	out.EncodeShort(int16(qty))
	out.EncodeShort(it.Attribute)
	out.EncodeString(it.Title)
	out.EncodeLong(it.DateExpire)
}

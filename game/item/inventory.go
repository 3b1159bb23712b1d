package item

import (
	"math"
	"sort"
	"sync"
)

// Inventory is the live bag and wallet of one character. Every method is safe
// for concurrent use; a false return means "not enough room or funds" and
// leaves the inventory unchanged.
type Inventory interface {
	ItemAt(t InventoryType, pos int16) *Item
	CanAddItem(itemID int32, qty int32) bool
	CanAddItems(items []*Item) bool
	AddItem(it *Item) ([]Operation, bool)
	RemoveItem(t InventoryType, pos int16, it *Item, count int32) (Operation, bool)
	Money() int32
	CanAddMoney(delta int32) bool
	AddMoney(delta int32) bool
}

// OperationType is the kind of slot change reported to the client.
type OperationType int8

const (
	OpAdd      OperationType = 0
	OpQuantity OperationType = 1
	OpRemove   OperationType = 3
)

// Operation describes one slot change.
type Operation struct {
	Type     OperationType
	InvType  InventoryType
	Position int16
	Item     *Item
	Quantity int32
}

type bag struct {
	size  int16
	items map[int16]*Item
}

func (b *bag) clone() *bag {
	c := &bag{size: b.size, items: make(map[int16]*Item, len(b.items))}
	for pos, it := range b.items {
		c.items[pos] = it.Clone()
	}
	return c
}

// positions returns the occupied slots in ascending order.
func (b *bag) positions() []int16 {
	out := make([]int16, 0, len(b.items))
	for pos := range b.items {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *bag) freeSlot() (int16, bool) {
	for pos := int16(1); pos <= b.size; pos++ {
		if _, used := b.items[pos]; !used {
			return pos, true
		}
	}
	return 0, false
}

// InventoryManager is the in-memory Inventory for a connected character.
// Positions are 1-based per tab.
type InventoryManager struct {
	mu    sync.Mutex
	bags  map[InventoryType]*bag
	money int32
	info  InfoProvider
}

// NewInventoryManager creates an empty inventory with slotsPerTab slots in every tab.
func NewInventoryManager(slotsPerTab int16, money int32, info InfoProvider) *InventoryManager {
	m := &InventoryManager{
		bags:  make(map[InventoryType]*bag, len(InventoryTypes)),
		money: money,
		info:  info,
	}
	for _, t := range InventoryTypes {
		m.bags[t] = &bag{size: slotsPerTab, items: make(map[int16]*Item)}
	}
	return m
}

// ItemAt returns a copy of the item in a slot, or nil.
func (m *InventoryManager) ItemAt(t InventoryType, pos int16) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bags[t]
	if !ok {
		return nil
	}
	it, ok := b.items[pos]
	if !ok {
		return nil
	}
	return it.Clone()
}

// Count returns the total quantity of an item id across its tab.
func (m *InventoryManager) Count(itemID int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int32
	for _, it := range m.bags[InventoryTypeOf(itemID)].items {
		if it.ItemID == itemID {
			n += it.Quantity
		}
	}
	return n
}

// CanAddItem reports whether qty units of itemID fit.
func (m *InventoryManager) CanAddItem(itemID int32, qty int32) bool {
	return m.CanAddItems([]*Item{{ItemID: itemID, Quantity: qty}})
}

// CanAddItems reports whether every item fits at once.
func (m *InventoryManager) CanAddItems(items []*Item) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	scratch := make(map[InventoryType]*bag, len(m.bags))
	for t, b := range m.bags {
		scratch[t] = b.clone()
	}
	for _, it := range items {
		if _, ok := m.addTo(scratch, it.Clone()); !ok {
			return false
		}
	}
	return true
}

// AddItem places the item, topping up existing stacks before taking new slots.
func (m *InventoryManager) AddItem(it *Item) ([]Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scratch := map[InventoryType]*bag{it.Type(): m.bags[it.Type()].clone()}
	if _, ok := m.addTo(scratch, it.Clone()); !ok {
		return nil, false
	}
	ops, _ := m.addTo(m.bags, it.Clone())
	return ops, true
}

func (m *InventoryManager) addTo(bags map[InventoryType]*bag, it *Item) ([]Operation, bool) {
	if it.Quantity <= 0 {
		return nil, false
	}
	t := it.Type()
	b, ok := bags[t]
	if !ok {
		return nil, false
	}
	limit := slotMax(m.info, it.ItemID)
	remaining := it.Quantity
	var ops []Operation

	if t != Equip {
		for _, pos := range b.positions() {
			cur := b.items[pos]
			if !cur.Stacks(it) || cur.Quantity >= limit {
				continue
			}
			add := min(limit-cur.Quantity, remaining)
			cur.Quantity += add
			remaining -= add
			ops = append(ops, Operation{Type: OpQuantity, InvType: t, Position: pos, Quantity: cur.Quantity})
			if remaining == 0 {
				return ops, true
			}
		}
	}
	first := true
	for remaining > 0 {
		pos, ok := b.freeSlot()
		if !ok {
			return nil, false
		}
		placed := it.Clone()
		placed.Quantity = min(limit, remaining)
		if !first {
			placed.SN = 0
		}
		first = false
		b.items[pos] = placed
		remaining -= placed.Quantity
		ops = append(ops, Operation{Type: OpAdd, InvType: t, Position: pos, Item: placed.Clone()})
	}
	return ops, true
}

// RemoveItem takes count units out of the slot holding it.
func (m *InventoryManager) RemoveItem(t InventoryType, pos int16, it *Item, count int32) (Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bags[t]
	if !ok || count <= 0 {
		return Operation{}, false
	}
	cur, ok := b.items[pos]
	if !ok || cur.ItemID != it.ItemID || cur.Quantity < count {
		return Operation{}, false
	}
	if cur.Quantity == count {
		delete(b.items, pos)
		return Operation{Type: OpRemove, InvType: t, Position: pos}, true
	}
	cur.Quantity -= count
	return Operation{Type: OpQuantity, InvType: t, Position: pos, Quantity: cur.Quantity}, true
}

// Money returns the wallet balance.
func (m *InventoryManager) Money() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.money
}

// CanAddMoney reports whether the balance stays within [0, MaxInt32] after delta.
func (m *InventoryManager) CanAddMoney(delta int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return moneyInRange(m.money, delta)
}

// AddMoney applies delta (negative to debit).
func (m *InventoryManager) AddMoney(delta int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !moneyInRange(m.money, delta) {
		return false
	}
	m.money += delta
	return true
}

func moneyInRange(cur, delta int32) bool {
	next := int64(cur) + int64(delta)
	return next >= 0 && next <= math.MaxInt32
}

package item

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticInfo map[int32]*Info

func (s staticInfo) ItemInfo(id int32) (*Info, bool) {
	i, ok := s[id]
	return i, ok
}

const potion = int32(2000000)
const sword = int32(1302000)

func newInv(slots int16, money int32) *InventoryManager {
	return NewInventoryManager(slots, money, staticInfo{potion: {ItemID: potion, SlotMax: 100}})
}

func TestInventoryTypeOf(t *testing.T) {
	assert.Equal(t, Equip, InventoryTypeOf(sword))
	assert.Equal(t, Consume, InventoryTypeOf(potion))
	assert.Equal(t, Install, InventoryTypeOf(3010000))
	assert.Equal(t, Etc, InventoryTypeOf(4000000))
	assert.Equal(t, Cash, InventoryTypeOf(5000000))
}

func TestAddItem_StacksThenSpills(t *testing.T) {
	inv := newInv(4, 0)
	ops, ok := inv.AddItem(&Item{ItemID: potion, Quantity: 80})
	require.True(t, ok)
	require.Len(t, ops, 1)
	assert.Equal(t, OpAdd, ops[0].Type)

	ops, ok = inv.AddItem(&Item{ItemID: potion, Quantity: 50})
	require.True(t, ok)
	require.Len(t, ops, 2)
	assert.Equal(t, OpQuantity, ops[0].Type)
	assert.Equal(t, int32(100), ops[0].Quantity)
	assert.Equal(t, OpAdd, ops[1].Type)
	assert.Equal(t, int32(30), ops[1].Item.Quantity)

	assert.Equal(t, int32(130), inv.Count(potion))
}

func TestAddItem_FullLeavesInventoryUnchanged(t *testing.T) {
	inv := newInv(1, 0)
	_, ok := inv.AddItem(&Item{ItemID: potion, Quantity: 90})
	require.True(t, ok)

	_, ok = inv.AddItem(&Item{ItemID: potion, Quantity: 20})
	assert.False(t, ok)
	assert.Equal(t, int32(90), inv.Count(potion))
}

func TestAddItem_EquipNeverStacks(t *testing.T) {
	inv := newInv(2, 0)
	_, ok := inv.AddItem(&Item{ItemID: sword, Quantity: 1})
	require.True(t, ok)
	_, ok = inv.AddItem(&Item{ItemID: sword, Quantity: 1})
	require.True(t, ok)
	_, ok = inv.AddItem(&Item{ItemID: sword, Quantity: 1})
	assert.False(t, ok)
}

func TestCanAddItems_ConsidersTheWholeSet(t *testing.T) {
	inv := newInv(2, 0)
	one := &Item{ItemID: potion, Quantity: 100}
	assert.True(t, inv.CanAddItems([]*Item{one, one}))
	assert.False(t, inv.CanAddItems([]*Item{one, one, one}))
	assert.Zero(t, inv.Count(potion), "probe must not mutate")
}

func TestRemoveItem(t *testing.T) {
	inv := newInv(4, 0)
	_, _ = inv.AddItem(&Item{ItemID: potion, Quantity: 10})
	it := inv.ItemAt(Consume, 1)
	require.NotNil(t, it)

	op, ok := inv.RemoveItem(Consume, 1, it, 4)
	require.True(t, ok)
	assert.Equal(t, OpQuantity, op.Type)
	assert.Equal(t, int32(6), op.Quantity)

	_, ok = inv.RemoveItem(Consume, 1, it, 7)
	assert.False(t, ok, "more than held")

	op, ok = inv.RemoveItem(Consume, 1, it, 6)
	require.True(t, ok)
	assert.Equal(t, OpRemove, op.Type)
	assert.Nil(t, inv.ItemAt(Consume, 1))
}

func TestRemoveItem_WrongItemRejected(t *testing.T) {
	inv := newInv(4, 0)
	_, _ = inv.AddItem(&Item{ItemID: potion, Quantity: 10})
	_, ok := inv.RemoveItem(Consume, 1, &Item{ItemID: 2000001}, 1)
	assert.False(t, ok)
}

func TestItemAt_ReturnsCopy(t *testing.T) {
	inv := newInv(4, 0)
	_, _ = inv.AddItem(&Item{ItemID: potion, Quantity: 10})
	it := inv.ItemAt(Consume, 1)
	it.Quantity = 99
	assert.Equal(t, int32(10), inv.Count(potion))
}

func TestMoney_Bounds(t *testing.T) {
	inv := newInv(4, 299)
	assert.False(t, inv.CanAddMoney(-300))
	assert.False(t, inv.AddMoney(-300))
	assert.Equal(t, int32(299), inv.Money())

	assert.True(t, inv.AddMoney(-299))
	assert.Zero(t, inv.Money())

	rich := newInv(4, math.MaxInt32-10)
	assert.True(t, rich.CanAddMoney(10))
	assert.False(t, rich.CanAddMoney(11))
	assert.False(t, rich.AddMoney(11))
}

func TestMoney_ConcurrentDebits(t *testing.T) {
	inv := newInv(4, 1000)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv.AddMoney(-100)
		}()
	}
	wg.Wait()
	assert.Zero(t, inv.Money())
}

func TestInfo_IsTradeBlock(t *testing.T) {
	info := &Info{TradeBlock: true}
	assert.True(t, info.IsTradeBlock(&Item{}))
	assert.False(t, info.IsTradeBlock(&Item{Attribute: AttrPossibleTrading}))

	open := &Info{}
	assert.False(t, open.IsTradeBlock(&Item{}))
	assert.True(t, open.IsTradeBlock(&Item{Attribute: AttrUntradable}))
}

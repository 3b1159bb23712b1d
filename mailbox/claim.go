package mailbox

import (
	"context"
	"math"

	"github.com/kasuganosora/worldsrv/game/item"
	"go.uber.org/zap"
)

// ClaimResult is the outcome of a retrieval attempt.
type ClaimResult int8

const (
	ClaimOK ClaimResult = iota
	ClaimNothing
	ClaimNoSlot
	ClaimNoMoney
	ClaimUnavailable
)

func (r ClaimResult) String() string {
	switch r {
	case ClaimOK:
		return "ok"
	case ClaimNothing:
		return "nothing"
	case ClaimNoSlot:
		return "no_slot"
	case ClaimNoMoney:
		return "no_money"
	case ClaimUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Claimed is what a successful claim handed over.
type Claimed struct {
	Items []*item.Item
	Ops   []item.Operation
	Mesos int32
}

// grantable expands an unsold row into the items it returns to the owner.
func grantable(si *ShopItem) []*item.Item {
	if si.Item == nil || si.Bundles <= 0 {
		return nil
	}
	if si.Item.Type() == item.Equip {
		out := make([]*item.Item, 0, si.Bundles)
		for i := int32(0); i < si.Bundles; i++ {
			c := si.Item.Clone()
			c.Quantity = 1
			if i > 0 {
				c.SN = 0
			}
			out = append(out, c)
		}
		return out
	}
	c := si.Item.Clone()
	c.Quantity = si.Item.Quantity * si.Bundles
	return []*item.Item{c}
}

// Claim moves everything characterID has in the mailbox into inv. Nothing is
// granted unless every item and the full mesos total fit. Only the listed rows
// are deleted, all of them or none, before anything is granted: rows written
// meanwhile stay for the next claim and rows taken by a concurrent claim are
// never paid twice.
func (a *Accessor) Claim(ctx context.Context, characterID int32, inv item.Inventory) (ClaimResult, *Claimed) {
	rows, err := a.store.ListAll(ctx, characterID)
	if err != nil {
		a.fault("claim_list", characterID, err)
		return ClaimUnavailable, nil
	}
	if len(rows) == 0 {
		return ClaimNothing, nil
	}

	var items []*item.Item
	var mesos int64
	ids := make([]int64, 0, len(rows))
	for _, si := range rows {
		ids = append(ids, si.ID)
		if si.Sold {
			mesos += int64(si.Mesos)
			continue
		}
		items = append(items, grantable(si)...)
	}
	if mesos > math.MaxInt32 || !inv.CanAddMoney(int32(mesos)) {
		return ClaimNoMoney, nil
	}
	if !inv.CanAddItems(items) {
		return ClaimNoSlot, nil
	}

	if err := a.store.DeleteRows(ctx, ids); err != nil {
		a.fault("claim_delete", characterID, err)
		return ClaimUnavailable, nil
	}

	out := &Claimed{Items: items, Mesos: int32(mesos)}
	for _, it := range items {
		ops, ok := inv.AddItem(it)
		if !ok {
			a.logger.Error("mailbox claim grant failed after capacity check",
				zap.Int32("char_id", characterID),
				zap.Int32("item_id", it.ItemID),
				zap.Int32("quantity", it.Quantity))
			continue
		}
		out.Ops = append(out.Ops, ops...)
	}
	if mesos > 0 && !inv.AddMoney(int32(mesos)) {
		a.logger.Error("mailbox claim money grant failed after capacity check",
			zap.Int32("char_id", characterID),
			zap.Int64("mesos", mesos))
	}
	return ClaimOK, out
}

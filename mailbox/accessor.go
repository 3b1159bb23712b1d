package mailbox

import (
	"context"

	"go.uber.org/zap"
)

// Accessor is the game-facing view of the mailbox. Storage faults are logged
// and degrade to empty, zero or false so that game logic never blocks on the
// database; callers re-check state when it matters.
type Accessor struct {
	store  *Store
	logger *zap.Logger
}

// NewAccessor wraps store.
func NewAccessor(store *Store, logger *zap.Logger) *Accessor {
	return &Accessor{store: store, logger: logger}
}

// Store returns the underlying store.
func (a *Accessor) Store() *Store { return a.store }

func (a *Accessor) fault(op string, characterID int32, err error) {
	a.logger.Error("mailbox storage fault",
		zap.String("op", op),
		zap.Int32("char_id", characterID),
		zap.Error(err))
}

func (a *Accessor) ListAll(ctx context.Context, characterID int32) []*ShopItem {
	rows, err := a.store.ListAll(ctx, characterID)
	if err != nil {
		a.fault("list_all", characterID, err)
		return nil
	}
	return rows
}

func (a *Accessor) ListUnsold(ctx context.Context, characterID int32) []*ShopItem {
	rows, err := a.store.ListUnsold(ctx, characterID)
	if err != nil {
		a.fault("list_unsold", characterID, err)
		return nil
	}
	return rows
}

func (a *Accessor) ListSold(ctx context.Context, characterID int32) []*ShopItem {
	rows, err := a.store.ListSold(ctx, characterID)
	if err != nil {
		a.fault("list_sold", characterID, err)
		return nil
	}
	return rows
}

func (a *Accessor) HasAny(ctx context.Context, characterID int32) bool {
	ok, err := a.store.HasAny(ctx, characterID)
	if err != nil {
		a.fault("has_any", characterID, err)
		return false
	}
	return ok
}

// Probe is HasAny without the degradation: it tells "no rows" apart from
// "storage unavailable".
func (a *Accessor) Probe(ctx context.Context, characterID int32) (bool, error) {
	return a.store.HasAny(ctx, characterID)
}

// SaveUnsold stores returned stock and reports whether it was written.
func (a *Accessor) SaveUnsold(ctx context.Context, si *ShopItem) bool {
	if err := a.store.SaveUnsold(ctx, si); err != nil {
		a.fault("save_unsold", si.CharacterID, err)
		return false
	}
	return true
}

// SaveSold stores sale proceeds and reports whether they were written.
func (a *Accessor) SaveSold(ctx context.Context, si *ShopItem) bool {
	if err := a.store.SaveSold(ctx, si); err != nil {
		a.fault("save_sold", si.CharacterID, err)
		return false
	}
	return true
}

func (a *Accessor) DeleteOne(ctx context.Context, rowID int64) bool {
	if err := a.store.DeleteOne(ctx, rowID); err != nil {
		a.logger.Error("mailbox storage fault",
			zap.String("op", "delete_one"),
			zap.Int64("row_id", rowID),
			zap.Error(err))
		return false
	}
	return true
}

func (a *Accessor) DeleteAll(ctx context.Context, characterID int32) bool {
	if _, err := a.store.DeleteAll(ctx, characterID); err != nil {
		a.fault("delete_all", characterID, err)
		return false
	}
	return true
}

func (a *Accessor) TotalMesosOwed(ctx context.Context, characterID int32) int64 {
	total, err := a.store.TotalMesosOwed(ctx, characterID)
	if err != nil {
		a.fault("total_mesos", characterID, err)
		return 0
	}
	return total
}

package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoSerial is returned when an item needs a serial number and no
// allocator is configured.
var ErrNoSerial = errors.New("mailbox: no item serial allocator")

// ShopItem is one mailbox row: returned stock (Sold false) or sale proceeds
// (Sold true, Item optional).
type ShopItem struct {
	ID          int64
	CharacterID int32
	Item        *item.Item
	Price       int32
	Bundles     int32
	Sold        bool
	Mesos       int32
	BuyerName   string
}

// Store is the relational mailbox. Every method runs in its own short
// transaction and reports storage faults as errors.
type Store struct {
	db      *gorm.DB
	serials item.SerialAllocator
}

// NewStore creates a Store. serials assigns durable serial numbers to items
// that do not have one yet.
func NewStore(db *gorm.DB, serials item.SerialAllocator) *Store {
	return &Store{db: db, serials: serials}
}

func toRecord(it *item.Item) *model.ItemRecord {
	return &model.ItemRecord{
		ItemSN:     it.SN,
		ItemID:     it.ItemID,
		Quantity:   it.Quantity,
		Attribute:  it.Attribute,
		Title:      it.Title,
		DateExpire: it.DateExpire,
	}
}

func fromRecord(rec *model.ItemRecord) *item.Item {
	if rec == nil {
		return nil
	}
	return &item.Item{
		SN:         rec.ItemSN,
		ItemID:     rec.ItemID,
		Quantity:   rec.Quantity,
		Attribute:  rec.Attribute,
		Title:      rec.Title,
		DateExpire: rec.DateExpire,
	}
}

func fromEntry(e *model.ShopEntry) *ShopItem {
	return &ShopItem{
		ID:          e.ID,
		CharacterID: e.CharacterID,
		Item:        fromRecord(e.Item),
		Price:       e.Price,
		Bundles:     e.Bundles,
		Sold:        e.Sold,
		Mesos:       e.Mesos,
		BuyerName:   e.BuyerName,
	}
}

func (s *Store) list(ctx context.Context, characterID int32, sold *bool) ([]*ShopItem, error) {
	q := s.db.WithContext(ctx).
		Joins("Item").
		Where("player_shop.character_id = ?", characterID)
	if sold != nil {
		q = q.Where("player_shop.sold = ?", *sold)
	}
	var rows []model.ShopEntry
	if err := q.Order("player_shop.id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("mailbox: list %d: %w", characterID, err)
	}
	out := make([]*ShopItem, 0, len(rows))
	for i := range rows {
		out = append(out, fromEntry(&rows[i]))
	}
	return out, nil
}

// ListAll returns every row of characterID, oldest first.
func (s *Store) ListAll(ctx context.Context, characterID int32) ([]*ShopItem, error) {
	return s.list(ctx, characterID, nil)
}

// ListUnsold returns the returned-stock rows of characterID, oldest first.
func (s *Store) ListUnsold(ctx context.Context, characterID int32) ([]*ShopItem, error) {
	sold := false
	return s.list(ctx, characterID, &sold)
}

// ListSold returns the sale-proceeds rows of characterID, oldest first.
func (s *Store) ListSold(ctx context.Context, characterID int32) ([]*ShopItem, error) {
	sold := true
	return s.list(ctx, characterID, &sold)
}

// HasAny reports whether characterID has at least one row.
func (s *Store) HasAny(ctx context.Context, characterID int32) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.ShopEntry{}).
		Where("character_id = ?", characterID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("mailbox: has any %d: %w", characterID, err)
	}
	return n > 0, nil
}

// SaveUnsold inserts a returned-stock row.
func (s *Store) SaveUnsold(ctx context.Context, si *ShopItem) error {
	return s.save(ctx, si, false)
}

// SaveSold inserts a sale-proceeds row.
func (s *Store) SaveSold(ctx context.Context, si *ShopItem) error {
	return s.save(ctx, si, true)
}

// save writes the item row (allocating a serial first if needed) and the
// mailbox row in one transaction. On success si.ID and si.Item.SN are set.
func (s *Store) save(ctx context.Context, si *ShopItem, sold bool) error {
	if si.Item != nil && si.Item.SN <= 0 {
		if s.serials == nil {
			return ErrNoSerial
		}
		sn, err := s.serials.Next(ctx)
		if err != nil {
			return fmt.Errorf("mailbox: allocate item serial: %w", err)
		}
		si.Item.SN = sn
	}

	entry := &model.ShopEntry{
		CharacterID: si.CharacterID,
		Price:       si.Price,
		Bundles:     si.Bundles,
		Sold:        sold,
		Mesos:       si.Mesos,
		BuyerName:   si.BuyerName,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if si.Item != nil {
			rec := toRecord(si.Item)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error; err != nil {
				return err
			}
			sn := rec.ItemSN
			entry.ItemSerial = &sn
		}
		return tx.Omit(clause.Associations).Create(entry).Error
	})
	if err != nil {
		return fmt.Errorf("mailbox: save for %d: %w", si.CharacterID, err)
	}
	si.ID = entry.ID
	si.Sold = sold
	return nil
}

// ErrRowsChanged reports that rows a caller listed were gone by the time it
// came to delete them.
var ErrRowsChanged = errors.New("mailbox: rows changed since listing")

// deleteWhere removes matching rows and the item rows they reference. When
// want is not negative, exactly want rows must match or nothing is removed.
func (s *Store) deleteWhere(ctx context.Context, query string, arg interface{}, want int64) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sns []int64
		if err := tx.Model(&model.ShopEntry{}).
			Where(query, arg).
			Where("item_sn IS NOT NULL").
			Pluck("item_sn", &sns).Error; err != nil {
			return err
		}
		res := tx.Where(query, arg).Delete(&model.ShopEntry{})
		if res.Error != nil {
			return res.Error
		}
		if want >= 0 && res.RowsAffected != want {
			return ErrRowsChanged
		}
		deleted = res.RowsAffected
		if len(sns) > 0 {
			if err := tx.Where("item_sn IN ?", sns).Delete(&model.ItemRecord{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return deleted, err
}

// DeleteOne removes the row with the given id. A missing row is not an error.
func (s *Store) DeleteOne(ctx context.Context, rowID int64) error {
	if _, err := s.deleteWhere(ctx, "id = ?", rowID, -1); err != nil {
		return fmt.Errorf("mailbox: delete row %d: %w", rowID, err)
	}
	return nil
}

// DeleteAll removes every row of characterID and reports how many went.
func (s *Store) DeleteAll(ctx context.Context, characterID int32) (int64, error) {
	n, err := s.deleteWhere(ctx, "character_id = ?", characterID, -1)
	if err != nil {
		return 0, fmt.Errorf("mailbox: delete all %d: %w", characterID, err)
	}
	return n, nil
}

// DeleteRows removes exactly the rows in ids. If any of them is already gone
// nothing is removed and ErrRowsChanged is returned.
func (s *Store) DeleteRows(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.deleteWhere(ctx, "id IN ?", ids, int64(len(ids))); err != nil {
		return fmt.Errorf("mailbox: delete rows: %w", err)
	}
	return nil
}

// TotalMesosOwed sums the proceeds of characterID's sold rows.
func (s *Store) TotalMesosOwed(ctx context.Context, characterID int32) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&model.ShopEntry{}).
		Select("COALESCE(SUM(mesos), 0)").
		Where("character_id = ? AND sold = ?", characterID, true).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("mailbox: total mesos %d: %w", characterID, err)
	}
	return total, nil
}

// MaxSerial returns the highest item serial held in the mailbox, or 0.
func (s *Store) MaxSerial(ctx context.Context) (int64, error) {
	var sn int64
	err := s.db.WithContext(ctx).Model(&model.ItemRecord{}).
		Select("COALESCE(MAX(item_sn), 0)").
		Scan(&sn).Error
	if err != nil {
		return 0, fmt.Errorf("mailbox: max serial: %w", err)
	}
	return sn, nil
}

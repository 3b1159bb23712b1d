package model

import "time"

// ItemRecord is the durable snapshot of one item instance, keyed by its serial
// number. Rows are written when an item leaves live memory, e.g. when a closed
// shop hands stock to the mailbox.
type ItemRecord struct {
	ItemSN     int64     `gorm:"column:item_sn;primaryKey;autoIncrement:false" json:"item_sn"`
	ItemID     int32     `gorm:"not null;index:idx_items_item_id" json:"item_id"`
	Quantity   int32     `gorm:"not null;default:1" json:"quantity"`
	Attribute  int16     `gorm:"not null;default:0" json:"attribute"`
	Title      string    `gorm:"size:13" json:"title"`
	DateExpire int64     `gorm:"not null;default:0" json:"date_expire"` // unix seconds, 0 = permanent
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ItemRecord) TableName() string { return "items" }

package model

import "time"

// ShopEntry is one mailbox row held for a hired-merchant owner. Unsold rows
// carry returned stock; sold rows carry sale proceeds and may have no item.
// Rows are only ever inserted or deleted.
type ShopEntry struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID int32     `gorm:"not null;index:idx_player_shop_char" json:"character_id"`
	ItemSerial  *int64    `gorm:"column:item_sn;index:idx_player_shop_item" json:"item_sn"`
	Price       int32     `gorm:"not null;default:0" json:"price"`
	Bundles     int32     `gorm:"not null;default:0" json:"bundles"`
	Sold        bool      `gorm:"not null;default:false" json:"sold"`
	Mesos       int32     `gorm:"not null;default:0" json:"mesos"`
	BuyerName   string    `gorm:"size:13" json:"buyer_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// belongs to items: player_shop.item_sn references items.item_sn
	Item *ItemRecord `gorm:"foreignKey:ItemSerial;references:ItemSN" json:"item,omitempty"`
}

func (ShopEntry) TableName() string { return "player_shop" }

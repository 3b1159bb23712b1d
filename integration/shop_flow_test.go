package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/mailbox"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 3 * time.Second

func TestShopFlow_SellCloseAndClaim(t *testing.T) {
	ts := NewTestServer(t)
	seller := mw.Identity{AccountID: 1, CharacterID: 100, CharacterName: "Seller", Level: 70}
	ownerWS, ownerSess := ts.ConnectWS(t, seller)
	_, ok := ownerSess.Inventory().AddItem(&item.Item{ItemID: potionID, Quantity: 10})
	require.True(t, ok)

	// set up, stock and open the shop
	ownerWS.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.MRPCreate))
		o.EncodeByte(int8(miniroom.RoomEntrustedShop))
		o.EncodeString("potions")
		o.EncodeInt(5030000)
		o.EncodeShort(100)
		o.EncodeShort(200)
		o.EncodeShort(7)
	})
	in := ownerWS.RecvMiniRoom(miniroom.MRPEnterResult, wait)
	assert.Equal(t, int8(miniroom.RoomEntrustedShop), in.DecodeByte())

	ownerWS.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.ESPPutItem))
		o.EncodeByte(int8(item.Consume))
		o.EncodeShort(1)
		o.EncodeShort(2)
		o.EncodeShort(5)
		o.EncodeInt(1000)
	})
	ownerWS.RecvMiniRoom(miniroom.ESPRefresh, wait)

	ownerWS.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.MRPBalloon))
		o.EncodeBool(true)
	})
	ownerWS.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.ESPGoOut))
	})
	shop := ts.Shops.ByEmployer(100)
	require.NotNil(t, shop)
	require.Eventually(t, func() bool { return shop.IsOpen() && ownerSess.Dialog() == nil }, wait, 10*time.Millisecond)

	// a buyer arriving in the field sees the merchant and buys one bundle
	buyerWS, buyerSess := ts.ConnectWS(t, mw.Identity{AccountID: 2, CharacterID: 200, CharacterName: "Buyer", Level: 30})
	require.True(t, buyerSess.Inventory().AddMoney(5000))
	in = buyerWS.Recv(packet.OutEmployeeEnterField, wait)
	assert.Equal(t, int32(100), in.DecodeInt())

	buyerWS.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.MRPEnter))
		o.EncodeInt(shop.ID())
	})
	in = buyerWS.RecvMiniRoom(miniroom.MRPEnterResult, wait)
	require.Equal(t, int8(miniroom.RoomEntrustedShop), in.DecodeByte())

	buyerWS.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.ESPBuyItem))
		o.EncodeByte(0)
		o.EncodeShort(1)
		o.EncodeInt(0)
	})
	// a successful buy has no result frame; occupants get the refreshed stock
	in = buyerWS.RecvMiniRoom(miniroom.ESPRefresh, wait)
	assert.Equal(t, int32(1000), in.DecodeInt())
	assert.Equal(t, int32(4000), buyerSess.Inventory().Money())
	assert.Equal(t, int32(1000), shop.Money())

	// the seller logs off; closing the shop sends everything to the mailbox
	ownerWS.Close()
	require.Eventually(t, func() bool { return ts.SM.Get(100) == nil }, wait, 10*time.Millisecond)

	resp := ts.Do(t, http.MethodPost, "/admin/shops/100/close", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	in = buyerWS.RecvMiniRoom(miniroom.MRPLeave, wait)
	assert.Equal(t, int8(1), in.DecodeByte())
	assert.Equal(t, int8(miniroom.LeaveHostOut), in.DecodeByte())

	token := ts.Login(t, seller)
	var box struct {
		Items []struct {
			ItemID  int32 `json:"item_id"`
			Bundles int32 `json:"bundles"`
			Sold    bool  `json:"sold"`
		} `json:"items"`
		MesosOwed   int64 `json:"mesos_owed"`
		CanOpenShop bool  `json:"can_open_shop"`
	}
	ReadJSON(t, ts.Do(t, http.MethodGet, "/api/mailbox", token), &box)
	assert.Len(t, box.Items, 2)
	assert.Equal(t, int64(1000), box.MesosOwed)
	assert.False(t, box.CanOpenShop)

	// back online, the seller claims everything through the store bank
	ownerWS, ownerSess = ts.ConnectWS(t, seller)
	ownerWS.Send(packet.InStoreBankRequest, func(o *packet.OutPacket) {
		o.EncodeByte(mailbox.BankRequestGetAll)
	})
	in = ownerWS.Recv(packet.OutStoreBankGetAllResult, wait)
	assert.Equal(t, mailbox.BankResultGetAllDone, in.DecodeByte())
	assert.Equal(t, int32(1000), in.DecodeInt())
	inv := ownerSess.Inventory().(*item.InventoryManager)
	assert.Equal(t, int32(5), inv.Count(potionID))
	assert.Equal(t, int32(1000), inv.Money())

	ReadJSON(t, ts.Do(t, http.MethodGet, "/api/mailbox", token), &box)
	assert.Empty(t, box.Items)
	assert.True(t, box.CanOpenShop)
}

func TestShopFlow_CreateBlockedByMailbox(t *testing.T) {
	ts := NewTestServer(t)
	ws, _ := ts.ConnectWS(t, mw.Identity{AccountID: 1, CharacterID: 100, CharacterName: "Seller"})
	require.NoError(t, mailbox.NewStore(ts.DB, nil).SaveSold(context.Background(), &mailbox.ShopItem{CharacterID: 100, Mesos: 5}))

	ws.Send(packet.InMiniRoom, func(o *packet.OutPacket) {
		o.EncodeByte(int8(miniroom.MRPCreate))
		o.EncodeByte(int8(miniroom.RoomEntrustedShop))
		o.EncodeString("potions")
		o.EncodeInt(5030000)
		o.EncodeShort(0)
		o.EncodeShort(0)
		o.EncodeShort(0)
	})
	in := ws.RecvMiniRoom(miniroom.MRPEnterResult, wait)
	assert.Equal(t, int8(0), in.DecodeByte())
	assert.Equal(t, int8(miniroom.EnterNoRoom), in.DecodeByte())
	assert.Nil(t, ts.Shops.ByEmployer(100))
}

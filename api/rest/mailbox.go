package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/worldsrv/mailbox"
	mw "github.com/kasuganosora/worldsrv/middleware"
)

// MailboxHandler exposes the caller's store-bank rows to the web client.
type MailboxHandler struct {
	mail *mailbox.Accessor
}

// NewMailboxHandler creates a MailboxHandler.
func NewMailboxHandler(mail *mailbox.Accessor) *MailboxHandler {
	return &MailboxHandler{mail: mail}
}

type mailboxRow struct {
	ID        int64  `json:"id"`
	ItemID    int32  `json:"item_id,omitempty"`
	Quantity  int32  `json:"quantity,omitempty"`
	Bundles   int32  `json:"bundles"`
	Price     int32  `json:"price"`
	Sold      bool   `json:"sold"`
	Mesos     int32  `json:"mesos"`
	BuyerName string `json:"buyer_name,omitempty"`
}

// List returns everything waiting for the caller.
// GET /api/mailbox
func (h *MailboxHandler) List(c *gin.Context) {
	id, ok := mw.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()
	rows := h.mail.ListAll(ctx, id.CharacterID)
	out := make([]mailboxRow, 0, len(rows))
	for _, si := range rows {
		r := mailboxRow{
			ID:        si.ID,
			Bundles:   si.Bundles,
			Price:     si.Price,
			Sold:      si.Sold,
			Mesos:     si.Mesos,
			BuyerName: si.BuyerName,
		}
		if si.Item != nil {
			r.ItemID = si.Item.ItemID
			r.Quantity = si.Item.Quantity
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{
		"items":         out,
		"mesos_owed":    h.mail.TotalMesosOwed(ctx, id.CharacterID),
		"can_open_shop": len(out) == 0,
	})
}

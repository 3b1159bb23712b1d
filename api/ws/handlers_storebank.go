package ws

import (
	"context"
	"fmt"

	"github.com/kasuganosora/worldsrv/audit"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/mailbox"
	"go.uber.org/zap"
)

// StoreBankHandlers serves the retrieval NPC: listing and claiming what
// closed shops left in the mailbox.
type StoreBankHandlers struct {
	mail   *mailbox.Accessor
	audit  *audit.Service
	logger *zap.Logger
}

// NewStoreBankHandlers creates StoreBankHandlers.
func NewStoreBankHandlers(mail *mailbox.Accessor, a *audit.Service, logger *zap.Logger) *StoreBankHandlers {
	return &StoreBankHandlers{mail: mail, audit: a, logger: logger}
}

// RegisterHandlers registers store-bank WS handlers.
func (h *StoreBankHandlers) RegisterHandlers(r *Router) {
	r.On(packet.InStoreBankRequest, h.HandleRequest)
}

// HandleRequest lists or claims the caller's mailbox.
func (h *StoreBankHandlers) HandleRequest(ctx context.Context, s *player.PlayerSession, in *packet.InPacket) error {
	mode := in.DecodeByte()
	if err := in.Err(); err != nil {
		s.Dispose("short store bank frame")
		return err
	}
	switch mode {
	case mailbox.BankRequestShowItems:
		unsold := h.mail.ListUnsold(ctx, s.CharID)
		s.Write(mailbox.ShowItemsPacket(unsold, h.mail.TotalMesosOwed(ctx, s.CharID)))
		return nil
	case mailbox.BankRequestGetAll:
		return h.claim(ctx, s)
	default:
		return fmt.Errorf("store bank: unknown mode %d", mode)
	}
}

func (h *StoreBankHandlers) claim(ctx context.Context, s *player.PlayerSession) error {
	if s.Dialog() != nil {
		s.Write(mailbox.GetAllResultPacket(mailbox.ClaimUnavailable, 0))
		return nil
	}
	r, claimed := h.mail.Claim(ctx, s.CharID, s.Inventory())
	if r != mailbox.ClaimOK {
		s.Write(mailbox.GetAllResultPacket(r, 0))
		return nil
	}
	if len(claimed.Ops) > 0 {
		s.Write(item.OperationPacket(claimed.Ops, false))
	}
	if claimed.Mesos > 0 {
		s.Write(item.MoneyPacket(s.Inventory().Money()))
	}
	s.Write(mailbox.GetAllResultPacket(r, claimed.Mesos))

	charID := s.CharID
	h.audit.Log(audit.AuditEntry{
		TraceID:   s.TraceID,
		CharID:    &charID,
		CharName:  s.CharName,
		Action:    audit.ActionMailboxClaim,
		Detail:    map[string]any{"items": len(claimed.Items), "mesos": claimed.Mesos},
		ChannelID: s.ChannelID,
		FieldID:   s.FieldID(),
	})
	h.logger.Info("mailbox claimed",
		zap.Int32("char_id", s.CharID),
		zap.Int("items", len(claimed.Items)),
		zap.Int32("mesos", claimed.Mesos))
	return nil
}

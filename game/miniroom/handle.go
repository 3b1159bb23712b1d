package miniroom

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"go.uber.org/zap"
)

// HandlePacket decodes one InMiniRoom frame from u and applies it. Input that
// is malformed or impossible in the current state disposes the session.
func (m *Manager) HandlePacket(ctx context.Context, u *player.PlayerSession, in *packet.InPacket) error {
	err := m.handle(ctx, u, in)
	if err == nil {
		err = in.Err()
	}
	if errors.Is(err, ErrInvalidAction) || errors.Is(err, packet.ErrPacketUnderflow) {
		u.Dispose(err.Error())
	}
	return err
}

func (m *Manager) handle(ctx context.Context, u *player.PlayerSession, in *packet.InPacket) error {
	p := Protocol(in.DecodeByte())
	switch p {
	case MRPCreate:
		return m.handleCreate(ctx, u, in)
	case MRPEnter:
		return m.handleEnter(u, in)
	}

	shop, ok := u.Dialog().(*EntrustedShop)
	if !ok {
		return invalid("protocol %d outside a shop", p)
	}
	switch p {
	case ESPPutItem:
		invType := in.DecodeByte()
		pos := in.DecodeShort()
		bundles := in.DecodeShort()
		perBundle := in.DecodeShort()
		price := in.DecodeInt()
		if err := in.Err(); err != nil {
			return err
		}
		return shop.PutItem(ctx, u, invType, pos, int32(bundles), int32(perBundle), price)
	case ESPBuyItem:
		index := in.DecodeByte()
		count := in.DecodeShort()
		_ = in.DecodeInt() // item crc
		if err := in.Err(); err != nil {
			return err
		}
		_, err := shop.Buy(ctx, u, int(index), int32(count))
		return err
	case ESPMoveItemToInventory:
		index := in.DecodeShort()
		if err := in.Err(); err != nil {
			return err
		}
		return shop.MoveItemToInventory(u, int(index))
	case ESPWithdrawAll:
		_, err := shop.WithdrawAll(u)
		return err
	case ESPWithdrawMoney:
		return shop.WithdrawMoney(u)
	case ESPArrangeItem:
		return shop.Arrange(u)
	case ESPDeliverBlackList, PSPDeliverBlackList:
		n := in.DecodeShort()
		if n < 0 {
			return invalid("black list size %d", n)
		}
		names := make([]string, 0, n)
		for i := int16(0); i < n && in.Err() == nil; i++ {
			names = append(names, in.DecodeString())
		}
		if err := in.Err(); err != nil {
			return err
		}
		return shop.DeliverBlackList(u, names)
	case ESPAddBlackList:
		name := in.DecodeString()
		if err := in.Err(); err != nil {
			return err
		}
		return shop.AddBlackList(u, name)
	case ESPDeleteBlackList:
		name := in.DecodeString()
		if err := in.Err(); err != nil {
			return err
		}
		return shop.DeleteBlackList(u, name)
	case ESPDeliverVisitList:
		u.Write(VisitListPacket(shop.VisitList()))
		return nil
	case ESPGoOut:
		return shop.GoOut(u)
	case MRPBalloon:
		open := in.DecodeBool()
		if err := in.Err(); err != nil {
			return err
		}
		if open {
			return shop.Open(u)
		}
		if shop.OwnerID() != u.CharID {
			return invalid("close by non-owner %d", u.CharID)
		}
		shop.Close(ctx, LeaveClosed)
		return nil
	case MRPLeave:
		shop.Leave(u)
		return nil
	default:
		m.logger.Warn("unhandled mini-room protocol",
			zap.Int32("char_id", u.CharID), zap.Int8("protocol", int8(p)))
		return nil
	}
}

func (m *Manager) handleCreate(ctx context.Context, u *player.PlayerSession, in *packet.InPacket) error {
	roomType := RoomType(in.DecodeByte())
	req := CreateRequest{
		Title:      in.DecodeString(),
		TemplateID: in.DecodeInt(),
		X:          in.DecodeShort(),
		Y:          in.DecodeShort(),
		Foothold:   in.DecodeShort(),
	}
	if err := in.Err(); err != nil {
		return err
	}
	if roomType != RoomEntrustedShop {
		return invalid("create room type %d", roomType)
	}
	f := m.fields.GetOrCreate(u.FieldID())
	if _, err := m.Create(ctx, u, f, req); err != nil {
		u.Write(EnterResultPacket(createFailure(err)))
		if errors.Is(err, ErrMailboxUnavailable) {
			m.logger.Error("shop creation blocked by mailbox fault",
				zap.Int32("char_id", u.CharID), zap.Error(err))
		}
		return fmt.Errorf("miniroom: create: %w", err)
	}
	return nil
}

func createFailure(err error) EnterResult {
	switch {
	case errors.Is(err, ErrHasShop), errors.Is(err, ErrInDialog):
		return EnterExistMiniRoom
	default:
		return EnterNoRoom
	}
}

func (m *Manager) handleEnter(u *player.PlayerSession, in *packet.InPacket) error {
	roomID := in.DecodeInt()
	if err := in.Err(); err != nil {
		return err
	}
	f := m.fields.Get(u.FieldID())
	if f == nil {
		u.Write(EnterResultPacket(EnterNoRoom))
		return nil
	}
	shop, ok := f.MiniRoom(roomID).(*EntrustedShop)
	if !ok {
		u.Write(EnterResultPacket(EnterNoRoom))
		return nil
	}
	shop.Enter(u)
	return nil
}

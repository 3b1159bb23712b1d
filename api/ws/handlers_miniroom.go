package ws

import (
	"context"

	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
)

// MiniRoomHandlers routes mini-room frames to the entrusted shop manager.
type MiniRoomHandlers struct {
	shops *miniroom.Manager
}

// NewMiniRoomHandlers creates MiniRoomHandlers.
func NewMiniRoomHandlers(shops *miniroom.Manager) *MiniRoomHandlers {
	return &MiniRoomHandlers{shops: shops}
}

// RegisterHandlers registers mini-room WS handlers.
func (h *MiniRoomHandlers) RegisterHandlers(r *Router) {
	r.On(packet.InMiniRoom, h.HandleMiniRoom)
}

// HandleMiniRoom applies one mini-room action.
func (h *MiniRoomHandlers) HandleMiniRoom(ctx context.Context, s *player.PlayerSession, in *packet.InPacket) error {
	return h.shops.HandlePacket(ctx, s, in)
}

package ws

import (
	"context"
	"fmt"

	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"go.uber.org/zap"
)

// GameHandlers handles keep-alive and field movement.
type GameHandlers struct {
	fields   *field.Manager
	presence Presence
	logger   *zap.Logger
}

// NewGameHandlers creates GameHandlers.
func NewGameHandlers(fields *field.Manager, presence Presence, logger *zap.Logger) *GameHandlers {
	return &GameHandlers{fields: fields, presence: presence, logger: logger}
}

// RegisterHandlers registers game WS handlers.
func (gh *GameHandlers) RegisterHandlers(r *Router) {
	r.On(packet.InPing, gh.HandlePing)
	r.On(packet.InChangeField, gh.HandleChangeField)
}

// HandlePing answers a client ping.
func (gh *GameHandlers) HandlePing(_ context.Context, s *player.PlayerSession, _ *packet.InPacket) error {
	s.Write(packet.NewOutPacket(packet.OutPong))
	return nil
}

// HandleChangeField moves s to another field. A character with a dialog
// open stays where it is.
func (gh *GameHandlers) HandleChangeField(ctx context.Context, s *player.PlayerSession, in *packet.InPacket) error {
	fieldID := in.DecodeInt()
	if err := in.Err(); err != nil {
		s.Dispose("short change field frame")
		return err
	}
	if fieldID <= 0 {
		return fmt.Errorf("change field: invalid field %d", fieldID)
	}
	if s.Dialog() != nil || s.FieldID() == fieldID {
		return nil
	}
	leaveField(s, gh.fields)
	enterField(s, gh.fields.GetOrCreate(fieldID))
	if gh.presence != nil {
		if err := gh.presence.Update(ctx, s); err != nil {
			gh.logger.Warn("presence update failed",
				zap.Int32("char_id", s.CharID), zap.Error(err))
		}
	}
	return nil
}

// enterField places s in f and shows it the hired merchants standing there.
func enterField(s *player.PlayerSession, f *field.Field) {
	f.AddPlayer(s)
	for _, r := range f.MiniRooms() {
		if shop, ok := r.(*miniroom.EntrustedShop); ok {
			s.Write(miniroom.EmployeeEnterFieldPacket(shop))
		}
	}
}

// leaveField takes s out of its field and drops the field once it is empty.
func leaveField(s *player.PlayerSession, fields *field.Manager) {
	f := fields.Get(s.FieldID())
	if f == nil {
		return
	}
	f.RemovePlayer(s)
	fields.Release(f.ID)
}

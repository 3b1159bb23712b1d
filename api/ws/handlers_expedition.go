package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"go.uber.org/zap"
)

// Submitter forwards expedition requests to the central server.
// *central.Client satisfies it.
type Submitter interface {
	SubmitExpeditionRequest(ctx context.Context, s *player.PlayerSession, req expedition.Request) error
}

// ExpeditionHandlers relays expedition requests to the central server.
type ExpeditionHandlers struct {
	central Submitter
	logger  *zap.Logger
}

// NewExpeditionHandlers creates ExpeditionHandlers.
func NewExpeditionHandlers(central Submitter, logger *zap.Logger) *ExpeditionHandlers {
	return &ExpeditionHandlers{central: central, logger: logger}
}

// RegisterHandlers registers expedition WS handlers.
func (h *ExpeditionHandlers) RegisterHandlers(r *Router) {
	r.On(packet.InExpeditionRequest, h.HandleRequest)
}

// HandleRequest decodes one expedition request and forwards it. Unknown
// request types are dropped; truncated frames dispose the session.
func (h *ExpeditionHandlers) HandleRequest(ctx context.Context, s *player.PlayerSession, in *packet.InPacket) error {
	req, err := expedition.DecodeRequest(in)
	if err != nil {
		if errors.Is(err, packet.ErrPacketUnderflow) {
			s.Dispose("short expedition request")
		}
		return fmt.Errorf("expedition request: %w", err)
	}
	h.logger.Debug("expedition request",
		zap.Int32("char_id", s.CharID),
		zap.Stringer("type", req.Type()))
	return h.central.SubmitExpeditionRequest(ctx, s, req)
}

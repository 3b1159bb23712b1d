package ws

import (
	"context"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"go.uber.org/zap"
)

// HandlerFunc processes the body of one client frame; the header has been read.
type HandlerFunc func(ctx context.Context, s *player.PlayerSession, in *packet.InPacket) error

// Router dispatches incoming frames to handlers by header.
type Router struct {
	handlers map[packet.InHeader]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[packet.InHeader]HandlerFunc),
		logger:   logger,
	}
}

// On registers fn for frames with header h.
func (r *Router) On(h packet.InHeader, fn HandlerFunc) {
	r.handlers[h] = fn
}

// Dispatch decodes the header of raw and invokes its handler. A frame too
// short to carry a header disposes the session.
func (r *Router) Dispatch(s *player.PlayerSession, raw []byte) {
	in := packet.NewInPacket(raw)
	h := packet.InHeader(in.DecodeUShort())
	if err := in.Err(); err != nil {
		s.Dispose("frame without header")
		return
	}

	s.TraceID = uuid.NewString()
	ctx := mw.WithTraceID(context.Background(), s.TraceID)

	fn, ok := r.handlers[h]
	if !ok {
		r.logger.Debug("unhandled frame",
			zap.Uint16("header", uint16(h)),
			zap.Int32("char_id", s.CharID))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in frame handler",
				zap.Uint16("header", uint16(h)),
				zap.Int32("char_id", s.CharID),
				zap.Any("recover", rec),
				zap.String("stack", string(debug.Stack())))
			s.Dispose("handler panic")
		}
	}()
	if err := fn(ctx, s, in); err != nil {
		r.logger.Warn("handler error",
			zap.Uint16("header", uint16(h)),
			zap.Int32("char_id", s.CharID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
	}
}

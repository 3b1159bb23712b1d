package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/player"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"go.uber.org/zap"
)

// DefaultFieldID is where a connection lands when it names no field: the
// Free Market entrance.
const DefaultFieldID int32 = 910000000

// Presence tells the central server who is connected where.
// *central.Client satisfies it.
type Presence interface {
	Online(ctx context.Context, s *player.PlayerSession) error
	Update(ctx context.Context, s *player.PlayerSession) error
	Offline(ctx context.Context, s *player.PlayerSession) error
}

// Handler is the Gin handler for GET /ws.
type Handler struct {
	cache     cache.Cache
	sec       config.SecurityConfig
	slots     int16
	channelID int32
	sm        *player.SessionManager
	fields    *field.Manager
	items     item.InfoProvider
	presence  Presence
	router    *Router
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	c cache.Cache,
	sec config.SecurityConfig,
	game config.GameConfig,
	channelID int32,
	sm *player.SessionManager,
	fields *field.Manager,
	items item.InfoProvider,
	presence Presence,
	router *Router,
	logger *zap.Logger,
) *Handler {
	slots := int16(game.InventorySlots)
	if slots <= 0 {
		slots = 24
	}
	h := &Handler{
		cache:     c,
		sec:       sec,
		slots:     slots,
		channelID: channelID,
		sm:        sm,
		fields:    fields,
		items:     items,
		presence:  presence,
		router:    router,
		logger:    logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>[&field=<id>].
func (h *Handler) ServeWS(c *gin.Context) {
	claims, ok := mw.Authenticate(c.Request.Context(), mw.TokenFromRequest(c), h.sec, h.cache)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return
	}
	fieldID := DefaultFieldID
	if v := c.Query("field"); v != "" {
		id, err := strconv.ParseInt(v, 10, 32)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
			return
		}
		fieldID = int32(id)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewPlayerSession(claims.AccountID, claims.CharacterID, conn, h.logger)
	sess.CharName = claims.CharacterName
	sess.ChannelID = h.channelID
	sess.SetProfile(claims.Level, claims.Job)
	sess.SetInventory(item.NewInventoryManager(h.slots, 0, h.items))

	h.sm.Register(sess)
	enterField(sess, h.fields.GetOrCreate(fieldID))
	h.announce(sess, Presence.Online)

	// Blocks until the connection closes.
	h.readPump(sess)
}

func (h *Handler) announce(s *player.PlayerSession, fn func(Presence, context.Context, *player.PlayerSession) error) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fn(h.presence, ctx, s); err != nil {
		h.logger.Warn("presence update failed",
			zap.Int32("char_id", s.CharID), zap.Error(err))
	}
}

// readPump reads frames from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *player.PlayerSession) {
	defer h.handleDisconnect(s)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		msgType, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int32("char_id", s.CharID),
					zap.Error(err))
			}
			return
		}
		if s.IsClosed() {
			return
		}
		s.SetReadDeadline()
		if msgType != websocket.BinaryMessage {
			continue
		}
		h.router.Dispatch(s, raw)
	}
}

// handleDisconnect releases everything the session held on this channel.
func (h *Handler) handleDisconnect(s *player.PlayerSession) {
	s.Close()
	if d := s.Dialog(); d != nil {
		d.Leave(s)
	}
	leaveField(s, h.fields)
	if h.sm.Unregister(s) {
		h.announce(s, Presence.Offline)
	}
	h.logger.Info("player disconnected",
		zap.Int64("account_id", s.AccountID),
		zap.Int32("char_id", s.CharID))
}

package rest

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/worldsrv/db"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles operator endpoints for one channel.
// Routes should be protected by the IPWhitelist middleware.
type AdminHandler struct {
	sm     *player.SessionManager
	fields *field.Manager
	shops  *miniroom.Manager
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	sm *player.SessionManager,
	fields *field.Manager,
	shops *miniroom.Manager,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{sm: sm, fields: fields, shops: shops, sched: sched, logger: logger}
}

// Metrics returns channel health metrics.
// GET /admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_players":  h.sm.Count(),
		"active_fields":   h.fields.Count(),
		"entrusted_shops": h.shops.Count(),
		"pending_delays":  h.sched.PendingDelays(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

type shopInfo struct {
	ID           int32  `json:"id"`
	EmployerID   int32  `json:"employer_id"`
	EmployerName string `json:"employer_name"`
	Title        string `json:"title"`
	Open         bool   `json:"open"`
	Items        int    `json:"items"`
	Money        int32  `json:"money"`
	Remaining    int64  `json:"remaining_sec"`
}

// ListShops returns a snapshot of every live entrusted shop.
// GET /admin/shops
func (h *AdminHandler) ListShops(c *gin.Context) {
	shops := h.shops.All()
	result := make([]shopInfo, 0, len(shops))
	for _, s := range shops {
		result = append(result, shopInfo{
			ID:           s.ID(),
			EmployerID:   s.OwnerID(),
			EmployerName: s.EmployerName(),
			Title:        s.Title(),
			Open:         s.IsOpen(),
			Items:        len(s.Items()),
			Money:        s.Money(),
			Remaining:    int64(s.TimeRemaining().Seconds()),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployerID < result[j].EmployerID })
	c.JSON(http.StatusOK, gin.H{"shops": result, "count": len(result)})
}

// CloseShop closes the shop of an employer, returning stock and money to
// the owner or the mailbox.
// POST /admin/shops/:employer/close
func (h *AdminHandler) CloseShop(c *gin.Context) {
	employerID, err := strconv.ParseInt(c.Param("employer"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s := h.shops.ByEmployer(int32(employerID))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no shop"})
		return
	}
	s.Close(c.Request.Context(), miniroom.LeaveClosed)
	h.logger.Info("admin closed shop", zap.Int64("employer_id", employerID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// KickPlayer forcibly disconnects a player by character ID.
// POST /admin/kick/:id
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	charID, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s := h.sm.Get(int32(charID))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player", zap.Int64("char_id", charID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Health reports liveness. The mailbox lives in the database, so a server
// that cannot reach it answers 503.
// GET /health
func Health(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, gdb); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

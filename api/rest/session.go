package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
	mw "github.com/kasuganosora/worldsrv/middleware"
)

// SessionHandler manages tokens issued by the login service. Routes must sit
// behind mw.Auth.
type SessionHandler struct {
	cache cache.Cache
	sec   config.SecurityConfig
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(c cache.Cache, sec config.SecurityConfig) *SessionHandler {
	return &SessionHandler{cache: c, sec: sec}
}

// Logout handles POST /api/session/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Del(ctx, mw.SessionKey(mw.TokenFromRequest(c))); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/session/refresh. The old token stops working.
func (h *SessionHandler) Refresh(c *gin.Context) {
	id, ok := mw.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	newToken, err := mw.GenerateToken(id, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(newToken), strconv.FormatInt(id.AccountID, 10), h.sec.JWTTTLH); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
		return
	}
	_ = h.cache.Del(ctx, mw.SessionKey(mw.TokenFromRequest(c)))
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

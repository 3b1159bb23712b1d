package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
)

const IdentityKey = "identity"

// SessionKey is the cache key the login service sets for a live token.
func SessionKey(token string) string { return "session:" + token }

// TokenFromRequest returns the bearer token, or the token query parameter
// for clients that cannot set headers on a WebSocket upgrade.
func TokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// Authenticate validates token and checks that its session is still live.
func Authenticate(ctx context.Context, token string, sec config.SecurityConfig, c cache.Cache) (*Claims, bool) {
	if token == "" {
		return nil, false
	}
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(ctx, SessionKey(token))
	if err != nil || !exists {
		return nil, false
	}
	return claims, true
}

// Auth rejects requests without a live token and stores the caller's
// Identity in the context.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := TokenFromRequest(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, ok := Authenticate(ctx.Request.Context(), token, sec, c)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		ctx.Set(IdentityKey, claims.Identity)
		ctx.Next()
	}
}

// GetIdentity returns the authenticated caller, if any.
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

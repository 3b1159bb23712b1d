package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSec = config.SecurityConfig{JWTSecret: testSecret, JWTTTLH: time.Hour}

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{})
	require.NoError(t, err)
	return c
}

// liveToken issues a token for alice and records its session.
func liveToken(t *testing.T, c cache.Cache) string {
	t.Helper()
	tok, err := GenerateToken(alice, testSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(tok), "1", time.Hour))
	return tok
}

func newProtectedRouter(c cache.Cache, got *Identity) *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/me", func(ctx *gin.Context) {
		*got, _ = GetIdentity(ctx)
		ctx.Status(http.StatusOK)
	})
	return r
}

func TestAuth_Rejects(t *testing.T) {
	c := setupTestCache(t)
	var got Identity
	r := newProtectedRouter(c, &got)

	notStored, err := GenerateToken(alice, testSecret, time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":         "",
		"not bearer":      "Token abc123",
		"invalid":         "Bearer notavalidtoken",
		"session expired": "Bearer " + notStored,
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
	assert.Zero(t, got)
}

func TestAuth_BearerHeader(t *testing.T) {
	c := setupTestCache(t)
	var got Identity
	r := newProtectedRouter(c, &got)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+liveToken(t, c))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, alice, got)
}

func TestAuth_QueryToken(t *testing.T) {
	c := setupTestCache(t)
	var got Identity
	r := newProtectedRouter(c, &got)

	req := httptest.NewRequest(http.MethodGet, "/me?token="+liveToken(t, c), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(7), got.CharacterID)
}

func TestGetIdentity_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetIdentity(c)
	assert.False(t, ok)
}

func TestRecovery_CatchesPanic(t *testing.T) {
	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), w.Header().Get(TraceIDHeader))
}

func TestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(TraceID(), Logger(zap.NewNop()))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))
}

package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/worldsrv/api/rest"
	"github.com/kasuganosora/worldsrv/config"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/kasuganosora/worldsrv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	c, _ := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	h := rest.NewSessionHandler(c, sec)

	r := gin.New()
	g := r.Group("/api/session", mw.Auth(sec, c))
	g.POST("/logout", h.Logout)
	g.POST("/refresh", h.Refresh)
	g.GET("/whoami", func(ctx *gin.Context) {
		id, _ := mw.GetIdentity(ctx)
		ctx.JSON(http.StatusOK, gin.H{"char_id": id.CharacterID})
	})

	token, err := mw.GenerateToken(mw.Identity{AccountID: 3, CharacterID: 30, CharacterName: "Ria"}, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), mw.SessionKey(token), "3", time.Hour))
	return r, token
}

func authed(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSession_Logout(t *testing.T) {
	r, token := newSessionRouter(t)
	require.Equal(t, http.StatusOK, authed(r, http.MethodGet, "/api/session/whoami", token).Code)

	assert.Equal(t, http.StatusOK, authed(r, http.MethodPost, "/api/session/logout", token).Code)
	assert.Equal(t, http.StatusUnauthorized, authed(r, http.MethodGet, "/api/session/whoami", token).Code)
}

func TestSession_Refresh(t *testing.T) {
	r, token := newSessionRouter(t)
	w := authed(r, http.MethodPost, "/api/session/refresh", token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.NotEqual(t, token, resp.Token)

	assert.Equal(t, http.StatusUnauthorized, authed(r, http.MethodGet, "/api/session/whoami", token).Code)
	w = authed(r, http.MethodGet, "/api/session/whoami", resp.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"char_id":30}`, w.Body.String())
}

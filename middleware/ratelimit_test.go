package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newRateLimitRouter(t *testing.T, r rate.Limit, b int, pre ...gin.HandlerFunc) *gin.Engine {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng := gin.New()
	eng.Use(pre...)
	eng.Use(RateLimit(ctx, r, b))
	eng.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func hit(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_Burst(t *testing.T) {
	r := newRateLimitRouter(t, 0.001, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r, "10.0.1.1"), "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.1.1"))
}

func TestRateLimit_PerIP(t *testing.T) {
	r := newRateLimitRouter(t, 0.001, 1)
	assert.Equal(t, http.StatusOK, hit(r, "10.1.1.1"))
	assert.Equal(t, http.StatusOK, hit(r, "10.1.1.2"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.1.1.1"))
}

func TestRateLimit_PerAccountAcrossAddresses(t *testing.T) {
	asAlice := func(c *gin.Context) { c.Set(IdentityKey, alice) }
	r := newRateLimitRouter(t, 0.001, 1, asAlice)
	assert.Equal(t, http.StatusOK, hit(r, "10.2.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.2.2.2"))
}

func TestLimiters_Sweep(t *testing.T) {
	l := &limiters{entries: make(map[string]*limiterEntry), r: 1, b: 1}
	now := time.Now()
	l.get("old", now.Add(-time.Hour))
	l.get("fresh", now)
	l.sweep(now.Add(-limiterIdle))
	assert.NotContains(t, l.entries, "old")
	assert.Contains(t, l.entries, "fresh")
}

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
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/mailbox"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/kasuganosora/worldsrv/resource"
	"github.com/kasuganosora/worldsrv/scheduler"
	"github.com/kasuganosora/worldsrv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const potionID int32 = 2000000

type adminSetup struct {
	r      *gin.Engine
	sm     *player.SessionManager
	fields *field.Manager
	shops  *miniroom.Manager
	mail   *mailbox.Accessor
	db     *gorm.DB
}

func newAdminRouter(t *testing.T, allowed []string) *adminSetup {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	serials := cache.NewSequence(c, "item_sn")
	mail := mailbox.NewAccessor(mailbox.NewStore(db, serials), zap.NewNop())
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)
	sm := player.NewSessionManager(zap.NewNop())
	fields := field.NewManager(zap.NewNop())
	res := resource.NewLoader("")
	res.Items[potionID] = &item.Info{ItemID: potionID, Name: "Red Potion", SlotMax: 100}
	shops := miniroom.NewManager(miniroom.Deps{
		Cache:     c,
		Mailbox:   mail,
		Items:     res,
		Serials:   serials,
		Scheduler: sched,
		Fields:    fields,
		Sessions:  sm,
	}, miniroom.Options{SlotMax: 16, Duration: time.Hour}, zap.NewNop())
	h := rest.NewAdminHandler(sm, fields, shops, sched, zap.NewNop())

	r := gin.New()
	r.GET("/health", rest.Health(db))
	admin := r.Group("/admin", mw.IPWhitelist(allowed, zap.NewNop()))
	admin.GET("/metrics", h.Metrics)
	admin.GET("/shops", h.ListShops)
	admin.POST("/shops/:employer/close", h.CloseShop)
	admin.POST("/kick/:id", h.KickPlayer)
	return &adminSetup{r: r, sm: sm, fields: fields, shops: shops, mail: mail, db: db}
}

func (a *adminSetup) openShop(t *testing.T, id int32, name string) (*player.PlayerSession, *miniroom.EntrustedShop) {
	t.Helper()
	owner := player.NewDetachedSession(id, name, item.NewInventoryManager(24, 0, nil))
	a.sm.Register(owner)
	f := a.fields.GetOrCreate(910000000)
	f.AddPlayer(owner)
	_, ok := owner.Inventory().AddItem(&item.Item{ItemID: potionID, Quantity: 5})
	require.True(t, ok)

	shop, err := a.shops.Create(context.Background(), owner, f, miniroom.CreateRequest{Title: name + "'s stall"})
	require.NoError(t, err)
	require.NoError(t, shop.PutItem(context.Background(), owner, int8(item.Consume), 1, 5, 1, 100))
	require.NoError(t, shop.Open(owner))
	return owner, shop
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:5000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	a := newAdminRouter(t, nil)
	w := do(a.r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	a := newAdminRouter(t, nil)
	sqlDB, err := a.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := do(a.r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestAdmin_Whitelist(t *testing.T) {
	a := newAdminRouter(t, []string{"10.0.0.0/8"})
	w := do(a.r, http.MethodGet, "/admin/metrics")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_Metrics(t *testing.T) {
	a := newAdminRouter(t, []string{"127.0.0.1"})
	a.openShop(t, 1, "alice")

	w := do(a.r, http.MethodGet, "/admin/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["online_players"])
	assert.Equal(t, float64(1), resp["active_fields"])
	assert.Equal(t, float64(1), resp["entrusted_shops"])
	assert.Equal(t, float64(1), resp["pending_delays"], "expiry timer")
}

func TestAdmin_ListShops(t *testing.T) {
	a := newAdminRouter(t, nil)
	a.openShop(t, 2, "bob")
	a.openShop(t, 1, "alice")

	w := do(a.r, http.MethodGet, "/admin/shops")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
		Shops []struct {
			EmployerID   int32  `json:"employer_id"`
			EmployerName string `json:"employer_name"`
			Title        string `json:"title"`
			Open         bool   `json:"open"`
			Items        int    `json:"items"`
		} `json:"shops"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, int32(1), resp.Shops[0].EmployerID)
	assert.Equal(t, "alice", resp.Shops[0].EmployerName)
	assert.Equal(t, "alice's stall", resp.Shops[0].Title)
	assert.True(t, resp.Shops[0].Open)
	assert.Equal(t, 1, resp.Shops[0].Items)
	assert.Equal(t, int32(2), resp.Shops[1].EmployerID)
}

func TestAdmin_CloseShop(t *testing.T) {
	a := newAdminRouter(t, nil)
	owner, shop := a.openShop(t, 1, "alice")

	w := do(a.r, http.MethodPost, "/admin/shops/1/close")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, shop.IsClosed())
	assert.Nil(t, a.shops.ByEmployer(1))
	assert.Equal(t, int32(5), owner.Inventory().(*item.InventoryManager).Count(potionID))

	w = do(a.r, http.MethodPost, "/admin/shops/1/close")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(a.r, http.MethodPost, "/admin/shops/abc/close")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_KickPlayer(t *testing.T) {
	a := newAdminRouter(t, nil)
	s := player.NewDetachedSession(7, "carol", item.NewInventoryManager(24, 0, nil))
	a.sm.Register(s)

	w := do(a.r, http.MethodPost, "/admin/kick/7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.IsClosed())

	w = do(a.r, http.MethodPost, "/admin/kick/8")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

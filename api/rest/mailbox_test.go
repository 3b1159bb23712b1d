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
	"github.com/kasuganosora/worldsrv/config"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/mailbox"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/kasuganosora/worldsrv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMailboxSetup(t *testing.T) (*gin.Engine, *mailbox.Accessor, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	mail := mailbox.NewAccessor(mailbox.NewStore(db, cache.NewSequence(c, "item_sn")), zap.NewNop())

	r := gin.New()
	api := r.Group("/api", mw.Auth(sec, c))
	api.GET("/mailbox", rest.NewMailboxHandler(mail).List)

	token, err := mw.GenerateToken(mw.Identity{AccountID: 1, CharacterID: 10, CharacterName: "Merchant"}, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), mw.SessionKey(token), "1", time.Hour))
	return r, mail, token
}

func getMailbox(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/mailbox", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type mailboxResp struct {
	Items []struct {
		ItemID    int32  `json:"item_id"`
		Quantity  int32  `json:"quantity"`
		Bundles   int32  `json:"bundles"`
		Sold      bool   `json:"sold"`
		Mesos     int32  `json:"mesos"`
		BuyerName string `json:"buyer_name"`
	} `json:"items"`
	MesosOwed   int64 `json:"mesos_owed"`
	CanOpenShop bool  `json:"can_open_shop"`
}

func TestMailbox_Empty(t *testing.T) {
	r, _, token := newMailboxSetup(t)
	w := getMailbox(r, token)
	require.Equal(t, http.StatusOK, w.Code)

	var resp mailboxResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.MesosOwed)
	assert.True(t, resp.CanOpenShop)
}

func TestMailbox_ListsCallerRows(t *testing.T) {
	r, mail, token := newMailboxSetup(t)
	ctx := context.Background()
	require.True(t, mail.SaveUnsold(ctx, &mailbox.ShopItem{
		CharacterID: 10,
		Item:        &item.Item{ItemID: potionID, Quantity: 3},
		Price:       50,
		Bundles:     2,
	}))
	require.True(t, mail.SaveSold(ctx, &mailbox.ShopItem{CharacterID: 10, Sold: true, Mesos: 700, BuyerName: "bob"}))
	require.True(t, mail.SaveSold(ctx, &mailbox.ShopItem{CharacterID: 11, Sold: true, Mesos: 9999}))

	w := getMailbox(r, token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp mailboxResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, int64(700), resp.MesosOwed)
	assert.False(t, resp.CanOpenShop)

	var unsold, sold int
	for _, it := range resp.Items {
		if it.Sold {
			sold++
			assert.Equal(t, "bob", it.BuyerName)
		} else {
			unsold++
			assert.Equal(t, potionID, it.ItemID)
			assert.Equal(t, int32(2), it.Bundles)
		}
	}
	assert.Equal(t, 1, unsold)
	assert.Equal(t, 1, sold)
}

func TestMailbox_RequiresAuth(t *testing.T) {
	r, _, _ := newMailboxSetup(t)
	assert.Equal(t, http.StatusUnauthorized, getMailbox(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, getMailbox(r, "bogus").Code)
}

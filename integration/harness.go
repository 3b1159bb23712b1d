package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apirest "github.com/kasuganosora/worldsrv/api/rest"
	apiws "github.com/kasuganosora/worldsrv/api/ws"
	"github.com/kasuganosora/worldsrv/audit"
	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/central"
	"github.com/kasuganosora/worldsrv/config"
	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/field"
	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/miniroom"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/party"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/mailbox"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/kasuganosora/worldsrv/resource"
	"github.com/kasuganosora/worldsrv/scheduler"
	"github.com/kasuganosora/worldsrv/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const potionID int32 = 2000000

// TestServer is a single process running both the central and channel roles
// behind a real HTTP listener.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	SM     *player.SessionManager
	Fields *field.Manager
	Shops  *miniroom.Manager
	Users  *central.UserStorage
	Res    *resource.Loader
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
	Sec    config.SecurityConfig
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	centralCfg := config.CentralConfig{TopicPrefix: "it", RequestTimeout: time.Second}
	const channelID = 1

	res := resource.NewLoader("")
	res.Items[potionID] = &item.Info{ItemID: potionID, Name: "Red Potion", SlotMax: 100, Price: 50}
	res.Expeditions[1204] = &resource.QuestExpedition{QuestID: 1204, Name: "Zakum", LevelMin: 50, LevelMax: 200, UserCount: 30}

	auditSvc := audit.New(db, logger)
	sched := scheduler.New(logger)
	t.Cleanup(func() {
		sched.Stop()
		auditSvc.Stop(context.Background())
	})

	// ---- Central ----
	users := central.NewUserStorage(c, centralCfg.TopicPrefix)
	svc := expedition.NewService(
		expedition.NewRegistry(),
		party.NewManager(cache.NewSequence(c, "party_id"), logger),
		cache.NewSequence(c, "expedition_id"),
		res,
		users,
		central.NewRelay(pubsub, centralCfg.TopicPrefix, logger),
		logger,
	).WithAudit(auditSvc)
	require.NoError(t, central.NewServer(pubsub, centralCfg.TopicPrefix, svc, users, logger).Start(ctx))

	// ---- Channel ----
	serials := cache.NewSequence(c, "item_sn")
	mail := mailbox.NewAccessor(mailbox.NewStore(db, serials), logger)
	sm := player.NewSessionManager(logger)
	fields := field.NewManager(logger)
	shops := miniroom.NewManager(miniroom.Deps{
		Cache:     c,
		Mailbox:   mail,
		Items:     res,
		Serials:   serials,
		Scheduler: sched,
		Fields:    fields,
		Sessions:  sm,
		Audit:     auditSvc,
	}, miniroom.Options{SlotMax: 16, Duration: time.Hour, Tax: miniroom.DefaultTaxTable}, logger)
	client := central.NewClient(pubsub, centralCfg, channelID, sm, logger)
	require.NoError(t, client.Start(ctx))

	wsRouter := apiws.NewRouter(logger)
	apiws.NewGameHandlers(fields, client, logger).RegisterHandlers(wsRouter)
	apiws.NewExpeditionHandlers(client, logger).RegisterHandlers(wsRouter)
	apiws.NewMiniRoomHandlers(shops).RegisterHandlers(wsRouter)
	apiws.NewStoreBankHandlers(mail, auditSvc, logger).RegisterHandlers(wsRouter)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.GET("/health", apirest.Health(db))

	wsH := apiws.NewHandler(c, sec, config.GameConfig{InventorySlots: 24}, channelID,
		sm, fields, res, client, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	api := r.Group("/api", mw.Auth(sec, c))
	api.GET("/mailbox", apirest.NewMailboxHandler(mail).List)

	adminH := apirest.NewAdminHandler(sm, fields, shops, sched, logger)
	adminG := r.Group("/admin")
	adminG.GET("/shops", adminH.ListShops)
	adminG.POST("/shops/:employer/close", adminH.CloseShop)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &TestServer{
		DB:     db,
		Cache:  c,
		SM:     sm,
		Fields: fields,
		Shops:  shops,
		Users:  users,
		Res:    res,
		Server: server,
		URL:    server.URL,
		WSURL:  "ws" + server.URL[len("http"):] + "/ws",
		Sec:    sec,
	}
}

// --- HTTP helpers ---

// Do sends a request with an optional Bearer token.
func (ts *TestServer) Do(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login mints a token the way the login service does and registers its
// session in the cache.
func (ts *TestServer) Login(t *testing.T, id mw.Identity) string {
	t.Helper()
	token, err := mw.GenerateToken(id, ts.Sec.JWTSecret, ts.Sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, ts.Cache.Set(context.Background(), mw.SessionKey(token),
		strconv.FormatInt(id.AccountID, 10), ts.Sec.JWTTTLH))
	return token
}

// WaitOnline blocks until the central directory knows charID.
func (ts *TestServer) WaitOnline(t *testing.T, charID int32) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := ts.Users.ByID(context.Background(), charID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection speaking binary frames.
// A background readLoop feeds frames to Recv.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS logs id in, dials /ws and waits until the session is registered.
func (ts *TestServer) ConnectWS(t *testing.T, id mw.Identity) (*WSClient, *player.PlayerSession) {
	t.Helper()
	token := ts.Login(t, id)
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	t.Cleanup(wc.Close)

	var sess *player.PlayerSession
	require.Eventually(t, func() bool {
		sess = ts.SM.Get(id.CharacterID)
		return sess != nil
	}, 2*time.Second, 10*time.Millisecond)
	return wc, sess
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes one frame: header then whatever build encodes.
func (wc *WSClient) Send(h packet.InHeader, build func(o *packet.OutPacket)) {
	wc.t.Helper()
	o := packet.NewRawOutPacket()
	o.EncodeUShort(uint16(h))
	if build != nil {
		build(o)
	}
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.BinaryMessage, o.Bytes()))
}

// Recv returns the body of the next frame with header h, skipping others.
func (wc *WSClient) Recv(h packet.OutHeader, timeout time.Duration) *packet.InPacket {
	wc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case res := <-wc.readCh:
			require.NoError(wc.t, res.err, "WS recv failed while waiting for 0x%04X", uint16(h))
			in := packet.NewInPacket(res.data)
			if packet.OutHeader(in.DecodeUShort()) == h {
				return in
			}
		case <-deadline:
			wc.t.Fatalf("timed out waiting for 0x%04X", uint16(h))
			return nil
		}
	}
}

// RecvMiniRoom returns the body of the next mini-room frame carrying p.
func (wc *WSClient) RecvMiniRoom(p miniroom.Protocol, timeout time.Duration) *packet.InPacket {
	wc.t.Helper()
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		in := wc.Recv(packet.OutMiniRoom, time.Until(end))
		if miniroom.Protocol(in.DecodeByte()) == p {
			return in
		}
	}
	wc.t.Fatalf("timed out waiting for mini-room protocol %d", p)
	return nil
}

// RecvExpedition returns the body of the next expedition notification of type rt.
func (wc *WSClient) RecvExpedition(rt expedition.ResultType, timeout time.Duration) *packet.InPacket {
	wc.t.Helper()
	end := time.Now().Add(timeout)
	for time.Now().Before(end) {
		in := wc.Recv(packet.OutExpeditionNoti, time.Until(end))
		if expedition.ResultType(in.DecodeByte()) == rt {
			return in
		}
	}
	wc.t.Fatalf("timed out waiting for expedition result %d", rt)
	return nil
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

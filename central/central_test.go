package central

import (
	"context"
	"testing"
	"time"

	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/party"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/kasuganosora/worldsrv/resource"
	"github.com/kasuganosora/worldsrv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const prefix = "test"

type quests map[int32]*resource.QuestExpedition

func (q quests) QuestExpedition(id int32) (*resource.QuestExpedition, bool) {
	v, ok := q[id]
	return v, ok
}

type world struct {
	ctx      context.Context
	users    *UserStorage
	svc      *expedition.Service
	client   *Client
	sessions *player.SessionManager
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, ps := testutil.SetupTestCache(t)
	users := NewUserStorage(c, prefix)
	svc := expedition.NewService(
		expedition.NewRegistry(),
		party.NewManager(cache.NewSequence(c, "party_id"), zap.NewNop()),
		cache.NewSequence(c, "expedition_id"),
		quests{1204: {QuestID: 1204, Name: "Zakum", LevelMin: 50, LevelMax: 200, UserCount: 30}},
		users,
		NewRelay(ps, prefix, zap.NewNop()),
		zap.NewNop(),
	)
	require.NoError(t, NewServer(ps, prefix, svc, users, zap.NewNop()).Start(ctx))

	sessions := player.NewSessionManager(zap.NewNop())
	client := NewClient(ps, config.CentralConfig{TopicPrefix: prefix}, 1, sessions, zap.NewNop())
	require.NoError(t, client.Start(ctx))

	return &world{ctx: ctx, users: users, svc: svc, client: client, sessions: sessions}
}

func (w *world) login(t *testing.T, id int32, name string, level int16) *player.PlayerSession {
	t.Helper()
	s := player.NewDetachedSession(id, name, nil)
	s.SetProfile(level, 100)
	w.sessions.Register(s)
	require.NoError(t, w.client.Online(w.ctx, s))
	require.Eventually(t, func() bool {
		_, ok := w.users.ByName(w.ctx, name)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return s
}

// nextResult waits for the next expedition notification sent to s.
func nextResult(t *testing.T, s *player.PlayerSession) expedition.ResultType {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-s.SendChan:
			in := packet.NewInPacket(data)
			if packet.OutHeader(in.DecodeUShort()) != packet.OutExpeditionNoti {
				continue
			}
			return expedition.ResultType(in.DecodeByte())
		case <-deadline:
			t.Fatalf("no expedition notification for %d", s.CharID)
			return 0
		}
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := &Envelope{
		Kind: KindExpeditionRequest,
		User: party.RemoteUser{CharID: 7, Name: "Alice", Level: 70, ChannelID: 2},
		Body: expedition.MarshalRequest(expedition.InviteRequest{Name: "Bob"}),
	}
	payload, err := env.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, env.Kind, got.Kind)
	assert.Equal(t, env.User, got.User)
	req, err := expedition.UnmarshalRequest(got.Body)
	require.NoError(t, err)
	assert.Equal(t, expedition.InviteRequest{Name: "Bob"}, req)
}

func TestEnvelope_Malformed(t *testing.T) {
	_, err := Unmarshal("not cbor at all")
	assert.ErrorIs(t, err, ErrMalformed)

	payload, err := (&Envelope{}).Marshal()
	require.NoError(t, err)
	_, err = Unmarshal(payload)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "world:central:expedition", CentralTopic("world"))
	assert.Equal(t, "world:channel:3", ChannelTopic("world", 3))
}

func TestUserStorage(t *testing.T) {
	c, _ := testutil.SetupTestCache(t)
	s := NewUserStorage(c, prefix)
	ctx := context.Background()
	u := party.RemoteUser{CharID: 5, Name: "Alice", Level: 70, ChannelID: 1}

	require.NoError(t, s.Put(ctx, u))
	got, ok := s.ByName(ctx, "ALICE")
	require.True(t, ok)
	assert.Equal(t, u, got)
	n, err := s.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Remove(ctx, u))
	_, ok = s.ByName(ctx, "alice")
	assert.False(t, ok)
	_, ok = s.ByID(ctx, 5)
	assert.False(t, ok)
}

func TestRelay_SkipsOfflineMembers(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	ctx := context.Background()
	msgs, unsub, err := ps.Subscribe(ctx, ChannelTopic(prefix, OfflineChannel), ChannelTopic(prefix, 2))
	require.NoError(t, err)
	defer unsub()

	r := NewRelay(ps, prefix, zap.NewNop())
	r.Notify(ctx, party.RemoteUser{CharID: 1, ChannelID: OfflineChannel}, expedition.LoadFailPacket())
	r.UpdateInfo(ctx, party.RemoteUser{CharID: 2, ChannelID: 2}, expedition.Info{ExpeditionID: 9})

	select {
	case msg := <-msgs:
		assert.Equal(t, ChannelTopic(prefix, 2), msg.Channel)
		env, err := Unmarshal(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, KindInfo, env.Kind)
		assert.Equal(t, int32(9), env.Info.ExpeditionID)
	case <-time.After(time.Second):
		t.Fatal("info was not relayed")
	}
	select {
	case msg := <-msgs:
		t.Fatalf("unexpected message on %s", msg.Channel)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestClientServer_CreateAndInvite(t *testing.T) {
	w := newWorld(t)
	alice := w.login(t, 1, "Alice", 70)
	bob := w.login(t, 2, "Bob", 80)

	require.NoError(t, w.client.SubmitExpeditionRequest(w.ctx, alice, expedition.CreateNewRequest{QuestID: 1204}))
	assert.Equal(t, expedition.ResultCreateNewDone, nextResult(t, alice))
	require.Eventually(t, func() bool {
		return alice.Expedition().Master
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, w.client.SubmitExpeditionRequest(w.ctx, alice, expedition.InviteRequest{Name: "bob"}))
	assert.Equal(t, expedition.ResultInvite, nextResult(t, bob))

	require.NoError(t, w.client.SubmitExpeditionRequest(w.ctx, bob,
		expedition.ResponseRequest{Name: "Alice", Code: expedition.ResponseAccept}))
	assert.Equal(t, expedition.ResultYouJoined, nextResult(t, bob))
	assert.Equal(t, expedition.ResultJoinDone, nextResult(t, alice))
	require.Eventually(t, func() bool {
		return bob.Expedition().ID == alice.Expedition().ID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClientServer_OfflineLeavesDirectory(t *testing.T) {
	w := newWorld(t)
	alice := w.login(t, 1, "Alice", 70)

	require.NoError(t, w.client.Offline(w.ctx, alice))
	require.Eventually(t, func() bool {
		_, ok := w.users.ByName(w.ctx, "Alice")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

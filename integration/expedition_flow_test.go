package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/packet"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendExpedition(ws *WSClient, req expedition.Request) {
	ws.Send(packet.InExpeditionRequest, func(o *packet.OutPacket) {
		expedition.EncodeRequest(o, req)
	})
}

func TestHealth(t *testing.T) {
	ts := NewTestServer(t)
	resp := ts.Do(t, http.MethodGet, "/health", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExpeditionFlow_CreateInviteAccept(t *testing.T) {
	ts := NewTestServer(t)
	aliceWS, alice := ts.ConnectWS(t, mw.Identity{AccountID: 1, CharacterID: 10, CharacterName: "Alice", Level: 60})
	bobWS, bob := ts.ConnectWS(t, mw.Identity{AccountID: 2, CharacterID: 20, CharacterName: "Bob", Level: 80})
	ts.WaitOnline(t, 10)
	ts.WaitOnline(t, 20)

	sendExpedition(aliceWS, expedition.CreateNewRequest{QuestID: 1204})
	in := aliceWS.RecvExpedition(expedition.ResultCreateNewDone, wait)
	assert.Equal(t, int32(1204), in.DecodeInt())
	require.Eventually(t, func() bool { return alice.Expedition().Master }, wait, 10*time.Millisecond)

	sendExpedition(aliceWS, expedition.InviteRequest{Name: "bob"})
	bobWS.RecvExpedition(expedition.ResultInvite, wait)

	sendExpedition(bobWS, expedition.ResponseRequest{Name: "Alice", Code: expedition.ResponseAccept})
	bobWS.RecvExpedition(expedition.ResultYouJoined, wait)
	in = aliceWS.RecvExpedition(expedition.ResultJoinDone, wait)
	assert.Equal(t, "Bob", in.DecodeString())

	require.Eventually(t, func() bool {
		return bob.Expedition().ID != 0 && bob.Expedition().ID == alice.Expedition().ID
	}, wait, 10*time.Millisecond)
	assert.False(t, bob.Expedition().Master)
}

func TestExpeditionFlow_InviteRejectedForLevel(t *testing.T) {
	ts := NewTestServer(t)
	aliceWS, _ := ts.ConnectWS(t, mw.Identity{AccountID: 1, CharacterID: 10, CharacterName: "Alice", Level: 60})
	_, _ = ts.ConnectWS(t, mw.Identity{AccountID: 3, CharacterID: 30, CharacterName: "Rookie", Level: 10})
	ts.WaitOnline(t, 10)
	ts.WaitOnline(t, 30)

	sendExpedition(aliceWS, expedition.CreateNewRequest{QuestID: 1204})
	aliceWS.RecvExpedition(expedition.ResultCreateNewDone, wait)

	sendExpedition(aliceWS, expedition.InviteRequest{Name: "Rookie"})
	in := aliceWS.RecvExpedition(expedition.ResultResponseInvite, wait)
	assert.Equal(t, expedition.InviteLevelMismatch, in.DecodeInt())
	assert.Equal(t, "Rookie", in.DecodeString())
}

func TestExpeditionFlow_DisconnectLeavesDirectory(t *testing.T) {
	ts := NewTestServer(t)
	ws, _ := ts.ConnectWS(t, mw.Identity{AccountID: 1, CharacterID: 10, CharacterName: "Alice", Level: 60})
	ts.WaitOnline(t, 10)

	ws.Close()
	require.Eventually(t, func() bool {
		_, ok := ts.Users.ByID(t.Context(), 10)
		return !ok
	}, wait, 10*time.Millisecond)
}

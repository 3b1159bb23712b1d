package field

import (
	"testing"

	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type room struct{ owner int32 }

func (r *room) OwnerID() int32 { return r.owner }

func TestField_PlayersAndBroadcast(t *testing.T) {
	m := NewManager(zap.NewNop())
	f := m.GetOrCreate(100000000)
	assert.Same(t, f, m.GetOrCreate(100000000))

	a := player.NewDetachedSession(1, "alice", nil)
	b := player.NewDetachedSession(2, "bob", nil)
	f.AddPlayer(a)
	f.AddPlayer(b)
	assert.Equal(t, int32(100000000), a.FieldID())
	assert.Equal(t, 2, f.PlayerCount())

	f.BroadcastExcept(packet.NewOutPacket(packet.OutPong), 1)
	assert.Len(t, a.SendChan, 0)
	assert.Len(t, b.SendChan, 1)

	f.Broadcast(packet.NewOutPacket(packet.OutPong))
	assert.Len(t, a.SendChan, 1)
	assert.Len(t, b.SendChan, 2)

	stale := player.NewDetachedSession(1, "alice", nil)
	f.RemovePlayer(stale)
	assert.Same(t, a, f.Player(1))
	f.RemovePlayer(a)
	assert.Nil(t, f.Player(1))
}

func TestField_MiniRoomPool(t *testing.T) {
	f := NewManager(zap.NewNop()).GetOrCreate(1)
	r1, r2 := &room{owner: 10}, &room{owner: 20}
	id1 := f.AddMiniRoom(r1)
	id2 := f.AddMiniRoom(r2)
	require.NotEqual(t, id1, id2)

	assert.Same(t, r1, f.MiniRoom(id1))
	assert.Same(t, r2, f.MiniRoomByOwner(20))
	assert.Nil(t, f.MiniRoomByOwner(30))
	assert.Equal(t, []MiniRoom{r1, r2}, f.MiniRooms())

	assert.True(t, f.RemoveMiniRoom(r1))
	assert.False(t, f.RemoveMiniRoom(r1))
	assert.Equal(t, 1, f.MiniRoomCount())
}

func TestManager_ReleaseKeepsOccupiedFields(t *testing.T) {
	m := NewManager(zap.NewNop())
	f := m.GetOrCreate(7)
	r := &room{owner: 1}
	f.AddMiniRoom(r)

	assert.False(t, m.Release(7))
	f.RemoveMiniRoom(r)
	assert.True(t, m.Release(7))
	assert.Nil(t, m.Get(7))
	assert.Equal(t, 0, m.Count())
}

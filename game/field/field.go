package field

import (
	"sort"
	"sync"

	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	"go.uber.org/zap"
)

// MiniRoom is a dialog hosted by a field, such as an entrusted shop.
type MiniRoom interface {
	OwnerID() int32
}

// Field is one map instance on this channel: the sessions standing in it
// and the mini-rooms placed in it.
type Field struct {
	ID int32

	mu         sync.RWMutex
	players    map[int32]*player.PlayerSession
	rooms      map[int32]MiniRoom
	nextRoomID int32
	logger     *zap.Logger
}

func newField(id int32, logger *zap.Logger) *Field {
	return &Field{
		ID:      id,
		players: make(map[int32]*player.PlayerSession),
		rooms:   make(map[int32]MiniRoom),
		logger:  logger,
	}
}

// AddPlayer places s in the field.
func (f *Field) AddPlayer(s *player.PlayerSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[s.CharID] = s
	s.SetField(f.ID)
}

// RemovePlayer removes s if it is still the session registered for its character.
func (f *Field) RemovePlayer(s *player.PlayerSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.players[s.CharID]; ok && cur == s {
		delete(f.players, s.CharID)
	}
}

// Player returns the session of charID in this field, or nil.
func (f *Field) Player(charID int32) *player.PlayerSession {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.players[charID]
}

// PlayerCount returns the number of sessions in the field.
func (f *Field) PlayerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.players)
}

// Broadcast sends out to every session in the field.
func (f *Field) Broadcast(out *packet.OutPacket) {
	f.BroadcastExcept(out, 0)
}

// BroadcastExcept sends out to every session except excludeCharID.
func (f *Field) BroadcastExcept(out *packet.OutPacket, excludeCharID int32) {
	data := out.Bytes()
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.players {
		if s.CharID != excludeCharID {
			s.SendRaw(data)
		}
	}
}

// AddMiniRoom places r in the field's mini-room pool and returns its id.
func (f *Field) AddMiniRoom(r MiniRoom) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRoomID++
	f.rooms[f.nextRoomID] = r
	return f.nextRoomID
}

// RemoveMiniRoom drops r from the pool. It reports false when r was not there.
func (f *Field) RemoveMiniRoom(r MiniRoom) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, cur := range f.rooms {
		if cur == r {
			delete(f.rooms, id)
			return true
		}
	}
	return false
}

// MiniRoom returns the room with the given id, or nil.
func (f *Field) MiniRoom(id int32) MiniRoom {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rooms[id]
}

// MiniRoomByOwner returns the room owned by charID, or nil.
func (f *Field) MiniRoomByOwner(charID int32) MiniRoom {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.rooms {
		if r.OwnerID() == charID {
			return r
		}
	}
	return nil
}

// MiniRoomCount returns the number of rooms in the pool.
func (f *Field) MiniRoomCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

// MiniRooms returns the rooms in the pool in the order they were placed.
func (f *Field) MiniRooms() []MiniRoom {
	f.mu.RLock()
	ids := make([]int32, 0, len(f.rooms))
	for id := range f.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]MiniRoom, len(ids))
	for i, id := range ids {
		out[i] = f.rooms[id]
	}
	f.mu.RUnlock()
	return out
}

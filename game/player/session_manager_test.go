package player

import (
	"testing"
	"time"

	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestSession(charID int32, name string) *PlayerSession {
	return NewDetachedSession(charID, name, nil)
}

func TestSessionManager_RegisterGet(t *testing.T) {
	sm := NewSessionManager(zap.NewNop())
	s := newTestSession(1, "Alice")
	sm.Register(s)

	assert.Same(t, s, sm.Get(1))
	assert.Nil(t, sm.Get(2))
	assert.Equal(t, 1, sm.Count())
}

func TestSessionManager_DuplicateDisplaces(t *testing.T) {
	sm := NewSessionManager(zap.NewNop())
	old := newTestSession(1, "Alice")
	sm.Register(old)
	fresh := newTestSession(1, "Alice")
	sm.Register(fresh)

	assert.True(t, old.IsClosed())
	assert.False(t, fresh.IsClosed())
	assert.Same(t, fresh, sm.Get(1))
}

func TestSessionManager_UnregisterByIdentity(t *testing.T) {
	sm := NewSessionManager(zap.NewNop())
	old := newTestSession(1, "Alice")
	sm.Register(old)
	fresh := newTestSession(1, "Alice")
	sm.Register(fresh)

	assert.False(t, sm.Unregister(old), "displaced session must not remove its successor")
	assert.Same(t, fresh, sm.Get(1))
	assert.True(t, sm.Unregister(fresh))
	assert.Nil(t, sm.Get(1))
}

func TestSessionManager_CloseAllSessions(t *testing.T) {
	sm := NewSessionManager(zap.NewNop())
	a := newTestSession(1, "Alice")
	sm.Register(a)
	go func() {
		<-a.Done
		sm.Unregister(a)
	}()
	sm.CloseAllSessions(2 * time.Second)
	assert.Equal(t, 0, sm.Count())
}

func TestSession_WriteAfterClose(t *testing.T) {
	s := newTestSession(1, "Alice")
	s.Write(packet.NewOutPacket(packet.OutPong))
	assert.Len(t, s.SendChan, 1)
	s.Close()
	s.Close()
	s.Write(packet.NewOutPacket(packet.OutPong))
	assert.Len(t, s.SendChan, 1)
}

type fakeDialog struct{ left int }

func (d *fakeDialog) Leave(*PlayerSession) { d.left++ }

func TestSession_ClearDialogOnlyIfCurrent(t *testing.T) {
	s := newTestSession(1, "Alice")
	d1, d2 := &fakeDialog{}, &fakeDialog{}
	s.SetDialog(d1)
	s.ClearDialog(d2)
	assert.Equal(t, Dialog(d1), s.Dialog())
	s.ClearDialog(d1)
	assert.Nil(t, s.Dialog())
}

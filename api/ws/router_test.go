package ws

import (
	"context"
	"testing"

	"github.com/kasuganosora/worldsrv/game/item"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/player"
	mw "github.com/kasuganosora/worldsrv/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSession(charID int32, name string) *player.PlayerSession {
	return player.NewDetachedSession(charID, name, item.NewInventoryManager(24, 0, nil))
}

// frame builds a client frame: header then whatever body writes.
func frame(h packet.InHeader, body func(o *packet.OutPacket)) []byte {
	o := packet.NewRawOutPacket()
	o.EncodeUShort(uint16(h))
	if body != nil {
		body(o)
	}
	return o.Bytes()
}

// drain returns the headers of every frame queued for s.
func drain(s *player.PlayerSession) []packet.OutHeader {
	var out []packet.OutHeader
	for {
		select {
		case data := <-s.SendChan:
			out = append(out, packet.OutHeader(packet.NewInPacket(data).DecodeUShort()))
		default:
			return out
		}
	}
}

func TestRouter_DispatchByHeader(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var got int32
	var trace string
	r.On(packet.InExpeditionRequest, func(ctx context.Context, _ *player.PlayerSession, in *packet.InPacket) error {
		got = in.DecodeInt()
		trace = mw.TraceIDFromContext(ctx)
		return in.Err()
	})

	s := newSession(1, "a")
	r.Dispatch(s, frame(packet.InExpeditionRequest, func(o *packet.OutPacket) { o.EncodeInt(42) }))
	assert.Equal(t, int32(42), got)
	assert.NotEmpty(t, trace)
	assert.Equal(t, s.TraceID, trace)
}

func TestRouter_UnknownHeaderIgnored(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := newSession(1, "a")
	r.Dispatch(s, frame(0x7FFF, nil))
	assert.False(t, s.IsClosed())
}

func TestRouter_ShortFrameDisposes(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := newSession(1, "a")
	r.Dispatch(s, []byte{0x01})
	assert.True(t, s.IsClosed())
}

func TestRouter_HandlerPanicDisposes(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.On(packet.InPing, func(context.Context, *player.PlayerSession, *packet.InPacket) error {
		panic("boom")
	})
	s := newSession(1, "a")
	require.NotPanics(t, func() { r.Dispatch(s, frame(packet.InPing, nil)) })
	assert.True(t, s.IsClosed())
}

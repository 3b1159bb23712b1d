package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutPacket_HeaderAndPrimitives(t *testing.T) {
	out := NewOutPacket(OutExpeditionNoti)
	out.EncodeByte(57)
	out.EncodeShort(-2)
	out.EncodeInt(123456)
	out.EncodeLong(1 << 40)
	out.EncodeBool(true)
	out.EncodeString("Alice")

	in := NewInPacket(out.Bytes())
	assert.Equal(t, uint16(OutExpeditionNoti), in.DecodeUShort())
	assert.Equal(t, int8(57), in.DecodeByte())
	assert.Equal(t, int16(-2), in.DecodeShort())
	assert.Equal(t, int32(123456), in.DecodeInt())
	assert.Equal(t, int64(1<<40), in.DecodeLong())
	assert.True(t, in.DecodeBool())
	assert.Equal(t, "Alice", in.DecodeString())
	assert.Zero(t, in.Remaining())
	require.NoError(t, in.Err())
}

func TestInPacket_LittleEndian(t *testing.T) {
	in := NewInPacket([]byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12})
	assert.Equal(t, int16(0x1234), in.DecodeShort())
	assert.Equal(t, int32(0x12345678), in.DecodeInt())
}

func TestInPacket_UnderflowIsSticky(t *testing.T) {
	in := NewInPacket([]byte{0x01, 0x02})
	assert.Equal(t, int32(0), in.DecodeInt())
	assert.ErrorIs(t, in.Err(), ErrPacketUnderflow)

	// Later reads stay zero even when bytes would be available.
	assert.Equal(t, int8(0), in.DecodeByte())
	assert.ErrorIs(t, in.Err(), ErrPacketUnderflow)
}

func TestInPacket_StringLengthPastEnd(t *testing.T) {
	out := NewRawOutPacket()
	out.EncodeShort(10)
	out.EncodeBytes([]byte("abc"))

	in := NewInPacket(out.Bytes())
	assert.Equal(t, "", in.DecodeString())
	assert.ErrorIs(t, in.Err(), ErrPacketUnderflow)
}

func TestInPacket_NegativeStringLength(t *testing.T) {
	out := NewRawOutPacket()
	out.EncodeShort(-1)

	in := NewInPacket(out.Bytes())
	assert.Equal(t, "", in.DecodeString())
	assert.Error(t, in.Err())
}

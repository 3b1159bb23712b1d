package packet

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrPacketUnderflow is returned when a decode reads past the end of the packet.
var ErrPacketUnderflow = errors.New("packet: read past end of buffer")

// InPacket is a little-endian reader over a received client frame.
// Decode errors are sticky: once a read fails, every later read returns the
// zero value and Err reports the first failure.
type InPacket struct {
	buf []byte
	pos int
	err error
}

// NewInPacket wraps raw bytes for decoding.
func NewInPacket(data []byte) *InPacket {
	return &InPacket{buf: data}
}

func (p *InPacket) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || p.pos+n > len(p.buf) {
		p.err = ErrPacketUnderflow
		return nil
	}
	b := p.buf[p.pos : p.pos+n]
	p.pos += n
	return b
}

// DecodeByte reads one signed byte.
func (p *InPacket) DecodeByte() int8 {
	b := p.take(1)
	if b == nil {
		return 0
	}
	return int8(b[0])
}

// DecodeBool reads one byte and reports whether it is non-zero.
func (p *InPacket) DecodeBool() bool {
	return p.DecodeByte() != 0
}

// DecodeShort reads an int16.
func (p *InPacket) DecodeShort() int16 {
	b := p.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

// DecodeUShort reads a uint16.
func (p *InPacket) DecodeUShort() uint16 {
	b := p.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// DecodeInt reads an int32.
func (p *InPacket) DecodeInt() int32 {
	b := p.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// DecodeLong reads an int64.
func (p *InPacket) DecodeLong() int64 {
	b := p.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// DecodeString reads an int16 length prefix followed by that many bytes.
func (p *InPacket) DecodeString() string {
	n := int(p.DecodeShort())
	b := p.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// Remaining returns the number of unread bytes.
func (p *InPacket) Remaining() int {
	return len(p.buf) - p.pos
}

// Err returns the first decode error, if any.
func (p *InPacket) Err() error {
	return p.err
}

// OutPacket accumulates a little-endian server frame.
type OutPacket struct {
	buf []byte
}

// NewOutPacket starts a frame with the given header.
func NewOutPacket(header OutHeader) *OutPacket {
	p := &OutPacket{buf: make([]byte, 0, 64)}
	p.EncodeUShort(uint16(header))
	return p
}

// NewRawOutPacket starts a frame with no header, used for embedded sub-structures.
func NewRawOutPacket() *OutPacket {
	return &OutPacket{buf: make([]byte, 0, 32)}
}

func (p *OutPacket) EncodeByte(v int8) {
	p.buf = append(p.buf, byte(v))
}

func (p *OutPacket) EncodeBool(v bool) {
	if v {
		p.buf = append(p.buf, 1)
		return
	}
	p.buf = append(p.buf, 0)
}

func (p *OutPacket) EncodeShort(v int16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(v))
}

func (p *OutPacket) EncodeUShort(v uint16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
}

func (p *OutPacket) EncodeInt(v int32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(v))
}

func (p *OutPacket) EncodeLong(v int64) {
	p.buf = binary.LittleEndian.AppendUint64(p.buf, uint64(v))
}

// EncodeString writes an int16 length prefix and the raw bytes.
// Strings longer than math.MaxInt16 bytes are truncated.
func (p *OutPacket) EncodeString(s string) {
	if len(s) > math.MaxInt16 {
		s = s[:math.MaxInt16]
	}
	p.EncodeShort(int16(len(s)))
	p.buf = append(p.buf, s...)
}

// EncodeBytes appends raw bytes.
func (p *OutPacket) EncodeBytes(b []byte) {
	p.buf = append(p.buf, b...)
}

// Bytes returns the encoded frame.
func (p *OutPacket) Bytes() []byte {
	return p.buf
}

// Len returns the number of encoded bytes.
func (p *OutPacket) Len() int {
	return len(p.buf)
}

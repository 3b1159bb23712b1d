package expedition

import "github.com/kasuganosora/worldsrv/game/packet"

// Info is a character's view of its own expedition membership. The zero
// value means "not in an expedition".
type Info struct {
	ExpeditionID int32 `cbor:"1,keyasint"`
	MemberIndex  int8  `cbor:"2,keyasint"`
	Master       bool  `cbor:"3,keyasint"`
}

// Encode writes id, member index and master flag.
func (i Info) Encode(out *packet.OutPacket) {
	out.EncodeInt(i.ExpeditionID)
	out.EncodeByte(i.MemberIndex)
	out.EncodeBool(i.Master)
}

// DecodeInfo reads what Encode wrote.
func DecodeInfo(in *packet.InPacket) (Info, error) {
	info := Info{
		ExpeditionID: in.DecodeInt(),
		MemberIndex:  in.DecodeByte(),
		Master:       in.DecodeBool(),
	}
	return info, in.Err()
}

package expedition

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/worldsrv/game/packet"
)

// ErrUnknownRequest is returned when a request tag is not recognised.
var ErrUnknownRequest = errors.New("expedition: unknown request type")

// RequestType is the wire tag of an expedition request.
type RequestType int8

const (
	RequestLoad            RequestType = 48
	RequestCreateNew       RequestType = 49
	RequestInvite          RequestType = 50
	RequestResponse        RequestType = 51
	RequestWithdraw        RequestType = 52
	RequestKick            RequestType = 53
	RequestChangeMaster    RequestType = 54
	RequestChangePartyBoss RequestType = 55
	RequestRelocateMember  RequestType = 56
)

func (t RequestType) String() string {
	switch t {
	case RequestLoad:
		return "load"
	case RequestCreateNew:
		return "create_new"
	case RequestInvite:
		return "invite"
	case RequestResponse:
		return "response"
	case RequestWithdraw:
		return "withdraw"
	case RequestKick:
		return "kick"
	case RequestChangeMaster:
		return "change_master"
	case RequestChangePartyBoss:
		return "change_party_boss"
	case RequestRelocateMember:
		return "relocate_member"
	}
	return fmt.Sprintf("unknown(%d)", int8(t))
}

// Response codes carried by ResponseRequest.
const (
	ResponseAccept  int32 = 8
	ResponseDecline int32 = 9
)

// Request is one expedition operation. The set of implementations is closed.
type Request interface {
	Type() RequestType
	encodeBody(out *packet.OutPacket)
}

type LoadRequest struct{ ExpeditionID int32 }

type CreateNewRequest struct{ QuestID int32 }

type InviteRequest struct{ Name string }

// ResponseRequest answers the invite issued by the character called Name.
type ResponseRequest struct {
	Name string
	Code int32
}

type WithdrawRequest struct{}

type KickRequest struct{ CharID int32 }

type ChangeMasterRequest struct{ TargetID int32 }

type ChangePartyBossRequest struct {
	TargetID   int32
	Disconnect bool
}

// RelocateMemberRequest moves CharID into the sub-group PartyID.
type RelocateMemberRequest struct {
	PartyID int32
	CharID  int32
}

func (LoadRequest) Type() RequestType            { return RequestLoad }
func (CreateNewRequest) Type() RequestType       { return RequestCreateNew }
func (InviteRequest) Type() RequestType          { return RequestInvite }
func (ResponseRequest) Type() RequestType        { return RequestResponse }
func (WithdrawRequest) Type() RequestType        { return RequestWithdraw }
func (KickRequest) Type() RequestType            { return RequestKick }
func (ChangeMasterRequest) Type() RequestType    { return RequestChangeMaster }
func (ChangePartyBossRequest) Type() RequestType { return RequestChangePartyBoss }
func (RelocateMemberRequest) Type() RequestType  { return RequestRelocateMember }

func (r LoadRequest) encodeBody(out *packet.OutPacket)      { out.EncodeInt(r.ExpeditionID) }
func (r CreateNewRequest) encodeBody(out *packet.OutPacket) { out.EncodeInt(r.QuestID) }
func (r InviteRequest) encodeBody(out *packet.OutPacket)    { out.EncodeString(r.Name) }
func (r ResponseRequest) encodeBody(out *packet.OutPacket) {
	out.EncodeString(r.Name)
	out.EncodeInt(r.Code)
}
func (WithdrawRequest) encodeBody(*packet.OutPacket)           {}
func (r KickRequest) encodeBody(out *packet.OutPacket)         { out.EncodeInt(r.CharID) }
func (r ChangeMasterRequest) encodeBody(out *packet.OutPacket) { out.EncodeInt(r.TargetID) }
func (r ChangePartyBossRequest) encodeBody(out *packet.OutPacket) {
	out.EncodeInt(r.TargetID)
	out.EncodeBool(r.Disconnect)
}
func (r RelocateMemberRequest) encodeBody(out *packet.OutPacket) {
	out.EncodeInt(r.PartyID)
	out.EncodeInt(r.CharID)
}

// EncodeRequest writes the tag followed by the fields of r's variant.
func EncodeRequest(out *packet.OutPacket, r Request) {
	out.EncodeByte(int8(r.Type()))
	r.encodeBody(out)
}

// MarshalRequest encodes r into a standalone byte slice.
func MarshalRequest(r Request) []byte {
	out := packet.NewRawOutPacket()
	EncodeRequest(out, r)
	return out.Bytes()
}

// DecodeRequest reads a tag and the fields of that variant. An unknown tag
// returns ErrUnknownRequest; a truncated body returns packet.ErrPacketUnderflow.
func DecodeRequest(in *packet.InPacket) (Request, error) {
	tag := RequestType(in.DecodeByte())
	if err := in.Err(); err != nil {
		return nil, err
	}
	var r Request
	switch tag {
	case RequestLoad:
		r = LoadRequest{ExpeditionID: in.DecodeInt()}
	case RequestCreateNew:
		r = CreateNewRequest{QuestID: in.DecodeInt()}
	case RequestInvite:
		r = InviteRequest{Name: in.DecodeString()}
	case RequestResponse:
		name := in.DecodeString()
		r = ResponseRequest{Name: name, Code: in.DecodeInt()}
	case RequestWithdraw:
		r = WithdrawRequest{}
	case RequestKick:
		r = KickRequest{CharID: in.DecodeInt()}
	case RequestChangeMaster:
		r = ChangeMasterRequest{TargetID: in.DecodeInt()}
	case RequestChangePartyBoss:
		target := in.DecodeInt()
		r = ChangePartyBossRequest{TargetID: target, Disconnect: in.DecodeBool()}
	case RequestRelocateMember:
		partyID := in.DecodeInt()
		r = RelocateMemberRequest{PartyID: partyID, CharID: in.DecodeInt()}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRequest, int8(tag))
	}
	if err := in.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return r, nil
}

// UnmarshalRequest decodes a request from a standalone byte slice.
func UnmarshalRequest(data []byte) (Request, error) {
	return DecodeRequest(packet.NewInPacket(data))
}

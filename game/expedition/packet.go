package expedition

import (
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/party"
)

// ResultType is the first byte of an expedition notification.
type ResultType int8

const (
	ResultLoadDone       ResultType = 57
	ResultLoadFail       ResultType = 58
	ResultCreateNewDone  ResultType = 59
	ResultJoinDone       ResultType = 60
	ResultYouJoined      ResultType = 61
	ResultYouJoined2     ResultType = 62
	ResultJoinFail       ResultType = 63
	ResultWithdrawDone   ResultType = 64
	ResultYouWithdrew    ResultType = 65
	ResultKickDone       ResultType = 66
	ResultYouKicked      ResultType = 67
	ResultRemoved        ResultType = 68
	ResultMasterChanged  ResultType = 69
	ResultModified       ResultType = 70
	ResultModified2      ResultType = 71
	ResultInvite         ResultType = 72
	ResultResponseInvite ResultType = 73
)

// Invite rejection codes sent back to the inviter with ResultResponseInvite.
const (
	InviteNotFound      int32 = 0
	InviteAlreadyJoined int32 = 2
	InviteLevelMismatch int32 = 3
	InviteFull          int32 = 4
)

func result(t ResultType) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutExpeditionNoti)
	out.EncodeByte(int8(t))
	return out
}

func withName(t ResultType, name string) *packet.OutPacket {
	out := result(t)
	out.EncodeString(name)
	return out
}

func withView(t ResultType, e *Expedition) *packet.OutPacket {
	out := result(t)
	e.Encode(out)
	return out
}

func LoadDonePacket(e *Expedition) *packet.OutPacket      { return withView(ResultLoadDone, e) }
func LoadFailPacket() *packet.OutPacket                   { return result(ResultLoadFail) }
func CreateNewDonePacket(e *Expedition) *packet.OutPacket { return withView(ResultCreateNewDone, e) }
func JoinDonePacket(name string) *packet.OutPacket        { return withName(ResultJoinDone, name) }
func YouJoinedPacket(e *Expedition) *packet.OutPacket     { return withView(ResultYouJoined, e) }
func JoinFailPacket() *packet.OutPacket                   { return result(ResultJoinFail) }
func WithdrawDonePacket(name string) *packet.OutPacket    { return withName(ResultWithdrawDone, name) }
func YouWithdrewPacket(name string) *packet.OutPacket     { return withName(ResultYouWithdrew, name) }
func KickDonePacket(name string) *packet.OutPacket        { return withName(ResultKickDone, name) }
func YouKickedPacket(name string) *packet.OutPacket       { return withName(ResultYouKicked, name) }

// MasterChangedPacket announces the new master's character id.
func MasterChangedPacket(newMasterID int32) *packet.OutPacket {
	out := result(ResultMasterChanged)
	out.EncodeInt(newMasterID)
	return out
}

// ModifiedPacket carries one sub-group's refreshed block.
func ModifiedPacket(e *Expedition, p *party.Party) *packet.OutPacket {
	out := result(ResultModified)
	out.EncodeInt(e.MasterPartyIndex())
	out.EncodeInt(p.ID)
	p.EncodeForExped(out)
	return out
}

// InvitePacket is shown to the invited character.
func InvitePacket(inviter party.RemoteUser, questID int32) *packet.OutPacket {
	out := result(ResultInvite)
	out.EncodeInt(int32(inviter.Level))
	out.EncodeInt(int32(inviter.Job))
	out.EncodeString(inviter.Name)
	out.EncodeInt(questID)
	return out
}

// ResponseInvitePacket tells the inviter how an invite ended.
func ResponseInvitePacket(code int32, name string) *packet.OutPacket {
	out := result(ResultResponseInvite)
	out.EncodeInt(code)
	out.EncodeString(name)
	return out
}

// InfoPacket pushes a character's own membership snapshot.
func InfoPacket(info Info) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutExpeditionInfo)
	info.Encode(out)
	return out
}

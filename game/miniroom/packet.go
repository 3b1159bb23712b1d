package miniroom

import (
	"github.com/kasuganosora/worldsrv/game/packet"
)

// Protocol is the action byte that follows the InMiniRoom/OutMiniRoom header.
type Protocol int8

const (
	MRPCreate              Protocol = 0
	MRPEnter               Protocol = 4
	MRPEnterResult         Protocol = 5
	MRPLeave               Protocol = 10
	MRPBalloon             Protocol = 11
	PSPDeliverBlackList    Protocol = 30
	ESPPutItem             Protocol = 34
	ESPBuyItem             Protocol = 35
	ESPBuyResult           Protocol = 36
	ESPRefresh             Protocol = 37
	ESPAddSoldItem         Protocol = 38
	ESPMoveItemToInventory Protocol = 39
	ESPGoOut               Protocol = 40
	ESPArrangeItem         Protocol = 41
	ESPWithdrawAll         Protocol = 42
	ESPWithdrawAllResult   Protocol = 43
	ESPWithdrawMoney       Protocol = 44
	ESPWithdrawMoneyResult Protocol = 45
	ESPDeliverVisitList    Protocol = 47
	ESPDeliverBlackList    Protocol = 48
	ESPAddBlackList        Protocol = 49
	ESPDeleteBlackList     Protocol = 50
)

// RoomType identifies the kind of mini-room in create and enter frames.
type RoomType int8

const RoomEntrustedShop RoomType = 5

// BuyResult is the outcome of a purchase shown to the buyer.
type BuyResult int8

const (
	BuySuccess          BuyResult = 0
	BuyNoSlot           BuyResult = 1
	BuyNoMoney          BuyResult = 2
	BuyHostTooMuchMoney BuyResult = 4
	BuyUnknown          BuyResult = 6
)

func (r BuyResult) String() string {
	switch r {
	case BuySuccess:
		return "Success"
	case BuyNoSlot:
		return "NoSlot"
	case BuyNoMoney:
		return "NoMoney"
	case BuyHostTooMuchMoney:
		return "HostTooMuchMoney"
	default:
		return "Unknown"
	}
}

// WithdrawResult is the outcome of a withdraw-all request.
type WithdrawResult int8

const (
	WithdrawSuccess WithdrawResult = 0
	WithdrawUnknown WithdrawResult = 1
	WithdrawNoSlot  WithdrawResult = 2
	WithdrawNothing WithdrawResult = 3
)

// LeaveType is the reason a seat was vacated.
type LeaveType int8

const (
	LeaveUserRequest  LeaveType = 0
	LeaveClosed       LeaveType = 2
	LeaveHostOut      LeaveType = 3
	LeaveOpenTimeOver LeaveType = 6
	LeaveNoMoreItem   LeaveType = 14
	LeaveStartManage  LeaveType = 17
)

// EnterResult is the outcome of a visitor trying to enter a shop.
type EnterResult int8

const (
	EnterSuccess       EnterResult = 0
	EnterNoRoom        EnterResult = 1
	EnterFull          EnterResult = 2
	EnterExistMiniRoom EnterResult = 13
	EnterOnBlockedList EnterResult = 17
	EnterIsManaging    EnterResult = 18
)

func newMiniRoomPacket(p Protocol) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutMiniRoom)
	out.EncodeByte(int8(p))
	return out
}

func encodeItems(out *packet.OutPacket, items []*PlayerShopItem) {
	out.EncodeByte(int8(len(items)))
	for _, si := range items {
		out.EncodeShort(int16(si.PerBundle))
		out.EncodeShort(int16(si.Bundles))
		out.EncodeInt(si.Price)
		si.Item.EncodeWithQuantity(out, si.PerBundle)
	}
}

// RefreshPacket lists the shop's stock and balance.
func RefreshPacket(money int32, items []*PlayerShopItem) *packet.OutPacket {
	out := newMiniRoomPacket(ESPRefresh)
	out.EncodeInt(money)
	encodeItems(out, items)
	return out
}

// BuyResultPacket reports a purchase outcome.
func BuyResultPacket(r BuyResult) *packet.OutPacket {
	out := newMiniRoomPacket(ESPBuyResult)
	out.EncodeByte(int8(r))
	return out
}

// AddSoldItemPacket tells the owner that a buyer took count bundles of the
// entry at index.
func AddSoldItemPacket(index int, count int32, buyer string) *packet.OutPacket {
	out := newMiniRoomPacket(ESPAddSoldItem)
	out.EncodeByte(int8(index))
	out.EncodeShort(int16(count))
	out.EncodeString(buyer)
	return out
}

// MoveItemToInventoryPacket confirms that the entry at index was taken back.
func MoveItemToInventoryPacket(remaining, index int) *packet.OutPacket {
	out := newMiniRoomPacket(ESPMoveItemToInventory)
	out.EncodeByte(int8(remaining))
	out.EncodeShort(int16(index))
	return out
}

// WithdrawAllResultPacket reports a withdraw-all outcome.
func WithdrawAllResultPacket(r WithdrawResult) *packet.OutPacket {
	out := newMiniRoomPacket(ESPWithdrawAllResult)
	out.EncodeByte(int8(r))
	return out
}

// WithdrawMoneyResultPacket confirms a balance withdrawal.
func WithdrawMoneyResultPacket() *packet.OutPacket {
	return newMiniRoomPacket(ESPWithdrawMoneyResult)
}

// ArrangePacket confirms that exhausted entries were dropped.
func ArrangePacket(money int32) *packet.OutPacket {
	out := newMiniRoomPacket(ESPArrangeItem)
	out.EncodeInt(money)
	return out
}

// VisitListPacket lists the characters who have visited the shop.
func VisitListPacket(names []string) *packet.OutPacket {
	out := newMiniRoomPacket(ESPDeliverVisitList)
	out.EncodeShort(int16(len(names)))
	for _, n := range names {
		out.EncodeString(n)
	}
	return out
}

// BlackListPacket lists the characters barred from the shop.
func BlackListPacket(names []string) *packet.OutPacket {
	out := newMiniRoomPacket(ESPDeliverBlackList)
	out.EncodeShort(int16(len(names)))
	for _, n := range names {
		out.EncodeString(n)
	}
	return out
}

// LeavePacket tells seat index that it has been vacated.
func LeavePacket(index int, lt LeaveType) *packet.OutPacket {
	out := newMiniRoomPacket(MRPLeave)
	out.EncodeByte(int8(index))
	out.EncodeByte(int8(lt))
	return out
}

// EnterUserPacket tells the seated users that name took seat index.
func EnterUserPacket(index int, name string) *packet.OutPacket {
	out := newMiniRoomPacket(MRPEnter)
	out.EncodeByte(int8(index))
	out.EncodeString(name)
	return out
}

// EnterResultPacket reports a failed entry.
func EnterResultPacket(r EnterResult) *packet.OutPacket {
	out := newMiniRoomPacket(MRPEnterResult)
	out.EncodeByte(0)
	out.EncodeByte(int8(r))
	return out
}

// EnterPacket is sent to a new visitor: seat layout, stock and timing.
func EnterPacket(s *EntrustedShop, index int) *packet.OutPacket {
	out := newMiniRoomPacket(MRPEnterResult)
	out.EncodeByte(int8(RoomEntrustedShop))
	out.EncodeByte(int8(maxUsers))
	out.EncodeByte(int8(index))
	out.EncodeInt(s.templateID)
	out.EncodeString(s.employerName)
	for i, u := range s.users {
		if u == nil || i == 0 {
			continue
		}
		out.EncodeByte(int8(i))
		out.EncodeString(u.CharName)
	}
	out.EncodeByte(-1)
	out.EncodeInt(int32(s.timePassed().Seconds()))
	out.EncodeString(s.title)
	out.EncodeByte(int8(s.slotMax))
	out.EncodeInt(s.money)
	encodeItems(out, s.items)
	return out
}

// EmployeeEnterFieldPacket spawns the hired merchant in the field.
func EmployeeEnterFieldPacket(s *EntrustedShop) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutEmployeeEnterField)
	out.EncodeInt(s.employerID)
	out.EncodeInt(s.templateID)
	out.EncodeShort(s.x)
	out.EncodeShort(s.y)
	out.EncodeShort(s.foothold)
	out.EncodeString(s.employerName)
	encodeBalloon(out, s)
	return out
}

// EmployeeLeaveFieldPacket removes the hired merchant from the field.
func EmployeeLeaveFieldPacket(employerID int32) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutEmployeeLeaveField)
	out.EncodeInt(employerID)
	return out
}

// EmployeeBalloonPacket updates the sign above the hired merchant.
func EmployeeBalloonPacket(s *EntrustedShop) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutEmployeeBalloon)
	out.EncodeInt(s.employerID)
	encodeBalloon(out, s)
	return out
}

func encodeBalloon(out *packet.OutPacket, s *EntrustedShop) {
	out.EncodeByte(int8(RoomEntrustedShop))
	out.EncodeInt(s.id)
	out.EncodeString(s.title)
	out.EncodeByte(int8(s.templateID % 100))
	out.EncodeByte(int8(s.seated()))
	out.EncodeByte(int8(maxUsers))
}

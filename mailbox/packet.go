package mailbox

import "github.com/kasuganosora/worldsrv/game/packet"

// Store-bank request codes.
const (
	BankRequestShowItems int8 = 0x1A
	BankRequestGetAll    int8 = 0x1B
)

// Store-bank result codes.
const (
	BankResultGetAllDone int8 = 0x20
	BankResultNothing    int8 = 0x21
	BankResultNoSlot     int8 = 0x22
	BankResultNoMoney    int8 = 0x23
	BankResultRetry      int8 = 0x24
	BankResultShowItems  int8 = 0x25
)

// ShowItemsPacket lists the mailbox contents: mesos owed, then each unsold
// row as bundles and the item at its per-bundle quantity.
func ShowItemsPacket(unsold []*ShopItem, mesos int64) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutStoreBankResult)
	out.EncodeByte(BankResultShowItems)
	out.EncodeLong(mesos)
	var n int16
	for _, si := range unsold {
		if si.Item != nil {
			n++
		}
	}
	out.EncodeShort(n)
	for _, si := range unsold {
		if si.Item == nil {
			continue
		}
		out.EncodeInt(int32(si.ID))
		out.EncodeShort(int16(si.Bundles))
		si.Item.Encode(out)
	}
	return out
}

// GetAllResultPacket reports the outcome of a claim.
func GetAllResultPacket(r ClaimResult, mesos int32) *packet.OutPacket {
	if r == ClaimOK {
		out := packet.NewOutPacket(packet.OutStoreBankGetAllResult)
		out.EncodeByte(BankResultGetAllDone)
		out.EncodeInt(mesos)
		return out
	}
	out := packet.NewOutPacket(packet.OutStoreBankResult)
	switch r {
	case ClaimNothing:
		out.EncodeByte(BankResultNothing)
	case ClaimNoSlot:
		out.EncodeByte(BankResultNoSlot)
	case ClaimNoMoney:
		out.EncodeByte(BankResultNoMoney)
	default:
		out.EncodeByte(BankResultRetry)
	}
	return out
}

package item

import "github.com/kasuganosora/worldsrv/game/packet"

// OperationPacket reports slot changes to the owning client.
func OperationPacket(ops []Operation, exclRequest bool) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutInventoryOperation)
	out.EncodeBool(exclRequest)
	out.EncodeByte(int8(len(ops)))
	for _, op := range ops {
		out.EncodeByte(int8(op.Type))
		out.EncodeByte(int8(op.InvType))
		out.EncodeShort(op.Position)
		switch op.Type {
		case OpAdd:
			op.Item.Encode(out)
		case OpQuantity:
			out.EncodeShort(int16(op.Quantity))
		}
	}
	return out
}

// MoneyPacket reports the new wallet balance.
func MoneyPacket(money int32) *packet.OutPacket {
	out := packet.NewOutPacket(packet.OutStatChanged)
	out.EncodeBool(false)
	out.EncodeInt(0x40000) // money stat flag
	out.EncodeInt(money)
	return out
}

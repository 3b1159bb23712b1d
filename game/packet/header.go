package packet

// InHeader identifies a client-to-server frame.
type InHeader uint16

const (
	InPing              InHeader = 0x0001
	InChangeField       InHeader = 0x0029
	InMiniRoom          InHeader = 0x0090
	InExpeditionRequest InHeader = 0x00A8
	InStoreBankRequest  InHeader = 0x00B4
)

// OutHeader identifies a server-to-client frame.
type OutHeader uint16

const (
	OutPong                  OutHeader = 0x0001
	OutInventoryOperation    OutHeader = 0x001C
	OutStatChanged           OutHeader = 0x001F
	OutExpeditionNoti        OutHeader = 0x0058
	OutExpeditionInfo        OutHeader = 0x0059
	OutMiniRoom              OutHeader = 0x0148
	OutEmployeeEnterField    OutHeader = 0x0150
	OutEmployeeLeaveField    OutHeader = 0x0151
	OutEmployeeBalloon       OutHeader = 0x0152
	OutStoreBankGetAllResult OutHeader = 0x0160
	OutStoreBankResult       OutHeader = 0x0161
)

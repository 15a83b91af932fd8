package driver

// Register is a byte offset into the OHCI register file.
type Register uint32

// OHCI register map - must match OHCI 1.1 chapter 5
const (
	RegVersion           Register = 0x000
	RegGUIDROM           Register = 0x004
	RegATRetries         Register = 0x008
	RegCSRData           Register = 0x00C
	RegCSRCompareData    Register = 0x010
	RegCSRControl        Register = 0x014
	RegConfigROMHeader   Register = 0x018
	RegBusID             Register = 0x01C
	RegBusOptions        Register = 0x020
	RegGUIDHi            Register = 0x024
	RegGUIDLo            Register = 0x028
	RegConfigROMMap      Register = 0x034
	RegPostedWriteLo     Register = 0x038
	RegPostedWriteHi     Register = 0x03C
	RegVendorID          Register = 0x040
	RegHCControlSet      Register = 0x050
	RegHCControlClear    Register = 0x054
	RegSelfIDBuffer      Register = 0x064
	RegSelfIDCount       Register = 0x068
	RegIntEventSet       Register = 0x080
	RegIntEventClear     Register = 0x084
	RegIntMaskSet        Register = 0x088
	RegIntMaskClear      Register = 0x08C
	RegLinkControlSet    Register = 0x0E0
	RegLinkControlClear  Register = 0x0E4
	RegNodeID            Register = 0x0E8
	RegPhyControl        Register = 0x0EC
	RegCycleTimer        Register = 0x0F0
	RegAsReqFilterHiSet  Register = 0x100
	RegAsReqFilterHiClr  Register = 0x104
	RegAsReqFilterLoSet  Register = 0x108
	RegAsReqFilterLoClr  Register = 0x10C
	RegPhyReqFilterHiSet Register = 0x110
	RegPhyReqFilterHiClr Register = 0x114
	RegPhyReqFilterLoSet Register = 0x118
	RegPhyReqFilterLoClr Register = 0x11C
	RegPhyUpperBound     Register = 0x120

	RegAsReqTrContextControlSet   Register = 0x180
	RegAsReqTrContextControlClear Register = 0x184
	RegAsRspTrContextControlSet   Register = 0x1A0
	RegAsRspTrContextControlClear Register = 0x1A4
)

// RegisterFileSize is the size of the OHCI register window behind BAR0.
const RegisterFileSize = 0x800

// HCControl bits
const (
	HCControlBIBImageValid     uint32 = 0x80000000
	HCControlNoByteSwapData    uint32 = 0x40000000
	HCControlAckTardyEnable    uint32 = 0x20000000
	HCControlProgramPhyEnable  uint32 = 0x00800000
	HCControlAPhyEnhanceEnable uint32 = 0x00400000
	HCControlLPS               uint32 = 0x00080000
	HCControlPostedWriteEnable uint32 = 0x00040000
	HCControlLinkEnable        uint32 = 0x00020000
	HCControlSoftReset         uint32 = 0x00010000
)

// BusOptions capability bits. The configuration ROM never advertises them.
const (
	BusOptionsIRMC uint32 = 1 << 31
	BusOptionsCMC  uint32 = 1 << 30
	BusOptionsISC  uint32 = 1 << 29
	BusOptionsBMC  uint32 = 1 << 28

	BusOptionsCapabilityMask = BusOptionsIRMC | BusOptionsCMC | BusOptionsISC | BusOptionsBMC
)

// LinkControl bits
const (
	LinkControlRcvSelfID        uint32 = 1 << 9
	LinkControlRcvPhyPkt        uint32 = 1 << 10
	LinkControlCycleTimerEnable uint32 = 1 << 20
	LinkControlCycleMaster      uint32 = 1 << 21
	LinkControlCycleSource      uint32 = 1 << 22
)

// NodeID fields
const (
	NodeIDValid      uint32 = 0x80000000
	NodeIDNodeNumber uint32 = 0x0000003F
	NodeIDBusNumber  uint32 = 0x0000FFC0
)

// SelfIDCount fields
const (
	SelfIDCountError           uint32 = 0x80000000
	SelfIDCountGenerationMask  uint32 = 0x00FF0000
	SelfIDCountGenerationShift        = 16
	SelfIDCountSizeMask        uint32 = 0x000007FC
	SelfIDCountSizeShift              = 2
)

// PhyControl fields
const (
	PhyControlReadDone  uint32 = 0x80000000
	PhyControlReadData  uint32 = 0x00FF0000
	PhyControlRdReg     uint32 = 0x00008000
	PhyControlWrReg     uint32 = 0x00004000
	PhyControlRegAddr   uint32 = 0x00000F00
	PhyControlWriteData uint32 = 0x000000FF

	PhyControlReadDataShift = 16
	PhyControlRegAddrShift  = 8
)

// PhyControlRead returns the command word that starts a PHY register read.
func PhyControlRead(addr uint8) uint32 {
	return uint32(addr)<<PhyControlRegAddrShift | PhyControlRdReg
}

// PhyControlWrite returns the command word that starts a PHY register write.
func PhyControlWrite(addr, data uint8) uint32 {
	return uint32(addr)<<PhyControlRegAddrShift | uint32(data) | PhyControlWrReg
}

// PhyControlData extracts the data byte of a completed read.
func PhyControlData(v uint32) uint8 {
	return uint8((v & PhyControlReadData) >> PhyControlReadDataShift)
}

// Asynchronous transmit ContextControl bits
const (
	ContextControlActive uint32 = 1 << 10
	ContextControlRun    uint32 = 1 << 15
)

// IntEvent bits
const (
	IntReqTxComplete      uint32 = 0x00000001
	IntRespTxComplete     uint32 = 0x00000002
	IntARRQ               uint32 = 0x00000004
	IntARRS               uint32 = 0x00000008
	IntRQPkt              uint32 = 0x00000010
	IntRSPkt              uint32 = 0x00000020
	IntIsochTx            uint32 = 0x00000040
	IntIsochRx            uint32 = 0x00000080
	IntPostedWriteErr     uint32 = 0x00000100
	IntLockRespErr        uint32 = 0x00000200
	IntSelfIDComplete2    uint32 = 0x00008000
	IntSelfIDComplete     uint32 = 0x00010000
	IntBusReset           uint32 = 0x00020000
	IntRegAccessFail      uint32 = 0x00040000
	IntPhy                uint32 = 0x00080000
	IntCycleSynch         uint32 = 0x00100000
	IntCycle64Seconds     uint32 = 0x00200000
	IntCycleLost          uint32 = 0x00400000
	IntCycleInconsistent  uint32 = 0x00800000
	IntUnrecoverableError uint32 = 0x01000000
	IntCycleTooLong       uint32 = 0x02000000
	IntPhyRegRcvd         uint32 = 0x04000000
	IntMasterIntEnable    uint32 = 0x80000000
)

// Version register fields
const (
	VersionGUIDROM       uint32 = 0x01000000
	VersionVersionMask   uint32 = 0x00FF0000
	VersionVersionShift         = 16
	VersionRevisionMask  uint32 = 0x000000FF
	MinSupportedVersion         = 1
	MinSupportedRevision        = 0x10
)

// PHY register addresses
const (
	PhyRegNodeID        uint8 = 0 // physical id, root, cable power status
	PhyRegReset         uint8 = 1 // RHB, IBR, gap count
	PhyRegPorts         uint8 = 2 // extended (3 bits), total ports (5 bits)
	PhyRegSpeedDelay    uint8 = 3
	PhyRegLinkContender uint8 = 4 // LCtrl, C, jitter, power class
	PhyRegInterrupts    uint8 = 5
	PhyRegPageSelect    uint8 = 7 // page (3 bits), port (4 bits)
	PhyRegPaged0        uint8 = 8 // first register of the selected page
)

// PHY register bits
const (
	PhyResetIBR         uint8 = 1 << 6
	PhyContender        uint8 = 1 << 6
	PhyTotalPortsMask   uint8 = 0x1F
	PhyExtendedShift          = 5
	PhyExtendedEnhanced uint8 = 7
	PhyPageShift              = 5
	PhyMaxPage          uint8 = 7
	PhyMaxPorts         uint8 = 16
)

// PhyPage selects a page of the enhanced PHY register map.
type PhyPage uint8

const (
	PhyPagePortStatus PhyPage = 0
	PhyPageVendorInfo PhyPage = 1
)

// PortStatus is register 0 of the port status page.
type PortStatus uint8

const (
	PortDisabled  PortStatus = 1 << 0
	PortConnected PortStatus = 1 << 2
	PortChild     PortStatus = 1 << 3
)

// Defaults programmed during bring-up
const (
	DefaultPhyUpperBound uint32 = 0xFFFF0000
	DefaultATRetries     uint32 = 0x00000FFF
	SelfIDSentinel       uint32 = 0xDEADBEEF
)

// Tick budgets for bounded waits
const (
	ResetTimeoutTicks   = 10000
	PHYTimeoutTicks     = 10000
	MiscTimeoutTicks    = 10000
	ContextTimeoutTicks = 10
	SelfIDTimeoutTicks  = 1000
)

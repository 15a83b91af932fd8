package driver

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Registers is typed access to the memory-mapped OHCI register file.
// Implementations perform every access immediately and in program order.
type Registers interface {
	Read(reg Register) uint32
	Write(reg Register, value uint32)
}

var registerNames = map[Register]string{
	RegVersion:                    "Version",
	RegGUIDROM:                    "GUID_ROM",
	RegATRetries:                  "ATRetries",
	RegCSRData:                    "CSRData",
	RegCSRCompareData:             "CSRCompareData",
	RegCSRControl:                 "CSRControl",
	RegConfigROMHeader:            "ConfigROMhdr",
	RegBusID:                      "BusID",
	RegBusOptions:                 "BusOptions",
	RegGUIDHi:                     "GUIDHi",
	RegGUIDLo:                     "GUIDLo",
	RegConfigROMMap:               "ConfigROMmap",
	RegPostedWriteLo:              "PostedWriteAddressLo",
	RegPostedWriteHi:              "PostedWriteAddressHi",
	RegVendorID:                   "VendorID",
	RegHCControlSet:               "HCControlSet",
	RegHCControlClear:             "HCControlClear",
	RegSelfIDBuffer:               "SelfIDBuffer",
	RegSelfIDCount:                "SelfIDCount",
	RegIntEventSet:                "IntEventSet",
	RegIntEventClear:              "IntEventClear",
	RegIntMaskSet:                 "IntMaskSet",
	RegIntMaskClear:               "IntMaskClear",
	RegLinkControlSet:             "LinkControlSet",
	RegLinkControlClear:           "LinkControlClear",
	RegNodeID:                     "NodeID",
	RegPhyControl:                 "PhyControl",
	RegCycleTimer:                 "IsochronousCycleTimer",
	RegAsReqFilterHiSet:           "AsReqFilterHiSet",
	RegAsReqFilterHiClr:           "AsReqFilterHiClear",
	RegAsReqFilterLoSet:           "AsReqFilterLoSet",
	RegAsReqFilterLoClr:           "AsReqFilterLoClear",
	RegPhyReqFilterHiSet:          "PhyReqFilterHiSet",
	RegPhyReqFilterHiClr:          "PhyReqFilterHiClear",
	RegPhyReqFilterLoSet:          "PhyReqFilterLoSet",
	RegPhyReqFilterLoClr:          "PhyReqFilterLoClear",
	RegPhyUpperBound:              "PhyUpperBound",
	RegAsReqTrContextControlSet:   "AsReqTrContextControlSet",
	RegAsReqTrContextControlClear: "AsReqTrContextControlClear",
	RegAsRspTrContextControlSet:   "AsRspTrContextControlSet",
	RegAsRspTrContextControlClear: "AsRspTrContextControlClear",
}

// String returns the OHCI 1.1 name of the register
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reg(%#03x)", uint32(r))
}

// DumpRegisters lists the readable registers in offset order. Clear and
// command registers are skipped because reading them has no meaning.
func DumpRegisters() []Register {
	return []Register{
		RegVersion, RegGUIDROM, RegATRetries, RegConfigROMHeader, RegBusID,
		RegBusOptions, RegGUIDHi, RegGUIDLo, RegConfigROMMap, RegVendorID,
		RegHCControlSet, RegSelfIDBuffer, RegSelfIDCount, RegIntEventSet,
		RegIntMaskSet, RegLinkControlSet, RegNodeID, RegPhyControl,
		RegAsReqFilterHiSet, RegAsReqFilterLoSet, RegPhyReqFilterHiSet,
		RegPhyReqFilterLoSet, RegPhyUpperBound, RegAsReqTrContextControlSet,
		RegAsRspTrContextControlSet,
	}
}

// MappedRegisters is an OHCI register file mapped from a PCI BAR resource.
// The host is assumed little-endian like the PCI bus.
type MappedRegisters struct {
	mem  []byte
	path string
}

// MapRegisters maps the register file exposed at path, usually
// /sys/bus/pci/devices/<address>/resource0
func MapRegisters(path string) (*MappedRegisters, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		errno, ok := err.(unix.Errno)
		if ok {
			return nil, StatusFromErrno(errno, "opening register file "+path)
		}
		return nil, NewErrorWithCause(StatusMapFailed, "opening register file "+path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, NewErrorWithCause(StatusMapFailed, "stat "+path, err)
	}

	size := int(st.Size)
	if size == 0 {
		size = RegisterFileSize
	}
	if size < RegisterFileSize {
		return nil, NewError(StatusInvalidDevice,
			fmt.Sprintf("register window %s is %d bytes, need %d", path, size, RegisterFileSize))
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, NewErrorWithCause(StatusMapFailed, "mmap "+path, err)
	}

	return &MappedRegisters{mem: mem, path: path}, nil
}

// Close unmaps the register file
func (m *MappedRegisters) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	if err != nil {
		return NewErrorWithCause(StatusDriverOperationFailed, "unmapping "+m.path, err)
	}
	return nil
}

// Path returns the resource file backing the mapping
func (m *MappedRegisters) Path() string {
	return m.path
}

// Read loads a register
func (m *MappedRegisters) Read(reg Register) uint32 {
	return atomic.LoadUint32(m.word(reg))
}

// Write stores a register
func (m *MappedRegisters) Write(reg Register, value uint32) {
	atomic.StoreUint32(m.word(reg), value)
}

func (m *MappedRegisters) word(reg Register) *uint32 {
	if reg&3 != 0 || int(reg)+4 > len(m.mem) {
		panic(fmt.Sprintf("driver: register %v outside mapped window of %d bytes", reg, len(m.mem)))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[reg]))
}

// Hex formats a register value for log lines
func Hex(v uint32) string {
	return fmt.Sprintf("%#08x", v)
}

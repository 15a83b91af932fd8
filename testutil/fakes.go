package testutil

import (
	"fmt"
	"sync"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// FakeArena is a bump allocator handing out buffers at made-up bus
// addresses.
type FakeArena struct {
	mu    sync.Mutex
	next  uint32
	bufs  []driver.Buffer
	Fail  error  // returned by Alloc when set
	Skew  uint32 // added to every bus address after alignment
	Calls int
}

// NewFakeArena creates an arena whose first buffer starts at base
func NewFakeArena(base uint32) *FakeArena {
	return &FakeArena{next: base}
}

// Alloc returns a zeroed buffer aligned to align, shifted by Skew
func (a *FakeArena) Alloc(size, align int) (driver.Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Calls++
	if a.Fail != nil {
		return driver.Buffer{}, a.Fail
	}
	if size <= 0 || align <= 0 || align&(align-1) != 0 {
		return driver.Buffer{}, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("fake alloc size %d align %d", size, align))
	}

	addr := (a.next+uint32(align)-1)&^(uint32(align)-1) + a.Skew
	buf := driver.Buffer{Bytes: make([]byte, size), BusAddr: addr}
	a.next = addr + uint32(size)
	a.bufs = append(a.bufs, buf)
	return buf, nil
}

// Window resolves a bus address inside an allocated buffer
func (a *FakeArena) Window(busAddr uint32, size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.bufs {
		if busAddr >= b.BusAddr && int(busAddr-b.BusAddr)+size <= len(b.Bytes) {
			off := busAddr - b.BusAddr
			return b.Bytes[off : int(off)+size], nil
		}
	}
	return nil, driver.NewError(driver.StatusNotFound,
		fmt.Sprintf("fake arena has no buffer at %#08x+%d", busAddr, size))
}

// Buffers returns every buffer handed out so far
func (a *FakeArena) Buffers() []driver.Buffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]driver.Buffer(nil), a.bufs...)
}

// FakeClock counts ticks instead of sleeping
type FakeClock struct {
	mu    sync.Mutex
	ticks int
}

// Tick records one polling interval
func (c *FakeClock) Tick() {
	c.mu.Lock()
	c.ticks++
	c.mu.Unlock()
}

// Ticks returns the number of ticks so far
func (c *FakeClock) Ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Write is one recorded register write
type Write struct {
	Reg   driver.Register
	Value uint32
}

// ControllerConfig seeds a FakeRegisters
type ControllerConfig struct {
	Version          uint32 // default OHCI 1.10 with GUID ROM
	VendorID         uint32
	BusID            uint32 // default "1394"
	BusOptions       uint32
	GUID             uint64
	Ports            uint8
	Enhanced         bool
	ProgramPhyEnable bool
	NoPhyUpperBound  bool // PhyUpperBound reads back 0

	SoftResetReads  int // HCControl reads before softReset clears, default 3
	LPSReads        int // reads before LPS reads back set, default 2
	LinkEnableReads int // reads before linkEnable reads back set, default 2
	PhyLatency      int // PhyControl reads before a PHY handshake completes, default 2
	ContextDrain    int // ContextControl reads before active clears, default 1
	NodeNumber      uint8
}

// FakeRegisters models the parts of an OHCI register file the driver
// touches: set/clear register pairs, the soft reset and LPS handshakes,
// the PHY behind PhyControl with paged port registers, interrupt events,
// request filters that a bus reset wipes, and SelfID DMA into an arena.
type FakeRegisters struct {
	mu  sync.Mutex
	cfg ControllerConfig

	plain       map[driver.Register]uint32
	hcControl   uint32
	linkControl uint32
	intEvent    uint32
	intMask     uint32
	asFilter    uint64
	phyFilter   uint64
	upperBound  uint32
	nodeID      uint32
	selfIDCount uint32
	generation  uint8
	contexts    map[driver.Register]*fakeContext

	softResetLeft  int
	lpsLeft        int
	linkEnableLeft int

	phy        [8]uint8
	paged      map[[3]uint8]uint8
	phyPending int
	phyResult  uint32
	phyControl uint32

	arena        *FakeArena
	selfIDDelay  int
	selfIDQueued []uint32
	selfIDArmed  bool

	// Stuck conditions for timeout tests
	SoftResetStuck  bool
	LinkEnableStuck bool
	PhyDead         bool
	ContextStuck    bool

	writes []Write
	reads  map[driver.Register]int
	clears map[uint32]int
}

type fakeContext struct {
	control   uint32
	drainLeft int
}

// NewFakeRegisters creates a powered-down controller. arena receives SelfID
// DMA writes and may be nil when no bus reset is simulated.
func NewFakeRegisters(cfg ControllerConfig, arena *FakeArena) *FakeRegisters {
	if cfg.Version == 0 {
		cfg.Version = driver.VersionGUIDROM | 1<<driver.VersionVersionShift | 0x10
	}
	if cfg.BusID == 0 {
		cfg.BusID = 0x31333934
	}
	if cfg.SoftResetReads == 0 {
		cfg.SoftResetReads = 3
	}
	if cfg.LPSReads == 0 {
		cfg.LPSReads = 2
	}
	if cfg.LinkEnableReads == 0 {
		cfg.LinkEnableReads = 2
	}
	if cfg.PhyLatency == 0 {
		cfg.PhyLatency = 2
	}
	if cfg.ContextDrain == 0 {
		cfg.ContextDrain = 1
	}

	f := &FakeRegisters{
		cfg:   cfg,
		arena: arena,
		plain: map[driver.Register]uint32{
			driver.RegVersion:    cfg.Version,
			driver.RegVendorID:   cfg.VendorID,
			driver.RegBusID:      cfg.BusID,
			driver.RegBusOptions: cfg.BusOptions,
			driver.RegGUIDHi:     uint32(cfg.GUID >> 32),
			driver.RegGUIDLo:     uint32(cfg.GUID),
		},
		contexts: map[driver.Register]*fakeContext{
			driver.RegAsReqTrContextControlSet: {},
			driver.RegAsRspTrContextControlSet: {},
		},
		paged:  make(map[[3]uint8]uint8),
		reads:  make(map[driver.Register]int),
		clears: make(map[uint32]int),
	}
	if cfg.ProgramPhyEnable {
		f.hcControl |= driver.HCControlProgramPhyEnable
	}

	f.phy[driver.PhyRegPorts] = cfg.Ports & driver.PhyTotalPortsMask
	if cfg.Enhanced {
		f.phy[driver.PhyRegPorts] |= driver.PhyExtendedEnhanced << driver.PhyExtendedShift
	}
	f.phy[driver.PhyRegLinkContender] = driver.PhyContender | 0x3F
	for port := uint8(0); port < cfg.Ports; port++ {
		f.paged[[3]uint8{uint8(driver.PhyPagePortStatus), port, 0}] = uint8(driver.PortDisabled)
	}
	return f
}

// Read implements driver.Registers
func (f *FakeRegisters) Read(reg driver.Register) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads[reg]++
	switch reg {
	case driver.RegHCControlSet, driver.RegHCControlClear:
		f.advanceHCControl()
		return f.hcControl
	case driver.RegLinkControlSet, driver.RegLinkControlClear:
		return f.linkControl
	case driver.RegIntEventSet, driver.RegIntEventClear:
		f.advanceSelfID()
		return f.intEvent
	case driver.RegIntMaskSet, driver.RegIntMaskClear:
		return f.intMask
	case driver.RegAsReqFilterHiSet, driver.RegAsReqFilterHiClr:
		return uint32(f.asFilter >> 32)
	case driver.RegAsReqFilterLoSet, driver.RegAsReqFilterLoClr:
		return uint32(f.asFilter)
	case driver.RegPhyReqFilterHiSet, driver.RegPhyReqFilterHiClr:
		return uint32(f.phyFilter >> 32)
	case driver.RegPhyReqFilterLoSet, driver.RegPhyReqFilterLoClr:
		return uint32(f.phyFilter)
	case driver.RegPhyUpperBound:
		return f.upperBound
	case driver.RegNodeID:
		return f.nodeID
	case driver.RegSelfIDCount:
		return f.selfIDCount
	case driver.RegPhyControl:
		if f.phyPending > 0 {
			f.phyPending--
			if f.phyPending == 0 {
				f.phyControl = f.phyResult
			}
		}
		return f.phyControl
	case driver.RegAsReqTrContextControlSet, driver.RegAsReqTrContextControlClear,
		driver.RegAsRspTrContextControlSet, driver.RegAsRspTrContextControlClear:
		ctx := f.contexts[reg&^4]
		if ctx.drainLeft > 0 && !f.ContextStuck {
			ctx.drainLeft--
			if ctx.drainLeft == 0 {
				ctx.control &^= driver.ContextControlActive
			}
		}
		return ctx.control
	}
	return f.plain[reg]
}

// Write implements driver.Registers
func (f *FakeRegisters) Write(reg driver.Register, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, Write{Reg: reg, Value: v})
	switch reg {
	case driver.RegHCControlSet:
		f.setHCControl(v &^ driver.HCControlProgramPhyEnable)
	case driver.RegHCControlClear:
		f.hcControl &^= v &^ driver.HCControlProgramPhyEnable
		if v&driver.HCControlLinkEnable != 0 {
			f.linkEnableLeft = 0
		}
	case driver.RegLinkControlSet:
		f.linkControl |= v
	case driver.RegLinkControlClear:
		f.linkControl &^= v
	case driver.RegIntEventSet:
		f.intEvent |= v
	case driver.RegIntEventClear:
		for bit := uint32(1); bit != 0; bit <<= 1 {
			if v&bit != 0 && f.intEvent&bit != 0 {
				f.clears[bit]++
			}
		}
		f.intEvent &^= v
	case driver.RegIntMaskSet:
		f.intMask |= v
	case driver.RegIntMaskClear:
		f.intMask &^= v
	case driver.RegAsReqFilterHiSet:
		f.asFilter |= uint64(v) << 32
	case driver.RegAsReqFilterHiClr:
		f.asFilter &^= uint64(v) << 32
	case driver.RegAsReqFilterLoSet:
		f.asFilter |= uint64(v)
	case driver.RegAsReqFilterLoClr:
		f.asFilter &^= uint64(v)
	case driver.RegPhyReqFilterHiSet:
		f.phyFilter |= uint64(v) << 32
	case driver.RegPhyReqFilterHiClr:
		f.phyFilter &^= uint64(v) << 32
	case driver.RegPhyReqFilterLoSet:
		f.phyFilter |= uint64(v)
	case driver.RegPhyReqFilterLoClr:
		f.phyFilter &^= uint64(v)
	case driver.RegPhyUpperBound:
		if !f.cfg.NoPhyUpperBound {
			f.upperBound = v
		}
	case driver.RegPhyControl:
		f.phyCommand(v)
	case driver.RegAsReqTrContextControlSet, driver.RegAsRspTrContextControlSet:
		f.contexts[reg].control |= v
	case driver.RegAsReqTrContextControlClear, driver.RegAsRspTrContextControlClear:
		ctx := f.contexts[reg&^4]
		ctx.control &^= v &^ driver.ContextControlActive
		if v&driver.ContextControlRun != 0 && ctx.control&driver.ContextControlActive != 0 {
			ctx.drainLeft = f.cfg.ContextDrain
		}
	case driver.RegSelfIDCount, driver.RegNodeID, driver.RegVersion:
		// read-only
	default:
		f.plain[reg] = v
	}
}

func (f *FakeRegisters) setHCControl(v uint32) {
	if v&driver.HCControlSoftReset != 0 {
		f.hcControl |= driver.HCControlSoftReset
		f.softResetLeft = f.cfg.SoftResetReads
	}
	if v&driver.HCControlLPS != 0 && f.hcControl&driver.HCControlLPS == 0 && f.lpsLeft == 0 {
		f.lpsLeft = f.cfg.LPSReads
	}
	if v&driver.HCControlLinkEnable != 0 && f.hcControl&driver.HCControlLinkEnable == 0 && f.linkEnableLeft == 0 {
		f.linkEnableLeft = f.cfg.LinkEnableReads
	}
	f.hcControl |= v &^ (driver.HCControlSoftReset | driver.HCControlLPS | driver.HCControlLinkEnable)
}

// advanceHCControl completes pending handshakes, one step per read
func (f *FakeRegisters) advanceHCControl() {
	if f.softResetLeft > 0 && !f.SoftResetStuck {
		f.softResetLeft--
		if f.softResetLeft == 0 {
			f.hcControl &= driver.HCControlLPS | driver.HCControlProgramPhyEnable
			f.linkControl = 0
			f.intEvent = 0
			f.lpsLeft, f.linkEnableLeft = 0, 0
		}
	}
	if f.lpsLeft > 0 {
		f.lpsLeft--
		if f.lpsLeft == 0 {
			f.hcControl |= driver.HCControlLPS
		}
	}
	if f.linkEnableLeft > 0 && !f.LinkEnableStuck {
		f.linkEnableLeft--
		if f.linkEnableLeft == 0 {
			f.hcControl |= driver.HCControlLinkEnable
		}
	}
}

func (f *FakeRegisters) phyCommand(v uint32) {
	f.phyControl = v
	addr := uint8((v & driver.PhyControlRegAddr) >> driver.PhyControlRegAddrShift)
	switch {
	case v&driver.PhyControlRdReg != 0:
		f.phyResult = driver.PhyControlReadDone |
			uint32(f.phyGet(addr))<<driver.PhyControlReadDataShift |
			uint32(addr)<<driver.PhyControlRegAddrShift
	case v&driver.PhyControlWrReg != 0:
		f.phySet(addr, uint8(v&driver.PhyControlWriteData))
		f.phyResult = v &^ driver.PhyControlWrReg
	default:
		return
	}
	if f.PhyDead {
		f.phyPending = 0
		return
	}
	f.phyPending = f.cfg.PhyLatency
}

func (f *FakeRegisters) pagedKey(addr uint8) [3]uint8 {
	sel := f.phy[driver.PhyRegPageSelect]
	return [3]uint8{sel >> driver.PhyPageShift, sel & 0xF, addr - driver.PhyRegPaged0}
}

func (f *FakeRegisters) phyGet(addr uint8) uint8 {
	if addr < driver.PhyRegPaged0 {
		return f.phy[addr]
	}
	return f.paged[f.pagedKey(addr)]
}

func (f *FakeRegisters) phySet(addr, data uint8) {
	if addr >= driver.PhyRegPaged0 {
		f.paged[f.pagedKey(addr)] = data
		return
	}
	switch addr {
	case driver.PhyRegPorts:
		// read-only
	case driver.PhyRegReset:
		f.phy[addr] = data &^ driver.PhyResetIBR
		if data&driver.PhyResetIBR != 0 {
			f.raiseBusReset()
		}
	default:
		f.phy[addr] = data
	}
}

// BusReset simulates a complete bus reset: busReset is raised, the filters
// are wiped, and the SelfID phase completes at once with the given packets.
func (f *FakeRegisters) BusReset(selfIDs ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raiseBusReset()
	f.completeSelfID(selfIDs)
}

// RaiseBusReset raises busReset and wipes the filters without completing
// the SelfID phase.
func (f *FakeRegisters) RaiseBusReset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raiseBusReset()
}

// CompleteSelfID ends the SelfID phase with the given packets
func (f *FakeRegisters) CompleteSelfID(selfIDs ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeSelfID(selfIDs)
}

// CompleteSelfIDAfter ends the SelfID phase once IntEventSet has been read
// n more times.
func (f *FakeRegisters) CompleteSelfIDAfter(n int, selfIDs ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selfIDDelay = n
	f.selfIDQueued = selfIDs
	f.selfIDArmed = true
}

func (f *FakeRegisters) raiseBusReset() {
	f.intEvent |= driver.IntBusReset
	f.intEvent &^= driver.IntSelfIDComplete
	f.asFilter, f.phyFilter = 0, 0
	f.nodeID = 0
	f.generation++
}

func (f *FakeRegisters) advanceSelfID() {
	if !f.selfIDArmed {
		return
	}
	f.selfIDDelay--
	if f.selfIDDelay <= 0 {
		f.selfIDArmed = false
		f.completeSelfID(f.selfIDQueued)
	}
}

// completeSelfID DMAs a header quadlet followed by each packet and its
// inverse, as the controller stores them.
func (f *FakeRegisters) completeSelfID(selfIDs []uint32) {
	words := 0
	if f.linkControl&driver.LinkControlRcvSelfID != 0 && f.arena != nil {
		addr := f.plain[driver.RegSelfIDBuffer]
		n := 1 + 2*len(selfIDs)
		if buf, err := f.arena.Window(addr, n*4); err == nil {
			b := driver.Buffer{Bytes: buf}
			b.SetWord(0, uint32(f.generation)<<16)
			for i, id := range selfIDs {
				b.SetWord(1+2*i, id)
				b.SetWord(2+2*i, ^id)
			}
			words = n
		}
	}
	f.selfIDCount = uint32(f.generation)<<driver.SelfIDCountGenerationShift |
		uint32(words)<<driver.SelfIDCountSizeShift
	f.intEvent |= driver.IntSelfIDComplete
	f.nodeID = driver.NodeIDValid | 0x3FF<<6 | uint32(f.cfg.NodeNumber)
}

// Raise sets arbitrary IntEvent bits
func (f *FakeRegisters) Raise(bits uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intEvent |= bits
}

// SetSelfIDCount overrides SelfIDCount, for overflow tests
func (f *FakeRegisters) SetSelfIDCount(v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selfIDCount = v
}

// SetContextActive marks an AT context as running DMA
func (f *FakeRegisters) SetContextActive(setReg driver.Register) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts[setReg].control |= driver.ContextControlRun | driver.ContextControlActive
}

// ClearLinkControl drops LinkControl bits behind the driver's back
func (f *FakeRegisters) ClearLinkControl(bits uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkControl &^= bits
}

// ClearCount returns how many IntEventClear writes acknowledged bit while
// it was set.
func (f *FakeRegisters) ClearCount(bit uint32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears[bit]
}

// Writes returns the values written to reg in order
func (f *FakeRegisters) Writes(reg driver.Register) []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint32
	for _, w := range f.writes {
		if w.Reg == reg {
			out = append(out, w.Value)
		}
	}
	return out
}

// AllWrites returns every write in order
func (f *FakeRegisters) AllWrites() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Reads returns how many times reg was read
func (f *FakeRegisters) Reads(reg driver.Register) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[reg]
}

// Filters returns the asynchronous and physical request filters
func (f *FakeRegisters) Filters() (async, physical uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asFilter, f.phyFilter
}

// HCControl returns the HCControl register without advancing handshakes
func (f *FakeRegisters) HCControl() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hcControl
}

// LinkControl returns the LinkControl register
func (f *FakeRegisters) LinkControl() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linkControl
}

// IntEvent returns the IntEvent register without advancing the SelfID phase
func (f *FakeRegisters) IntEvent() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intEvent
}

// Generation returns the number of bus resets so far
func (f *FakeRegisters) Generation() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// PHYRegister returns a base PHY register
func (f *FakeRegisters) PHYRegister(addr uint8) uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phy[addr&7]
}

// SetPHYRegister sets a base PHY register directly
func (f *FakeRegisters) SetPHYRegister(addr, v uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phy[addr&7] = v
}

// PortStatus returns the port status register of a port
func (f *FakeRegisters) PortStatus(port uint8) driver.PortStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return driver.PortStatus(f.paged[[3]uint8{uint8(driver.PhyPagePortStatus), port, 0}])
}

// SetPortStatus sets the port status register of a port
func (f *FakeRegisters) SetPortStatus(port uint8, s driver.PortStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paged[[3]uint8{uint8(driver.PhyPagePortStatus), port, 0}] = uint8(s)
}

// Plain returns a register without side effects
func (f *FakeRegisters) Plain(reg driver.Register) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plain[reg]
}

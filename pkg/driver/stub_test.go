//go:build unit

package driver

type regWrite struct {
	reg   Register
	value uint32
}

// stubRegisters is a flat register file with an optional PHY behind
// PhyControl. Reads and writes are recorded.
type stubRegisters struct {
	values map[Register]uint32
	reads  map[Register]int
	writes []regWrite
	onRead func(reg Register, n int, v uint32) uint32

	phy        *stubPHY
	phyPending int
	phyResult  uint32
}

func newStubRegisters() *stubRegisters {
	return &stubRegisters{
		values: make(map[Register]uint32),
		reads:  make(map[Register]int),
	}
}

func (s *stubRegisters) Read(reg Register) uint32 {
	s.reads[reg]++
	if reg == RegPhyControl && s.phyPending > 0 {
		s.phyPending--
		if s.phyPending == 0 {
			s.values[RegPhyControl] = s.phyResult
		}
	}
	v := s.values[reg]
	if s.onRead != nil {
		v = s.onRead(reg, s.reads[reg], v)
	}
	return v
}

func (s *stubRegisters) Write(reg Register, v uint32) {
	s.writes = append(s.writes, regWrite{reg, v})
	s.values[reg] = v
	if reg == RegPhyControl && s.phy != nil {
		s.phyCommand(v)
	}
}

func (s *stubRegisters) writesTo(reg Register) []uint32 {
	var out []uint32
	for _, w := range s.writes {
		if w.reg == reg {
			out = append(out, w.value)
		}
	}
	return out
}

func (s *stubRegisters) phyCommand(v uint32) {
	addr := uint8((v & PhyControlRegAddr) >> PhyControlRegAddrShift)
	switch {
	case v&PhyControlRdReg != 0:
		s.phyResult = PhyControlReadDone | uint32(s.phy.get(addr))<<PhyControlReadDataShift | uint32(addr)<<PhyControlRegAddrShift
	case v&PhyControlWrReg != 0:
		s.phy.set(addr, uint8(v&PhyControlWriteData))
		s.phyResult = v &^ PhyControlWrReg
	default:
		return
	}
	if s.phy.never {
		s.phyPending = -1
		return
	}
	s.phyPending = s.phy.latency
}

// stubPHY is a PHY register file with paged registers 8-15.
type stubPHY struct {
	base    [8]uint8
	paged   map[[3]uint8]uint8 // page, port, register
	latency int
	never   bool
}

func newStubPHY(latency int) *stubPHY {
	return &stubPHY{paged: make(map[[3]uint8]uint8), latency: latency}
}

func (p *stubPHY) key(addr uint8) [3]uint8 {
	sel := p.base[PhyRegPageSelect]
	return [3]uint8{sel >> PhyPageShift, sel & 0xF, addr - PhyRegPaged0}
}

func (p *stubPHY) get(addr uint8) uint8 {
	if addr < PhyRegPaged0 {
		return p.base[addr]
	}
	return p.paged[p.key(addr)]
}

func (p *stubPHY) set(addr, data uint8) {
	if addr < PhyRegPaged0 {
		p.base[addr] = data
		return
	}
	p.paged[p.key(addr)] = data
}

func newPHYRegisters(latency int) (*stubRegisters, *stubPHY) {
	regs := newStubRegisters()
	regs.phy = newStubPHY(latency)
	return regs, regs.phy
}

type countingClock struct {
	ticks int
}

func (c *countingClock) Tick() {
	c.ticks++
}

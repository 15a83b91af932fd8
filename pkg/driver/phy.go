package driver

import "fmt"

// PHY is indirect access to the PHY register file through PhyControl.
// Ports and Enhanced are only meaningful after Discover.
type PHY struct {
	regs     Registers
	waiter   *Waiter
	ticks    uint32
	ports    uint8
	enhanced bool
}

// NewPHY creates PHY access bounded by ticks polls per handshake
func NewPHY(regs Registers, waiter *Waiter, ticks uint32) *PHY {
	return &PHY{regs: regs, waiter: waiter, ticks: ticks}
}

// Read returns PHY register addr
func (p *PHY) Read(addr uint8) (uint8, error) {
	p.regs.Write(RegPhyControl, PhyControlRead(addr))
	if _, err := p.waiter.WaitSet(fmt.Sprintf("PHY register %d read", addr),
		RegPhyControl, PhyControlReadDone, p.ticks); err != nil {
		return 0, err
	}
	return PhyControlData(p.regs.Read(RegPhyControl)), nil
}

// Write stores data into PHY register addr
func (p *PHY) Write(addr, data uint8) error {
	p.regs.Write(RegPhyControl, PhyControlWrite(addr, data))
	_, err := p.waiter.WaitClear(fmt.Sprintf("PHY register %d write", addr),
		RegPhyControl, PhyControlWrReg, p.ticks)
	return err
}

// Update clears then sets bits of a PHY register and returns the value
// that was read before the change.
func (p *PHY) Update(addr, clear, set uint8) (uint8, error) {
	v, err := p.Read(addr)
	if err != nil {
		return 0, err
	}
	if err := p.Write(addr, v&^clear|set); err != nil {
		return v, err
	}
	return v, nil
}

// Discover reads the port count and register map type from PHY register 2.
func (p *PHY) Discover() (ports uint8, enhanced bool, err error) {
	v, err := p.Read(PhyRegPorts)
	if err != nil {
		return 0, false, err
	}
	p.ports = v & PhyTotalPortsMask
	p.enhanced = v>>PhyExtendedShift == PhyExtendedEnhanced
	return p.ports, p.enhanced, nil
}

// Ports returns the total port count found by Discover
func (p *PHY) Ports() uint8 {
	return p.ports
}

// Enhanced reports whether the PHY has the paged 1394a register map
func (p *PHY) Enhanced() bool {
	return p.enhanced
}

// SelectPage points the paged registers at (page, port). Selecting a page
// on a PHY without the enhanced map, a port at or above the port count or a
// page at or above 7 is a contract violation.
func (p *PHY) SelectPage(page PhyPage, port uint8) error {
	if !p.enhanced {
		return NewError(StatusContractViolation, "page select on a PHY without enhanced register map")
	}
	if port >= p.ports || port >= PhyMaxPorts {
		return NewError(StatusContractViolation,
			fmt.Sprintf("bad port %d, PHY has %d ports", port, p.ports))
	}
	if uint8(page) >= PhyMaxPage {
		return NewError(StatusContractViolation, fmt.Sprintf("bad page %d", page))
	}
	return p.Write(PhyRegPageSelect, uint8(page)<<PhyPageShift|port)
}

// ReadPaged reads register reg (0-7) of the given page and port
func (p *PHY) ReadPaged(page PhyPage, port, reg uint8) (uint8, error) {
	if err := p.SelectPage(page, port); err != nil {
		return 0, err
	}
	return p.Read(PhyRegPaged0 + reg&7)
}

// WritePaged writes register reg (0-7) of the given page and port
func (p *PHY) WritePaged(page PhyPage, port, reg, data uint8) error {
	if err := p.SelectPage(page, port); err != nil {
		return err
	}
	return p.Write(PhyRegPaged0+reg&7, data)
}

// PortStatus reads the status register of a port
func (p *PHY) PortStatus(port uint8) (PortStatus, error) {
	v, err := p.ReadPaged(PhyPagePortStatus, port, 0)
	return PortStatus(v), err
}

// EnablePort clears the disabled bit of a port. It reports whether the port
// was disabled before the call.
func (p *PHY) EnablePort(port uint8) (bool, error) {
	status, err := p.PortStatus(port)
	if err != nil {
		return false, err
	}
	if status&PortDisabled == 0 {
		return false, nil
	}
	// The page is still selected from the status read.
	if err := p.Write(PhyRegPaged0, uint8(status&^PortDisabled)); err != nil {
		return true, err
	}
	return true, nil
}

// ClearContender stops the node from bidding for bus manager.
func (p *PHY) ClearContender() (uint8, error) {
	return p.Update(PhyRegLinkContender, PhyContender, 0)
}

// ForceBusReset sets the initiate-bus-reset bit.
func (p *PHY) ForceBusReset() error {
	_, err := p.Update(PhyRegReset, 0, PhyResetIBR)
	return err
}

// Connected reports whether the port has a peer attached
func (s PortStatus) Connected() bool { return s&PortConnected != 0 }

// Disabled reports whether the port is disabled
func (s PortStatus) Disabled() bool { return s&PortDisabled != 0 }

// Child reports whether the peer on the port is a child node
func (s PortStatus) Child() bool { return s&PortChild != 0 }

package ohci

import (
	"fmt"

	"github.com/emergingrobotics/go-ohci/pkg/configrom"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// Version is the decoded Version register
type Version struct {
	Raw      uint32
	GUIDROM  bool
	Version  uint8
	Revision uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%02x", v.Version, v.Revision)
}

// Supported reports whether the controller implements OHCI 1.10 or later
func (v Version) Supported() bool {
	if v.Version != driver.MinSupportedVersion {
		return v.Version > driver.MinSupportedVersion
	}
	return v.Revision >= driver.MinSupportedRevision
}

// DecodeVersion splits the Version register into its fields
func DecodeVersion(raw uint32) Version {
	return Version{
		Raw:      raw,
		GUIDROM:  raw&driver.VersionGUIDROM != 0,
		Version:  uint8((raw & driver.VersionVersionMask) >> driver.VersionVersionShift),
		Revision: uint8(raw & driver.VersionRevisionMask),
	}
}

// Initialize brings the controller from any state to an enabled link with
// the Configuration ROM published. It runs at most once per Controller; a
// failure leaves State at the last step reached and the Controller must be
// discarded.
func (c *Controller) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.attempted {
		return ErrAlreadyInitialized
	}
	c.attempted = true

	steps := []struct {
		name string
		run  func() error
		next State
	}{
		{"check version", c.checkVersion, StateUnreset},
		{"soft reset", c.softReset, StateSoftReset},
		{"power up", c.powerUp, StatePowerUp},
		{"discover phy", c.discoverPHY, StatePhyDiscovered},
		{"enable ports", c.enablePorts, StatePortsEnabled},
		{"arm filters", c.armLink, StateFiltersArmed},
		{"load configuration rom", c.loadROM, StateConfigROMLoaded},
		{"enable link", c.enableLink, StateLinkEnabled},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			c.log.Error(err, "initialization failed", "step", step.name, "state", c.state)
			return err
		}
		c.state = step.next
	}

	c.log.Info("controller up", "guid", fmt.Sprintf("%016x", c.GUID()), "ports", c.phy.Ports())
	return nil
}

func (c *Controller) checkVersion() error {
	raw := c.regs.Read(driver.RegVersion)
	if raw == 0xFFFFFFFF {
		return driver.NewError(driver.StatusInvalidDevice, "version register reads all ones")
	}

	c.version = DecodeVersion(raw)
	c.log.Info("OHCI controller", "version", c.version.String(), "guidROM", c.version.GUIDROM,
		"vendor", driver.Hex(c.regs.Read(driver.RegVendorID)))
	if !c.version.Supported() {
		return driver.NewError(driver.StatusUnsupportedVersion,
			fmt.Sprintf("OHCI %s, need 1.10 or later", c.version))
	}
	return nil
}

func (c *Controller) softReset() error {
	c.regs.Write(driver.RegHCControlSet, driver.HCControlSoftReset)
	polls, err := c.waiter.WaitClear("HCControl.softReset", driver.RegHCControlSet,
		driver.HCControlSoftReset, c.opts.ResetTicks)
	if err != nil {
		return err
	}
	c.log.V(1).Info("soft reset complete", "polls", polls)
	return nil
}

func (c *Controller) powerUp() error {
	c.regs.Write(driver.RegHCControlClear, driver.HCControlLinkEnable)
	if _, err := c.waiter.WaitClear("HCControl.linkEnable", driver.RegHCControlSet,
		driver.HCControlLinkEnable, c.opts.MiscTicks); err != nil {
		return err
	}

	// Byte order is handled when the ROM is copied.
	c.regs.Write(driver.RegHCControlClear, driver.HCControlNoByteSwapData|driver.HCControlAckTardyEnable)

	if c.opts.PostedWrites {
		c.regs.Write(driver.RegHCControlSet, driver.HCControlPostedWriteEnable)
		c.postedWrites = true
		c.log.Info("posted writes enabled")
	} else {
		c.regs.Write(driver.RegHCControlClear, driver.HCControlPostedWriteEnable)
	}

	c.regs.Write(driver.RegHCControlSet, driver.HCControlLPS)
	_, err := c.waiter.WaitSet("HCControl.LPS", driver.RegHCControlSet, driver.HCControlLPS, c.opts.MiscTicks)
	return err
}

func (c *Controller) discoverPHY() error {
	old, err := c.phy.ClearContender()
	if err != nil {
		return err
	}
	c.log.V(1).Info("phy contender cleared", "reg4", fmt.Sprintf("%#02x", old))

	ports, enhanced, err := c.phy.Discover()
	if err != nil {
		return err
	}
	c.log.Info("phy", "ports", ports, "enhanced", enhanced)
	return nil
}

func (c *Controller) enablePorts() error {
	if c.phy.Enhanced() {
		for port := uint8(0); port < c.phy.Ports(); port++ {
			wasDisabled, err := c.phy.EnablePort(port)
			if err != nil {
				return err
			}
			status, err := c.phy.PortStatus(port)
			if err != nil {
				return err
			}
			c.log.V(1).Info("port", "port", port, "wasDisabled", wasDisabled,
				"connected", status.Connected(), "child", status.Child())
		}
	}

	if c.regs.Read(driver.RegHCControlSet)&driver.HCControlProgramPhyEnable != 0 {
		c.regs.Write(driver.RegHCControlSet, driver.HCControlAPhyEnhanceEnable)
		c.log.V(1).Info("1394a enhancements enabled")
	} else {
		c.log.V(1).Info("1394a enhancements configured by platform")
	}
	return nil
}

func (c *Controller) armLink() error {
	c.regs.Write(driver.RegLinkControlClear, 0xFFFFFFFF)
	c.programFilters()

	c.regs.Write(driver.RegPhyUpperBound, driver.DefaultPhyUpperBound)
	if c.regs.Read(driver.RegPhyUpperBound) == 0 {
		c.log.V(1).Info("PhyUpperBound not implemented")
	}

	c.selfIDBuf.SetWord(0, driver.SelfIDSentinel)
	c.regs.Write(driver.RegSelfIDBuffer, c.selfIDBuf.BusAddr)
	c.regs.Write(driver.RegLinkControlSet, driver.LinkControlRcvSelfID)
	c.log.V(1).Info("SelfID reception armed", "buffer", driver.Hex(c.selfIDBuf.BusAddr),
		"generation", c.Generation())

	c.regs.Write(driver.RegATRetries, driver.DefaultATRetries)

	if c.regs.Read(driver.RegHCControlSet)&driver.HCControlLinkEnable != 0 {
		c.log.Info("link already enabled before ROM load")
	}
	return nil
}

func (c *Controller) loadROM() error {
	rom, err := configrom.Build(configrom.ReadBusInfo(c.regs), *c.opts.Identity, c.opts.Boot)
	if err != nil {
		return err
	}
	if err := configrom.Load(c.regs, c.arena, c.romBuf.BusAddr, rom, c.log); err != nil {
		return err
	}
	c.rom = rom
	return nil
}

func (c *Controller) enableLink() error {
	c.regs.Write(driver.RegHCControlSet, driver.HCControlLinkEnable)
	_, err := c.waiter.WaitSet("HCControl.linkEnable", driver.RegHCControlSet,
		driver.HCControlLinkEnable, c.opts.MiscTicks)
	return err
}

// programFilters writes the retained filters. Both registers are cleared
// first so that bits absent from the filter are dropped.
func (c *Controller) programFilters() {
	f := c.filter
	c.regs.Write(driver.RegAsReqFilterHiClr, 0xFFFFFFFF)
	c.regs.Write(driver.RegAsReqFilterLoClr, 0xFFFFFFFF)
	c.regs.Write(driver.RegPhyReqFilterHiClr, 0xFFFFFFFF)
	c.regs.Write(driver.RegPhyReqFilterLoClr, 0xFFFFFFFF)
	c.regs.Write(driver.RegAsReqFilterHiSet, uint32(f.Async>>32))
	c.regs.Write(driver.RegAsReqFilterLoSet, uint32(f.Async))
	c.regs.Write(driver.RegPhyReqFilterHiSet, uint32(f.Physical>>32))
	c.regs.Write(driver.RegPhyReqFilterLoSet, uint32(f.Physical))
}

// readFilters reads the filters back from the controller
func (c *Controller) readFilters() AccessFilter {
	return AccessFilter{
		Async: uint64(c.regs.Read(driver.RegAsReqFilterHiSet))<<32 |
			uint64(c.regs.Read(driver.RegAsReqFilterLoSet)),
		Physical: uint64(c.regs.Read(driver.RegPhyReqFilterHiSet))<<32 |
			uint64(c.regs.Read(driver.RegPhyReqFilterLoSet)),
	}
}

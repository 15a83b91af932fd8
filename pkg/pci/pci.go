// Package pci finds IEEE 1394 OHCI controllers on the PCI bus and maps
// their register file.
package pci

import (
	"errors"
	"fmt"
	"strings"
)

type Class uint32
type Vendor uint16

// ClassOHCI is serial bus controller, FireWire, OHCI programming interface
const ClassOHCI Class = 0x0c0010

// Errors for device discovery
var (
	ErrNoDevices  = errors.New("no OHCI controllers found")
	ErrBadAddress = errors.New("malformed PCI address")
)

type Address struct {
	Domain   uint
	Bus      uint
	Slot     uint
	Function uint
}

func (p Address) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%1x", p.Domain, p.Bus, p.Slot, p.Function)
}

// ParseAddress parses the dddd:bb:ss.f form used under /sys/bus/pci/devices
func ParseAddress(s string) (Address, error) {
	var a Address
	n, err := fmt.Sscanf(s, "%04x:%02x:%02x.%1x", &a.Domain, &a.Bus, &a.Slot, &a.Function)
	if err != nil || n != 4 || !strings.EqualFold(a.String(), s) {
		return Address{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	return a, nil
}

// Device is one PCI function found by a Reader
type Device struct {
	Address         Address
	Class           Class
	Vendor          Vendor
	Device          uint16
	SubsystemVendor uint16
	SubsystemDevice uint16
	Revision        uint8
	Entry           Entry
}

func (d Device) String() string {
	return fmt.Sprintf("%s %04x:%04x %s", d.Address, uint16(d.Vendor), d.Device, d.Entry.Name)
}

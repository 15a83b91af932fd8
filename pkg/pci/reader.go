//go:build linux

package pci

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"
	"github.com/prometheus/procfs/sysfs"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// Reader lists OHCI controllers through sysfs
type Reader struct {
	log   logr.Logger
	fs    sysfs.FS
	mount string
}

func NewReader(log logr.Logger) (*Reader, error) {
	return NewReaderWithMount(log, sysfs.DefaultMountPoint)
}

// NewReaderWithMount reads a sysfs tree mounted at mountPoint
func NewReaderWithMount(log logr.Logger, mountPoint string) (*Reader, error) {
	fs, err := sysfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs: %w", err)
	}

	return &Reader{
		log:   log,
		fs:    fs,
		mount: mountPoint,
	}, nil
}

// Read returns every function whose class is ClassOHCI, ordered by address
func (r *Reader) Read() ([]Device, error) {
	devices, err := r.fs.PciDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to read pci devices: %w", err)
	}

	var found []Device
	for _, device := range devices {
		if device.Class != uint32(ClassOHCI) {
			r.log.V(3).Info(
				"Skipping device, class not matching",
				"device", device.Name(), "expected class",
				ClassOHCI, "found class", device.Class,
			)
			continue
		}

		d := Device{
			Address: Address{
				Domain:   uint(device.Location.Segment),
				Bus:      uint(device.Location.Bus),
				Slot:     uint(device.Location.Device),
				Function: uint(device.Location.Function),
			},
			Class:           Class(device.Class),
			Vendor:          Vendor(device.Vendor),
			Device:          uint16(device.Device),
			SubsystemVendor: uint16(device.SubsystemVendor),
			SubsystemDevice: uint16(device.SubsystemDevice),
			Revision:        uint8(device.Revision),
		}
		d.Entry = Lookup(d.Vendor, d.Device)

		r.log.V(1).Info("Found OHCI controller", "device", device.Name(), "name", d.Entry.Name,
			"quirks", d.Entry.Quirks)
		found = append(found, d)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Address.String() < found[j].Address.String()
	})
	return found, nil
}

// Find returns the controller at addr
func (r *Reader) Find(addr Address) (Device, error) {
	devices, err := r.Read()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Address == addr {
			return d, nil
		}
	}
	return Device{}, driver.NewError(driver.StatusNotFound, fmt.Sprintf("no OHCI controller at %s", addr))
}

// First returns the first controller found
func (r *Reader) First() (Device, error) {
	devices, err := r.Read()
	if err != nil {
		return Device{}, err
	}
	if len(devices) == 0 {
		return Device{}, ErrNoDevices
	}
	return devices[0], nil
}

// ResourcePath returns the sysfs file exposing BAR0 of d
func (r *Reader) ResourcePath(d Device) string {
	return filepath.Join(r.mount, "bus", "pci", "devices", d.Address.String(), "resource0")
}

// Map maps the register file behind BAR0 of d
func (r *Reader) Map(d Device) (*driver.MappedRegisters, error) {
	regs, err := driver.MapRegisters(r.ResourcePath(d))
	if err != nil {
		return nil, err
	}
	r.log.V(1).Info("Mapped register file", "device", d.Address.String(), "path", regs.Path())
	return regs, nil
}

//go:build !linux

package pci

import (
	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

type Reader struct {
	log logr.Logger
}

func NewReader(log logr.Logger) (*Reader, error) {
	log.V(1).Info("NOT SUPPORTED OS")
	return &Reader{log: log}, nil
}

func NewReaderWithMount(log logr.Logger, _ string) (*Reader, error) {
	return NewReader(log)
}

func (r *Reader) Read() ([]Device, error) {
	r.log.V(1).Info("NOT SUPPORTED OS")
	return nil, nil
}

func (r *Reader) Find(addr Address) (Device, error) {
	return Device{}, driver.NewError(driver.StatusNotFound, "PCI discovery needs linux")
}

func (r *Reader) First() (Device, error) {
	return Device{}, ErrNoDevices
}

func (r *Reader) ResourcePath(Device) string {
	return ""
}

func (r *Reader) Map(Device) (*driver.MappedRegisters, error) {
	return nil, driver.NewError(driver.StatusNotFound, "PCI discovery needs linux")
}

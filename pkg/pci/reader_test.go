//go:build unit && linux

package pci_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
	"github.com/emergingrobotics/go-ohci/pkg/pci"
	"github.com/emergingrobotics/go-ohci/testutil"
)

func registerWindow(version uint32) []byte {
	b := make([]byte, driver.RegisterFileSize)
	binary.LittleEndian.PutUint32(b[driver.RegVersion:], version)
	return b
}

func fakeBus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	testutil.WriteFakePCIDevice(t, root, "0000:03:00.0", testutil.PCIDevice{
		Class:           "0x0c0010",
		Vendor:          "0x104c",
		Device:          "0x8023",
		SubsystemVendor: "0x104c",
		SubsystemDevice: "0x8023",
		Revision:        "0x0",
		Resource0:       registerWindow(0x01010010),
	})
	testutil.WriteFakePCIDevice(t, root, "0000:05:01.0", testutil.PCIDevice{
		Class:           "0x0c0010",
		Vendor:          "0x1033",
		Device:          "0x00f2",
		SubsystemVendor: "0x1033",
		SubsystemDevice: "0x0001",
		Revision:        "0x1",
	})
	// USB controller, same class group
	testutil.WriteFakePCIDevice(t, root, "0000:00:14.0", testutil.PCIDevice{
		Class:           "0x0c0330",
		Vendor:          "0x8086",
		Device:          "0xa36d",
		SubsystemVendor: "0x8086",
		SubsystemDevice: "0x0001",
		Revision:        "0x10",
	})
	return root
}

func TestReaderFiltersOHCI(t *testing.T) {
	r, err := pci.NewReaderWithMount(testutil.Logger(t), fakeBus(t))
	testutil.AssertNoError(t, err, "NewReaderWithMount")

	devices, err := r.Read()
	testutil.AssertNoError(t, err, "Read")
	if len(devices) != 2 {
		t.Fatalf("expected 2 controllers, got %d: %+v", len(devices), devices)
	}

	byAddr := map[string]pci.Device{}
	for _, d := range devices {
		byAddr[d.Address.String()] = d
	}
	ti := byAddr["0000:03:00.0"]
	testutil.AssertEqual(t, ti.Vendor, pci.Vendor(0x104c), "TI vendor")
	testutil.AssertEqual(t, ti.Device, uint16(0x8023), "TI device")
	testutil.AssertEqual(t, ti.Entry.Name, "Texas Instruments IEEE1394a-2000 OHCI PHY/Link-Layer Ctrlr", "TI name")

	nec := byAddr["0000:05:01.0"]
	testutil.AssertEqual(t, nec.Entry.Name, "NEC Electronics Unknown Device", "NEC name")
	testutil.AssertEqual(t, nec.Revision, uint8(1), "NEC revision")
}

func TestReaderFind(t *testing.T) {
	r, err := pci.NewReaderWithMount(testutil.Logger(t), fakeBus(t))
	testutil.AssertNoError(t, err, "NewReaderWithMount")

	addr, err := pci.ParseAddress("0000:05:01.0")
	testutil.AssertNoError(t, err, "ParseAddress")
	d, err := r.Find(addr)
	testutil.AssertNoError(t, err, "Find")
	testutil.AssertEqual(t, d.Vendor, pci.Vendor(0x1033), "vendor")

	_, err = r.Find(pci.Address{Bus: 0x42})
	testutil.AssertStatus(t, err, driver.StatusNotFound, "Find missing")
}

func TestReaderOrdersByAddress(t *testing.T) {
	root := fakeBus(t)
	testutil.WriteFakePCIDevice(t, root, "0000:01:00.0", testutil.PCIDevice{
		Class: "0x0c0010", Vendor: "0x1033", Device: "0x00e7",
		SubsystemVendor: "0x1033", SubsystemDevice: "0x0001", Revision: "0x1",
	})
	r, err := pci.NewReaderWithMount(testutil.Logger(t), root)
	testutil.AssertNoError(t, err, "NewReaderWithMount")

	for i := 0; i < 5; i++ {
		devices, err := r.Read()
		testutil.AssertNoError(t, err, "Read")
		var got []string
		for _, d := range devices {
			got = append(got, d.Address.String())
		}
		want := []string{"0000:01:00.0", "0000:03:00.0", "0000:05:01.0"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
			t.Fatalf("Read order = %v, expected %v", got, want)
		}

		first, err := r.First()
		testutil.AssertNoError(t, err, "First")
		testutil.AssertEqual(t, first.Address.String(), "0000:01:00.0", "First")
	}
}

func TestReaderFirstEmpty(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFakePCIDevice(t, root, "0000:00:14.0", testutil.PCIDevice{
		Class: "0x0c0330", Vendor: "0x8086", Device: "0xa36d",
		SubsystemVendor: "0x8086", SubsystemDevice: "0x0001", Revision: "0x10",
	})
	r, err := pci.NewReaderWithMount(testutil.Logger(t), root)
	testutil.AssertNoError(t, err, "NewReaderWithMount")

	if _, err := r.First(); !errors.Is(err, pci.ErrNoDevices) {
		t.Errorf("First = %v, expected ErrNoDevices", err)
	}
}

func TestReaderMap(t *testing.T) {
	r, err := pci.NewReaderWithMount(testutil.Logger(t), fakeBus(t))
	testutil.AssertNoError(t, err, "NewReaderWithMount")

	ti, err := r.Find(pci.Address{Bus: 3})
	testutil.AssertNoError(t, err, "Find")
	regs, err := r.Map(ti)
	testutil.AssertNoError(t, err, "Map")
	defer regs.Close()

	testutil.AssertEqual(t, regs.Read(driver.RegVersion), uint32(0x01010010), "Version")

	nec, err := r.Find(pci.Address{Bus: 5, Slot: 1})
	testutil.AssertNoError(t, err, "Find")
	_, err = r.Map(nec)
	testutil.AssertStatus(t, err, driver.StatusNotFound, "Map without resource0")
}

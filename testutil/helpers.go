package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// SkipIfNoController skips the test unless OHCI_DEVICE names a PCI address
// with a register window, and returns the address.
func SkipIfNoController(t *testing.T) string {
	t.Helper()

	addr := os.Getenv("OHCI_DEVICE")
	if addr == "" {
		t.Skip("OHCI_DEVICE not set")
	}
	if _, err := os.Stat(filepath.Join("/sys/bus/pci/devices", addr, "resource0")); err != nil {
		t.Skipf("No OHCI controller at %s", addr)
	}
	return addr
}

// Logger returns a logger that writes through t.Log
func Logger(t *testing.T) logr.Logger {
	t.Helper()
	return testr.NewWithOptions(t, testr.Options{Verbosity: 2})
}

// TempFile creates a temporary file with given content
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, content, 0644)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

// PCIDevice lists the sysfs attribute files of a fake PCI function
type PCIDevice struct {
	Class           string
	Vendor          string
	Device          string
	SubsystemVendor string
	SubsystemDevice string
	Revision        string
	Resource0       []byte // register window, omitted when nil
}

// WriteFakePCIDevice lays out a PCI function under sysRoot the way sysfs
// does: attributes under devices/pci0000:00/<id> and a symlink from
// bus/pci/devices/<id>.
func WriteFakePCIDevice(t *testing.T, sysRoot, id string, d PCIDevice) string {
	t.Helper()

	parent := "pci0000:00"
	devDir := filepath.Join(sysRoot, "devices", parent, id)
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", devDir, err)
	}

	attrs := map[string]string{
		"class":            d.Class,
		"vendor":           d.Vendor,
		"device":           d.Device,
		"subsystem_vendor": d.SubsystemVendor,
		"subsystem_device": d.SubsystemDevice,
		"revision":         d.Revision,
	}
	for name, val := range attrs {
		if val == "" {
			t.Fatalf("missing required %s for %s", name, id)
		}
		path := filepath.Join(devDir, name)
		if err := os.WriteFile(path, []byte(val+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	if d.Resource0 != nil {
		if err := os.WriteFile(filepath.Join(devDir, "resource0"), d.Resource0, 0o600); err != nil {
			t.Fatalf("write resource0: %v", err)
		}
	}

	busDevicesDir := filepath.Join(sysRoot, "bus", "pci", "devices")
	if err := os.MkdirAll(busDevicesDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", busDevicesDir, err)
	}

	linkPath := filepath.Join(busDevicesDir, id)
	target := filepath.Join("..", "..", "..", "devices", parent, id)
	_ = os.Remove(linkPath)
	if err := os.Symlink(target, linkPath); err != nil {
		t.Fatalf("symlink %s -> %s: %v", linkPath, target, err)
	}
	return devDir
}

// AssertEqual fails if values are not equal
func AssertEqual(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

// AssertNoError fails if error is not nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError fails if error is nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertStatus fails unless err carries the given driver status
func AssertStatus(t *testing.T, err error, want driver.Status, msg string) {
	t.Helper()
	var drvErr *driver.Error
	if !errors.As(err, &drvErr) {
		t.Errorf("%s: expected %v, got %v", msg, want, err)
		return
	}
	if drvErr.Status != want {
		t.Errorf("%s: status %v, want %v (%v)", msg, drvErr.Status, want, err)
	}
}

// AssertWordsEqual compares quadlet slices
func AssertWordsEqual(t *testing.T, got, want []uint32, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: length mismatch: got %d, want %d", msg, len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s: mismatch at quadlet %d: got %#08x, want %#08x", msg, i, got[i], want[i])
			return
		}
	}
}

// Cleanup registers a cleanup function
func Cleanup(t *testing.T, fn func()) {
	t.Helper()
	t.Cleanup(fn)
}

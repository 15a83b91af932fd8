package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/emergingrobotics/go-ohci/pkg/configrom"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
	"github.com/emergingrobotics/go-ohci/pkg/pci"
)

// Version information (set by ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}

	cmd := args[0]
	args = args[1:]

	var err error
	switch cmd {
	case "scan":
		err = scanControllers(args, stdout, stderr)
	case "info":
		err = controllerInfo(args, stdout, stderr)
	case "regs":
		err = dumpRegisters(args, stdout, stderr)
	case "rom":
		err = buildROM(args, stdout, stderr)
	case "up":
		err = bringUp(args, stdout, stderr)
	case "version":
		printVersion(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", cmd)
		printUsage(stdout)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "OHCI FireWire controller tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ohcictl <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  scan              List OHCI controllers")
	fmt.Fprintln(w, "  info [address]    Show controller identification registers")
	fmt.Fprintln(w, "  regs [address]    Dump the register file")
	fmt.Fprintln(w, "  rom               Build a Configuration ROM image offline")
	fmt.Fprintln(w, "  up [address]      Bring the controller up and publish the ROM")
	fmt.Fprintln(w, "  version           Print version information")
	fmt.Fprintln(w, "  help              Show this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'ohcictl <command> -h' for the options of a command.")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ohcictl version %s\n", Version)
	fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Go version: %s\n", GoVersion)
}

// common holds the flags every hardware command takes
type common struct {
	sys       string
	verbosity int
}

func newFlags(name string, stderr io.Writer) (*flag.FlagSet, *common) {
	c := &common{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.sys, "sys", "/sys", "sysfs mount point")
	fs.IntVar(&c.verbosity, "v", 0, "log verbosity")
	return fs, c
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(w, prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// findController resolves the optional address argument, defaulting to the
// first controller found.
func findController(r *pci.Reader, args []string) (pci.Device, error) {
	if len(args) == 0 {
		return r.First()
	}
	addr, err := pci.ParseAddress(args[0])
	if err != nil {
		return pci.Device{}, err
	}
	return r.Find(addr)
}

func scanControllers(args []string, stdout, stderr io.Writer) error {
	fs, c := newFlags("scan", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := pci.NewReaderWithMount(newLogger(stderr, c.verbosity), c.sys)
	if err != nil {
		return err
	}
	devices, err := r.Read()
	if err != nil {
		return fmt.Errorf("scanning devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Fprintln(stdout, "No OHCI controllers found")
		return nil
	}

	fmt.Fprintf(stdout, "Found %d OHCI controller(s):\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(stdout, "  [%d] %s\n", i, d)
	}
	return nil
}

func controllerInfo(args []string, stdout, stderr io.Writer) error {
	fs, c := newFlags("info", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := pci.NewReaderWithMount(newLogger(stderr, c.verbosity), c.sys)
	if err != nil {
		return err
	}
	d, err := findController(r, fs.Args())
	if err != nil {
		return err
	}
	regs, err := r.Map(d)
	if err != nil {
		return err
	}
	defer regs.Close()

	version := regs.Read(driver.RegVersion)
	bus := configrom.ReadBusInfo(regs)
	count := regs.Read(driver.RegSelfIDCount)

	fmt.Fprintf(stdout, "Controller: %s\n", d)
	fmt.Fprintf(stdout, "  OHCI Version: %d.%02x\n",
		(version&driver.VersionVersionMask)>>driver.VersionVersionShift, version&driver.VersionRevisionMask)
	fmt.Fprintf(stdout, "  GUID ROM: %v\n", version&driver.VersionGUIDROM != 0)
	fmt.Fprintf(stdout, "  Vendor ID: %s\n", driver.Hex(regs.Read(driver.RegVendorID)))
	fmt.Fprintf(stdout, "  GUID: %016x\n", bus.GUID)
	fmt.Fprintf(stdout, "  Bus ID: %s\n", driver.Hex(bus.BusID))
	fmt.Fprintf(stdout, "  Bus Options: %s\n", driver.Hex(bus.BusOptions))
	fmt.Fprintf(stdout, "  HCControl: %s\n", driver.Hex(regs.Read(driver.RegHCControlSet)))
	fmt.Fprintf(stdout, "  NodeID: %s\n", driver.Hex(regs.Read(driver.RegNodeID)))
	fmt.Fprintf(stdout, "  Generation: %d\n",
		(count&driver.SelfIDCountGenerationMask)>>driver.SelfIDCountGenerationShift)
	return nil
}

func dumpRegisters(args []string, stdout, stderr io.Writer) error {
	fs, c := newFlags("regs", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := pci.NewReaderWithMount(newLogger(stderr, c.verbosity), c.sys)
	if err != nil {
		return err
	}
	d, err := findController(r, fs.Args())
	if err != nil {
		return err
	}
	regs, err := r.Map(d)
	if err != nil {
		return err
	}
	defer regs.Close()

	for _, reg := range driver.DumpRegisters() {
		fmt.Fprintf(stdout, "  %#03x %-28s %s\n", uint32(reg), reg, driver.Hex(regs.Read(reg)))
	}
	return nil
}

// hexFlag is a uint flag that accepts any Go integer literal
type hexFlag uint64

func (h *hexFlag) String() string { return fmt.Sprintf("%#x", uint64(*h)) }

func (h *hexFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return err
	}
	*h = hexFlag(v)
	return nil
}

func buildROM(args []string, stdout, stderr io.Writer) error {
	id := configrom.DefaultIdentity()
	guid := hexFlag(0)
	busOptions := hexFlag(0)
	vendor := hexFlag(id.VendorID)
	model := hexFlag(id.ModelID)
	descriptor := hexFlag(0)
	entry := hexFlag(0)

	fs := flag.NewFlagSet("rom", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&guid, "guid", "64-bit GUID")
	fs.Var(&busOptions, "bus-options", "BusOptions register value")
	fs.Var(&vendor, "vendor", "24-bit vendor id")
	fs.Var(&model, "model", "24-bit model id")
	fs.StringVar(&id.Text, "text", id.Text, "textual descriptor")
	fs.Var(&descriptor, "descriptor", "boot descriptor pointer address")
	fs.Var(&entry, "entry", "entry point mailbox address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id.VendorID, id.ModelID = uint32(vendor), uint32(model)

	rom, err := configrom.Build(configrom.BusInfo{
		BusID:      configrom.BusName,
		BusOptions: uint32(busOptions),
		GUID:       uint64(guid),
	}, id, configrom.BootInfo{DescriptorPointer: uint32(descriptor), EntryPoint: uint32(entry)})
	if err != nil {
		return err
	}

	used := rom.Used()
	for i := 0; i < used; i++ {
		fmt.Fprintf(stdout, "%04x: %08x\n", 0x400+4*i, rom[i])
	}

	img, err := configrom.ParseWords(rom[:used])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "vendor %06x model %06x text %q bootable %v\n",
		img.VendorID, img.ModelID, img.Text, img.Bootable(id))
	return nil
}

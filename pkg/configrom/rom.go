// Package configrom builds, loads and parses the IEEE 1212 Configuration ROM
// that a node publishes at CSR offset 0x400.
//
// A ROM is kept as host-order quadlets. The controller fetches it as a
// big-endian quadlet stream, so Load and Bytes swap every word on the way out.
package configrom

import (
	"encoding/binary"
	"fmt"

	"github.com/emergingrobotics/go-ohci/pkg/crc16"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// ROM geometry
const (
	Words     = 1024
	SizeBytes = Words * 4
	Alignment = 1024
)

// BusName is "1394" in ASCII, the bus name quadlet of every 1394 node.
const BusName uint32 = 0x31333934

const busInfoLength = 4

// Directory entry types (top two bits of an entry)
const (
	TypeImmediate uint8 = 0
	TypeOffset    uint8 = 1
	TypeLeaf      uint8 = 2
	TypeDirectory uint8 = 3
)

// Directory entry keys (low six bits of the entry's top byte)
const (
	KeyTextualDescriptor uint8 = 0x01
	KeyVendor            uint8 = 0x03
	KeyModel             uint8 = 0x17
	KeyBootInfo          uint8 = 0x38
)

// Identity of this boot chain as advertised in the root directory.
const (
	DefaultVendorID uint32 = 0xCAFFEE
	DefaultModelID  uint32 = 0x000001
	DefaultText            = "Morbo - OHCI v1"
)

// MaxTextLength bounds the textual descriptor.
const MaxTextLength = 255

// Entry packs a directory entry.
func Entry(typ, key uint8, value uint32) uint32 {
	return uint32(typ&3)<<30 | uint32(key&0x3F)<<24 | value&0xFFFFFF
}

// Identity is the vendor, model and text advertised in the root directory
type Identity struct {
	VendorID uint32
	ModelID  uint32
	Text     string
}

// DefaultIdentity returns the boot chain identity
func DefaultIdentity() Identity {
	return Identity{VendorID: DefaultVendorID, ModelID: DefaultModelID, Text: DefaultText}
}

// BootInfo holds the two boot-chain addresses published in the info leaf.
// DescriptorPointer is where the boot descriptor pointer lives, EntryPoint
// is where the next stage stores its entry point.
type BootInfo struct {
	DescriptorPointer uint32
	EntryPoint        uint32
}

// BusInfo is the controller-supplied part of the bus info block
type BusInfo struct {
	BusID      uint32
	BusOptions uint32
	GUID       uint64
}

// ReadBusInfo reads the bus info block inputs from the controller
func ReadBusInfo(regs driver.Registers) BusInfo {
	return BusInfo{
		BusID:      regs.Read(driver.RegBusID),
		BusOptions: regs.Read(driver.RegBusOptions),
		GUID:       uint64(regs.Read(driver.RegGUIDHi))<<32 | uint64(regs.Read(driver.RegGUIDLo)),
	}
}

// ROM is a Configuration ROM image in host order
type ROM [Words]uint32

// Bytes returns the image as the big-endian stream a remote node reads
func (r *ROM) Bytes() []byte {
	out := make([]byte, SizeBytes)
	for i, w := range r {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// Used returns the number of quadlets before the zero padding
func (r *ROM) Used() int {
	n := Words
	for n > 0 && r[n-1] == 0 {
		n--
	}
	return n
}

// writer emits blocks. Every block's header covers exactly the words
// written after it, and its CRC is sealed before the next block starts.
type writer struct {
	rom *ROM
	pos int
}

func (w *writer) put(v uint32) {
	w.rom[w.pos] = v
	w.pos++
}

// open reserves a block header and returns its index
func (w *writer) open() int {
	hdr := w.pos
	w.put(0)
	return hdr
}

// seal fills a directory or leaf header
func (w *writer) seal(hdr int) {
	body := w.rom[hdr+1 : w.pos]
	w.rom[hdr] = uint32(len(body))<<16 | uint32(crc16.Checksum(body))
}

// Build assembles the bus info block, the root directory, the text leaf and
// the boot info leaf. The bus options capability bits (IRMC, CMC, ISC, BMC)
// are always cleared.
func Build(bus BusInfo, id Identity, boot BootInfo) (*ROM, error) {
	if id.VendorID > 0xFFFFFF || id.ModelID > 0xFFFFFF {
		return nil, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("vendor %#x or model %#x wider than 24 bits", id.VendorID, id.ModelID))
	}
	if len(id.Text) > MaxTextLength {
		return nil, driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("text descriptor is %d bytes, limit %d", len(id.Text), MaxTextLength))
	}

	rom := new(ROM)
	w := &writer{rom: rom}

	hdr := w.open()
	w.put(bus.BusID)
	w.put(bus.BusOptions &^ driver.BusOptionsCapabilityMask)
	w.put(uint32(bus.GUID >> 32))
	w.put(uint32(bus.GUID))
	rom[hdr] = busInfoLength<<24 | busInfoLength<<16 | uint32(crc16.Checksum(rom[hdr+1:w.pos]))

	text := textWords(id.Text)

	// Leaf offsets are relative to the entry that points at them.
	root := w.open()
	textLeaf := root + 5
	infoLeaf := textLeaf + 1 + 2 + len(text)
	w.put(Entry(TypeImmediate, KeyVendor, id.VendorID))
	w.put(Entry(TypeImmediate, KeyModel, id.ModelID))
	w.put(Entry(TypeLeaf, KeyTextualDescriptor, uint32(textLeaf-w.pos)))
	w.put(Entry(TypeLeaf, KeyBootInfo, uint32(infoLeaf-w.pos)))
	w.seal(root)

	leaf := w.open()
	w.put(0) // descriptor type 0, specifier id 0
	w.put(0) // minimal ASCII: width, character set and language 0
	for _, t := range text {
		w.put(t)
	}
	w.seal(leaf)

	leaf = w.open()
	w.put(boot.DescriptorPointer)
	w.put(boot.EntryPoint)
	w.seal(leaf)

	return rom, nil
}

// textWords packs s big-endian into quadlets with at least one NUL.
func textWords(s string) []uint32 {
	b := make([]byte, (len(s)+4)/4*4)
	copy(b, s)
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return words
}

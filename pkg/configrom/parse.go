package configrom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/emergingrobotics/go-ohci/pkg/crc16"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// Errors
var (
	ErrTruncated = errors.New("truncated configuration ROM")
	ErrBadCRC    = errors.New("configuration ROM CRC mismatch")
	ErrBadEntry  = errors.New("malformed directory entry")
)

// DirEntry is a decoded directory entry
type DirEntry struct {
	Type  uint8
	Key   uint8
	Value uint32
}

// Image is a parsed Configuration ROM
type Image struct {
	BusInfo    BusInfo
	Root       []DirEntry
	VendorID   uint32
	ModelID    uint32
	HasVendor  bool
	HasModel   bool
	Text       string
	Boot       *BootInfo
	QuadletLen int // quadlets covered by the bus info block and root blocks
}

// Bootable reports whether the node runs the boot chain identified by id
// and publishes its boot addresses.
func (img *Image) Bootable(id Identity) bool {
	return img.HasVendor && img.VendorID == id.VendorID &&
		img.HasModel && img.ModelID == id.ModelID &&
		img.Boot != nil
}

func invalid(cause error, format string, args ...any) error {
	return driver.NewErrorWithCause(driver.StatusInvalidImage, "parsing configuration ROM",
		fmt.Errorf("%w: "+format, append([]any{cause}, args...)...))
}

// Parse decodes a big-endian quadlet stream as read from CSR offset 0x400
func Parse(data []byte) (*Image, error) {
	if len(data)%4 != 0 {
		return nil, invalid(ErrTruncated, "%d bytes is not a whole number of quadlets", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(data[i*4:])
	}
	return ParseWords(words)
}

// ParseWords decodes host-order quadlets, checking every CRC it covers.
func ParseWords(words []uint32) (*Image, error) {
	if len(words) < 1+busInfoLength {
		return nil, invalid(ErrTruncated, "%d quadlets, bus info block needs %d", len(words), 1+busInfoLength)
	}

	infoLen := int(words[0] >> 24)
	crcLen := int(words[0] >> 16 & 0xFF)
	if infoLen < busInfoLength {
		return nil, invalid(ErrTruncated, "bus info length %d", infoLen)
	}
	if 1+crcLen > len(words) || 1+infoLen >= len(words) {
		return nil, invalid(ErrTruncated, "bus info block covers %d quadlets", crcLen)
	}
	if got := crc16.Checksum(words[1 : 1+crcLen]); got != uint16(words[0]) {
		return nil, invalid(ErrBadCRC, "bus info block stores %#04x, computed %#04x", uint16(words[0]), got)
	}

	img := &Image{
		BusInfo: BusInfo{
			BusID:      words[1],
			BusOptions: words[2],
			GUID:       uint64(words[3])<<32 | uint64(words[4]),
		},
	}

	rootAt := 1 + infoLen
	root, err := block(words, rootAt)
	if err != nil {
		return nil, err
	}
	end := rootAt + 1 + len(root)

	for i, w := range root {
		e := DirEntry{Type: uint8(w >> 30), Key: uint8(w >> 24 & 0x3F), Value: w & 0xFFFFFF}
		img.Root = append(img.Root, e)

		switch {
		case e.Type == TypeImmediate && e.Key == KeyVendor:
			img.VendorID, img.HasVendor = e.Value, true
		case e.Type == TypeImmediate && e.Key == KeyModel:
			img.ModelID, img.HasModel = e.Value, true
		case e.Type == TypeLeaf && (e.Key == KeyTextualDescriptor || e.Key == KeyBootInfo):
			at := rootAt + 1 + i + int(e.Value)
			leaf, err := block(words, at)
			if err != nil {
				return nil, err
			}
			end = max(end, at+1+len(leaf))
			if err := img.leaf(e.Key, leaf); err != nil {
				return nil, err
			}
		}
	}

	img.QuadletLen = end
	return img, nil
}

func (img *Image) leaf(key uint8, leaf []uint32) error {
	switch key {
	case KeyTextualDescriptor:
		if len(leaf) < 2 {
			return invalid(ErrBadEntry, "text leaf of %d quadlets", len(leaf))
		}
		b := make([]byte, 4*(len(leaf)-2))
		for i, w := range leaf[2:] {
			binary.BigEndian.PutUint32(b[i*4:], w)
		}
		if n := bytes.IndexByte(b, 0); n >= 0 {
			b = b[:n]
		}
		img.Text = string(b)
	case KeyBootInfo:
		if len(leaf) < 2 {
			return invalid(ErrBadEntry, "boot info leaf of %d quadlets", len(leaf))
		}
		img.Boot = &BootInfo{DescriptorPointer: leaf[0], EntryPoint: leaf[1]}
	}
	return nil
}

// block returns the body of the directory or leaf whose header is at index
// at, after checking its CRC.
func block(words []uint32, at int) ([]uint32, error) {
	if at <= 0 || at >= len(words) {
		return nil, invalid(ErrBadEntry, "block offset %d outside image", at)
	}
	n := int(words[at] >> 16)
	if at+1+n > len(words) {
		return nil, invalid(ErrTruncated, "block at %d claims %d quadlets", at, n)
	}
	body := words[at+1 : at+1+n]
	if got := crc16.Checksum(body); got != uint16(words[at]) {
		return nil, invalid(ErrBadCRC, "block at %d stores %#04x, computed %#04x", at, uint16(words[at]), got)
	}
	return body, nil
}

package driver

import (
	"encoding/binary"
	"fmt"
)

// Buffer is memory the controller reaches by a 32-bit bus address.
type Buffer struct {
	Bytes   []byte
	BusAddr uint32
}

// Words returns the buffer size in quadlets
func (b Buffer) Words() int {
	return len(b.Bytes) / 4
}

// Word reads quadlet i in host (little-endian) order, the order the
// controller uses for DMA writes with byte swapping enabled.
func (b Buffer) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(b.Bytes[i*4:])
}

// SetWord stores quadlet i in host order
func (b Buffer) SetWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(b.Bytes[i*4:], v)
}

// Aligned reports whether the bus address is a multiple of align
func (b Buffer) Aligned(align int) bool {
	return align <= 1 || b.BusAddr%uint32(align) == 0
}

// Arena allocates DMA buffers for one controller. Buffers live as long as
// the arena.
type Arena interface {
	// Alloc returns a zeroed buffer of size bytes whose bus address is a
	// multiple of align.
	Alloc(size, align int) (Buffer, error)
	// Window returns the CPU view of size bytes at a bus address inside a
	// buffer of this arena.
	Window(busAddr uint32, size int) ([]byte, error)
}

// windowIn resolves a bus address against a set of buffers
func windowIn(bufs []Buffer, busAddr uint32, size int) ([]byte, error) {
	for _, b := range bufs {
		if busAddr < b.BusAddr {
			continue
		}
		off := int(busAddr - b.BusAddr)
		if off+size <= len(b.Bytes) {
			return b.Bytes[off : off+size], nil
		}
	}
	return nil, NewError(StatusNotFound,
		fmt.Sprintf("bus address %#08x+%d is not inside an arena buffer", busAddr, size))
}

func validAlloc(size, align int) error {
	if size <= 0 {
		return NewError(StatusInvalidArgument, fmt.Sprintf("buffer size %d", size))
	}
	if align <= 0 || align&(align-1) != 0 {
		return NewError(StatusInvalidArgument, fmt.Sprintf("alignment %d is not a power of two", align))
	}
	return nil
}

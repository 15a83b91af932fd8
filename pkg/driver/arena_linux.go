//go:build linux

package driver

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	pagemapPresent = uint64(1) << 63
	pagemapPFNMask = uint64(1)<<55 - 1
)

// HostArena allocates locked anonymous pages and translates them to
// physical addresses through /proc/self/pagemap. The controller must sit
// behind an identity-mapped (or disabled) IOMMU, and the process needs
// CAP_SYS_ADMIN to see page frame numbers.
type HostArena struct {
	pagemap  int
	pageSize int
	bufs     []Buffer
	maps     [][]byte
}

// NewHostArena opens the pagemap of the current process
func NewHostArena() (*HostArena, error) {
	fd, err := unix.Open("/proc/self/pagemap", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return nil, StatusFromErrno(errno, "opening /proc/self/pagemap")
		}
		return nil, NewErrorWithCause(StatusDriverOperationFailed, "opening /proc/self/pagemap", err)
	}
	return &HostArena{pagemap: fd, pageSize: unix.Getpagesize()}, nil
}

// Alloc maps whole pages for the buffer. Alignment up to the page size
// follows from physical page alignment.
func (a *HostArena) Alloc(size, align int) (Buffer, error) {
	if err := validAlloc(size, align); err != nil {
		return Buffer{}, err
	}
	if align > a.pageSize {
		return Buffer{}, NewError(StatusInvalidArgument,
			fmt.Sprintf("alignment %d exceeds page size %d", align, a.pageSize))
	}

	n := (size + a.pageSize - 1) / a.pageSize * a.pageSize
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS|unix.MAP_LOCKED|unix.MAP_POPULATE)
	if err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return Buffer{}, StatusFromErrno(errno, fmt.Sprintf("mapping %d byte DMA buffer", n))
		}
		return Buffer{}, NewErrorWithCause(StatusOutOfMemory, "mapping DMA buffer", err)
	}

	phys, err := a.physical(mem)
	if err != nil {
		unix.Munmap(mem)
		return Buffer{}, err
	}

	buf := Buffer{Bytes: mem[:size], BusAddr: uint32(phys)}
	a.bufs = append(a.bufs, buf)
	a.maps = append(a.maps, mem)
	return buf, nil
}

// physical returns the physical address of a page-aligned mapping, which
// must be physically contiguous and below 4 GiB.
func (a *HostArena) physical(mem []byte) (uint64, error) {
	base := uintptr(unsafe.Pointer(&mem[0]))
	var first uint64
	for off := 0; off < len(mem); off += a.pageSize {
		p, err := a.translate(base + uintptr(off))
		if err != nil {
			return 0, err
		}
		if off == 0 {
			first = p
			continue
		}
		if p != first+uint64(off) {
			return 0, NewError(StatusOutOfMemory,
				fmt.Sprintf("DMA buffer at %#x is not physically contiguous", base))
		}
	}
	if first+uint64(len(mem)) > 1<<32 {
		return 0, NewError(StatusOutOfMemory,
			fmt.Sprintf("DMA buffer at physical %#x is above 4 GiB", first))
	}
	return first, nil
}

func (a *HostArena) translate(addr uintptr) (uint64, error) {
	var b [8]byte
	if _, err := unix.Pread(a.pagemap, b[:], int64(addr/uintptr(a.pageSize))*8); err != nil {
		return 0, NewErrorWithCause(StatusDriverOperationFailed, "reading pagemap", err)
	}
	v := binary.LittleEndian.Uint64(b[:])
	if v&pagemapPresent == 0 {
		return 0, NewError(StatusOutOfMemory, fmt.Sprintf("page at %#x is not resident", addr))
	}
	pfn := v & pagemapPFNMask
	if pfn == 0 {
		return 0, NewError(StatusPermissionDenied, "pagemap hides page frame numbers (need CAP_SYS_ADMIN)")
	}
	return pfn * uint64(a.pageSize), nil
}

// Window resolves a bus address inside one of the arena's buffers
func (a *HostArena) Window(busAddr uint32, size int) ([]byte, error) {
	return windowIn(a.bufs, busAddr, size)
}

// Close unmaps every buffer. Buffers must no longer be used by the
// controller.
func (a *HostArena) Close() error {
	var first error
	for _, m := range a.maps {
		if err := unix.Munmap(m); err != nil && first == nil {
			first = NewErrorWithCause(StatusDriverOperationFailed, "unmapping DMA buffer", err)
		}
	}
	a.maps, a.bufs = nil, nil
	if a.pagemap >= 0 {
		unix.Close(a.pagemap)
		a.pagemap = -1
	}
	return first
}

// Package ohci brings an IEEE 1394 Open Host Controller from reset to an
// enabled link, publishes the Configuration ROM and keeps the controller
// addressable across bus resets.
//
// A Controller is driven from a single goroutine: Initialize once, then
// Poll in a loop. Every fallible step returns an error; the caller decides
// whether a failure ends the program.
package ohci

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-ohci/pkg/configrom"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// SelfID receive buffer geometry
const (
	SelfIDBufferWords = 504
	SelfIDBufferAlign = 2048
)

// AccessFilter holds one bit per bus node number allowed to send requests.
type AccessFilter struct {
	Async    uint64
	Physical uint64
}

// AcceptAll lets every node issue asynchronous and physical requests.
var AcceptAll = AccessFilter{Async: ^uint64(0), Physical: ^uint64(0)}

// Options configure a Controller. Zero values select defaults.
type Options struct {
	Log   logr.Logger
	Clock driver.Clock

	// PostedWrites lets the controller acknowledge physical writes before
	// they reach memory.
	PostedWrites bool

	// Filter is programmed at bring-up and after every bus reset; nil
	// means AcceptAll.
	Filter *AccessFilter

	Boot     configrom.BootInfo
	Identity *configrom.Identity

	ResetTicks   uint32
	PHYTicks     uint32
	MiscTicks    uint32
	ContextTicks uint32
	SelfIDTicks  uint32
}

func (o *Options) setDefaults() {
	if o.Log.GetSink() == nil {
		o.Log = logr.Discard()
	}
	if o.Filter == nil {
		f := AcceptAll
		o.Filter = &f
	}
	if o.Identity == nil {
		id := configrom.DefaultIdentity()
		o.Identity = &id
	}
	defaultTicks(&o.ResetTicks, driver.ResetTimeoutTicks)
	defaultTicks(&o.PHYTicks, driver.PHYTimeoutTicks)
	defaultTicks(&o.MiscTicks, driver.MiscTimeoutTicks)
	defaultTicks(&o.ContextTicks, driver.ContextTimeoutTicks)
	defaultTicks(&o.SelfIDTicks, driver.SelfIDTimeoutTicks)
}

func defaultTicks(v *uint32, d uint32) {
	if *v == 0 {
		*v = d
	}
}

// Controller is the handle of one OHCI controller. It exclusively owns the
// register file mapping, the Configuration ROM buffer and the SelfID
// buffer.
type Controller struct {
	mu sync.Mutex

	regs   driver.Registers
	arena  driver.Arena
	log    logr.Logger
	waiter *driver.Waiter
	phy    *driver.PHY
	opts   Options

	filter    AccessFilter
	romBuf    driver.Buffer
	selfIDBuf driver.Buffer
	rom       *configrom.ROM

	state        State
	attempted    bool
	version      Version
	postedWrites bool
	topology     Topology
	closed       bool
}

// New creates a Controller and allocates its DMA buffers from arena.
func New(regs driver.Registers, arena driver.Arena, opts Options) (*Controller, error) {
	opts.setDefaults()

	romBuf, err := allocAligned(arena, "configuration ROM", configrom.SizeBytes, configrom.Alignment)
	if err != nil {
		return nil, err
	}
	selfIDBuf, err := allocAligned(arena, "SelfID", SelfIDBufferWords*4, SelfIDBufferAlign)
	if err != nil {
		return nil, err
	}

	waiter := driver.NewWaiter(regs, opts.Clock)
	return &Controller{
		regs:      regs,
		arena:     arena,
		log:       opts.Log,
		waiter:    waiter,
		phy:       driver.NewPHY(regs, waiter, opts.PHYTicks),
		opts:      opts,
		filter:    *opts.Filter,
		romBuf:    romBuf,
		selfIDBuf: selfIDBuf,
	}, nil
}

// allocAligned allocates from arena and rejects a buffer the arena failed
// to align. The controller ignores the low address bits of both buffer
// registers.
func allocAligned(arena driver.Arena, name string, size, align int) (driver.Buffer, error) {
	buf, err := arena.Alloc(size, align)
	if err != nil {
		return driver.Buffer{}, err
	}
	if !buf.Aligned(align) {
		return driver.Buffer{}, driver.NewError(driver.StatusMisaligned,
			fmt.Sprintf("%s buffer at %#08x is not %d-byte aligned", name, buf.BusAddr, align))
	}
	return buf, nil
}

// State returns the last bring-up state reached
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version returns the controller version read during Initialize
func (c *Controller) Version() Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Ports returns the PHY port count
func (c *Controller) Ports() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phy.Ports()
}

// EnhancedPHY reports whether the PHY has the paged register map
func (c *Controller) EnhancedPHY() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phy.Enhanced()
}

// PostedWrites reports whether posted writes were enabled
func (c *Controller) PostedWrites() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postedWrites
}

// Filter returns the access filter programmed after every bus reset
func (c *Controller) Filter() AccessFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// ROM returns a copy of the installed Configuration ROM, or nil before it
// is loaded.
func (c *Controller) ROM() *configrom.ROM {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rom == nil {
		return nil
	}
	rom := *c.rom
	return &rom
}

// ROMBuffer returns the DMA buffer the controller fetches the ROM from
func (c *Controller) ROMBuffer() driver.Buffer {
	return c.romBuf
}

// SelfIDBuffer returns the SelfID receive buffer
func (c *Controller) SelfIDBuffer() driver.Buffer {
	return c.selfIDBuf
}

// Topology returns the topology decoded at the last bus reset
func (c *Controller) Topology() Topology {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.topology
	t.Nodes = append([]SelfID(nil), t.Nodes...)
	return t
}

// Generation reads the current bus generation from the controller
func (c *Controller) Generation() uint8 {
	v := c.regs.Read(driver.RegSelfIDCount)
	return uint8((v & driver.SelfIDCountGenerationMask) >> driver.SelfIDCountGenerationShift)
}

// GUID reads the controller's 64-bit globally unique id
func (c *Controller) GUID() uint64 {
	return uint64(c.regs.Read(driver.RegGUIDHi))<<32 | uint64(c.regs.Read(driver.RegGUIDLo))
}

// WaitNodeID waits until the controller holds a valid node id and returns
// its node number.
func (c *Controller) WaitNodeID() (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return 0, err
	}

	if _, err := c.waiter.WaitSet("NodeID.idValid", driver.RegNodeID, driver.NodeIDValid, c.opts.MiscTicks); err != nil {
		return 0, err
	}
	node := uint8(c.regs.Read(driver.RegNodeID) & driver.NodeIDNodeNumber)
	c.log.V(1).Info("node id valid", "node", node)
	return node, nil
}

// ForceBusReset asks the PHY to initiate a bus reset
func (c *Controller) ForceBusReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	c.log.Info("forcing bus reset")
	return c.phy.ForceBusReset()
}

// ready checks that the controller may be used after bring-up.
// Callers hold c.mu.
func (c *Controller) ready() error {
	if c.closed {
		return ErrClosed
	}
	if c.state != StateLinkEnabled {
		return ErrNotInitialized
	}
	return nil
}

// Close releases the register mapping and the arena when they can be
// closed. The controller is left running; further calls return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var first error
	for _, r := range []any{c.regs, c.arena} {
		if closer, ok := r.(io.Closer); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

package ohci

import (
	"context"

	"github.com/emergingrobotics/go-ohci/pkg/configrom"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// Mailbox holds the two boot-chain quadlets advertised in the boot info
// leaf: a pointer to the boot descriptor, and the slot the remote peer
// writes the entry point into.
type Mailbox struct {
	buf driver.Buffer
}

// NewMailbox allocates the mailbox from arena
func NewMailbox(arena driver.Arena) (*Mailbox, error) {
	buf, err := arena.Alloc(8, 8)
	if err != nil {
		return nil, err
	}
	return &Mailbox{buf: buf}, nil
}

// BootInfo returns the bus addresses to place in the Configuration ROM
func (m *Mailbox) BootInfo() configrom.BootInfo {
	return configrom.BootInfo{
		DescriptorPointer: m.buf.BusAddr,
		EntryPoint:        m.buf.BusAddr + 4,
	}
}

// Descriptor returns the boot descriptor pointer
func (m *Mailbox) Descriptor() uint32 { return m.buf.Word(0) }

// SetDescriptor stores the boot descriptor pointer
func (m *Mailbox) SetDescriptor(addr uint32) { m.buf.SetWord(0, addr) }

// EntryPoint returns the entry point written by the remote peer, 0 if none
func (m *Mailbox) EntryPoint() uint32 { return m.buf.Word(1) }

// AwaitEntryPoint polls for controller events until the remote peer stores
// a non-zero entry point in mb, or ctx is done. Poll errors end the wait.
func (c *Controller) AwaitEntryPoint(ctx context.Context, mb *Mailbox) (uint32, error) {
	for {
		if entry := mb.EntryPoint(); entry != 0 {
			c.log.Info("entry point received", "entry", driver.Hex(entry))
			return entry, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := c.Poll(); err != nil {
			return 0, err
		}
		c.waiter.Tick()
	}
}

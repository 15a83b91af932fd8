package ohci

import (
	"fmt"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

var atContexts = []struct {
	name  string
	set   driver.Register
	clear driver.Register
}{
	{"AsReqTrContextControl", driver.RegAsReqTrContextControlSet, driver.RegAsReqTrContextControlClear},
	{"AsRspTrContextControl", driver.RegAsRspTrContextControlSet, driver.RegAsRspTrContextControlClear},
}

// Poll reads IntEvent once and handles what it finds. A bus reset takes
// priority; posted write and unrecoverable errors are logged and
// acknowledged. Poll returns EventNone without further register access
// when nothing is pending.
func (c *Controller) Poll() (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return EventNone, err
	}

	ev := c.regs.Read(driver.RegIntEventSet)
	switch {
	case ev&driver.IntBusReset != 0:
		return EventBusReset, c.handleBusReset()
	case ev&driver.IntPostedWriteErr != 0:
		c.log.Info("posted write error",
			"address", fmt.Sprintf("%04x%08x",
				c.regs.Read(driver.RegPostedWriteHi)&0xFFFF, c.regs.Read(driver.RegPostedWriteLo)))
		c.regs.Write(driver.RegIntEventClear, driver.IntPostedWriteErr)
		return EventPostedWriteError, nil
	case ev&driver.IntUnrecoverableError != 0:
		c.log.Info("unrecoverable error event")
		c.regs.Write(driver.RegIntEventClear, driver.IntUnrecoverableError)
		return EventUnrecoverableError, nil
	}
	return EventNone, nil
}

// HandleBusReset quiesces the transmit contexts, waits for the SelfID
// phase, acknowledges the reset, restores the access filters and decodes
// the new topology. Calling it again for an already handled reset is
// harmless.
func (c *Controller) HandleBusReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return c.handleBusReset()
}

func (c *Controller) handleBusReset() error {
	for _, ctx := range atContexts {
		c.regs.Write(ctx.clear, driver.ContextControlRun)
	}
	for _, ctx := range atContexts {
		if _, err := c.waiter.WaitClear(ctx.name+".active", ctx.set,
			driver.ContextControlActive, c.opts.ContextTicks); err != nil {
			return err
		}
	}

	if c.regs.Read(driver.RegLinkControlSet)&driver.LinkControlRcvSelfID == 0 {
		return driver.NewError(driver.StatusContractViolation, "SelfID reception is disabled")
	}
	if _, err := c.waiter.WaitSet("IntEvent.selfIDComplete", driver.RegIntEventSet,
		driver.IntSelfIDComplete, c.opts.SelfIDTicks); err != nil {
		return err
	}

	// selfIDComplete stays set until the next reset begins.
	c.regs.Write(driver.RegIntEventClear, driver.IntBusReset)

	c.programFilters()
	got := c.readFilters()
	c.log.V(1).Info("filters restored",
		"async", fmt.Sprintf("%016x", got.Async), "physical", fmt.Sprintf("%016x", got.Physical))

	return c.readSelfIDs()
}

func (c *Controller) readSelfIDs() error {
	count := c.regs.Read(driver.RegSelfIDCount)
	gen := uint8((count & driver.SelfIDCountGenerationMask) >> driver.SelfIDCountGenerationShift)
	words := int((count & driver.SelfIDCountSizeMask) >> driver.SelfIDCountSizeShift)

	if words > c.selfIDBuf.Words() {
		return driver.NewError(driver.StatusContractViolation,
			fmt.Sprintf("SelfIDCount reports %d quadlets, buffer holds %d", words, c.selfIDBuf.Words()))
	}
	if count&driver.SelfIDCountError != 0 {
		c.log.Info("SelfID receive error", "generation", gen)
	}

	packets := make([]uint32, 0, words)
	for i := 0; i < words; i++ {
		w := c.selfIDBuf.Word(i)
		c.log.V(2).Info("SelfID", "index", i, "word", driver.Hex(w))
		if i > 0 {
			packets = append(packets, w)
		}
	}

	nodes, invalid := DecodeSelfIDs(packets)
	c.topology = Topology{Generation: gen, Nodes: nodes, Invalid: invalid}
	c.log.Info("bus reset handled", "generation", gen, "nodes", len(nodes), "invalid", invalid)
	for _, n := range nodes {
		c.log.V(1).Info("node", "selfID", n.String())
	}
	return nil
}

//go:build unit

package ohci_test

import (
	"github.com/emergingrobotics/go-ohci/pkg/driver"
	"github.com/emergingrobotics/go-ohci/pkg/ohci"
	"github.com/emergingrobotics/go-ohci/testutil"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Controller", func() {
	var (
		arena *testutil.FakeArena
		regs  *testutil.FakeRegisters
		clock *testutil.FakeClock
		c     *ohci.Controller
	)

	BeforeEach(func() {
		arena = testutil.NewFakeArena(0x00100000)
		regs = testutil.NewFakeRegisters(testutil.ControllerConfig{
			Ports:      2,
			GUID:       0x0123456789ABCDEF,
			BusOptions: 0xF000A002,
			NodeNumber: 1,
		}, arena)
		clock = &testutil.FakeClock{}

		var err error
		c, err = ohci.New(regs, arena, ohci.Options{Log: log, Clock: clock})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(c.Close()).To(Succeed())
	})

	Context("bring-up", func() {
		It("reaches LinkEnabled with open filters and the controller GUID in the ROM", func() {
			Expect(c.Initialize()).To(Succeed())

			Expect(c.State()).To(Equal(ohci.StateLinkEnabled))
			Expect(c.EnhancedPHY()).To(BeFalse())
			Expect(c.Ports()).To(Equal(uint8(2)))

			async, phys := regs.Filters()
			Expect(async).To(Equal(ohci.AcceptAll.Async))
			Expect(phys).To(Equal(ohci.AcceptAll.Physical))

			rom := c.ROM()
			Expect(rom).NotTo(BeNil())
			Expect(rom[3]).To(Equal(uint32(0x01234567)))
			Expect(rom[4]).To(Equal(uint32(0x89ABCDEF)))
			Expect(rom[2] & driver.BusOptionsCapabilityMask).To(BeZero())
		})

		It("stops at the step whose wait runs out", func() {
			regs.PhyDead = true

			err := c.Initialize()
			Expect(err).To(MatchError(driver.ErrTimeout))
			Expect(c.State()).To(Equal(ohci.StatePowerUp))
		})
	})

	Context("after a bus reset", func() {
		var nodes []uint32

		BeforeEach(func() {
			Expect(c.Initialize()).To(Succeed())
			nodes = []uint32{
				ohci.SelfID{PhyID: 0, LinkActive: true, Speed: ohci.S400,
					Ports: []ohci.PortState{ohci.PortParent}}.Quadlet(),
				ohci.SelfID{PhyID: 1, LinkActive: true, Speed: ohci.S400,
					Ports: []ohci.PortState{ohci.PortChild}}.Quadlet(),
			}
		})

		It("restores the filters and acknowledges the reset exactly once", func() {
			regs.RaiseBusReset()
			Expect(regs.Filters()).To(BeZero())

			regs.CompleteSelfID(nodes...)
			ev, err := c.Poll()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(ohci.EventBusReset))

			async, phys := regs.Filters()
			Expect(async).To(Equal(ohci.AcceptAll.Async))
			Expect(phys).To(Equal(ohci.AcceptAll.Physical))
			Expect(regs.ClearCount(driver.IntBusReset)).To(Equal(1))
			Expect(regs.IntEvent() & driver.IntBusReset).To(BeZero())

			Expect(c.Topology().Nodes).To(HaveLen(2))
			Expect(c.WaitNodeID()).To(Equal(uint8(1)))
		})

		It("is idempotent for an already handled reset", func() {
			regs.BusReset(nodes...)
			Expect(c.HandleBusReset()).To(Succeed())
			first := c.Topology()

			Expect(c.HandleBusReset()).To(Succeed())
			Expect(c.Filter()).To(Equal(ohci.AcceptAll))
			Expect(regs.ClearCount(driver.IntBusReset)).To(Equal(1))
			Expect(c.Topology()).To(Equal(first))
		})

		It("waits for the SelfID phase to finish", func() {
			regs.RaiseBusReset()
			regs.CompleteSelfIDAfter(5, nodes...)

			Expect(c.Poll()).To(Equal(ohci.EventBusReset))
			Expect(c.Topology().Generation).To(Equal(regs.Generation()))
		})
	})

	Context("steady-state anomalies", func() {
		BeforeEach(func() {
			Expect(c.Initialize()).To(Succeed())
		})

		DescribeTable("are acknowledged without error",
			func(bit uint32, want ohci.Event) {
				regs.Raise(bit)
				Expect(c.Poll()).To(Equal(want))
				Expect(regs.IntEvent() & bit).To(BeZero())
				Expect(c.Poll()).To(Equal(ohci.EventNone))
			},
			Entry("posted write error", driver.IntPostedWriteErr, ohci.EventPostedWriteError),
			Entry("unrecoverable error", driver.IntUnrecoverableError, ohci.EventUnrecoverableError),
		)
	})
})

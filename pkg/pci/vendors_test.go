//go:build unit

package pci_test

import (
	"github.com/emergingrobotics/go-ohci/pkg/pci"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lookup", func() {
	DescribeTable("matches the first row",
		func(vendor pci.Vendor, device uint16, name string) {
			e := pci.Lookup(vendor, device)
			Expect(e.Name).To(Equal(name))
			Expect(e.Quirks).To(Equal(pci.NoQuirks))
		},
		Entry("TI TSB43AB22", pci.Vendor(0x104c), uint16(0x8023),
			"Texas Instruments IEEE1394a-2000 OHCI PHY/Link-Layer Ctrlr"),
		Entry("other TI", pci.Vendor(0x104c), uint16(0x8024), "Texas Instruments Unknown Device"),
		Entry("NEC uPD72874", pci.Vendor(0x1033), uint16(0x00e7),
			"NEC Electronics IEEE1394 OHCI 1.1 2-port PHY-Link Ctrlr"),
		Entry("other NEC", pci.Vendor(0x1033), uint16(0x00cd), "NEC Electronics Unknown Device"),
		Entry("VIA", pci.Vendor(0x1106), uint16(0x3044), "Unknown Device"),
	)

	It("describes a device with its table name", func() {
		d := pci.Device{Address: pci.Address{Bus: 3}, Vendor: 0x104c, Device: 0x8023}
		d.Entry = pci.Lookup(d.Vendor, d.Device)
		Expect(d.String()).To(HavePrefix("0000:03:00.0 104c:8023 Texas Instruments"))
	})
})

package pci

// Quirks flags controller-specific workarounds
type Quirks uint32

const NoQuirks Quirks = 0

// Wildcard matches any vendor or device id in the vendor table
const Wildcard = 0xFFFF

// Entry is a vendor table row
type Entry struct {
	Vendor Vendor
	Device uint16
	Quirks Quirks
	Name   string
}

// Entries are matched in order; the last row matches everything.
var vendorTable = []Entry{
	{0x104c, 0x8023, NoQuirks, "Texas Instruments IEEE1394a-2000 OHCI PHY/Link-Layer Ctrlr"},
	{0x104c, Wildcard, NoQuirks, "Texas Instruments Unknown Device"},

	{0x1033, 0x00e7, NoQuirks, "NEC Electronics IEEE1394 OHCI 1.1 2-port PHY-Link Ctrlr"},
	{0x1033, Wildcard, NoQuirks, "NEC Electronics Unknown Device"},

	{Wildcard, Wildcard, NoQuirks, "Unknown Device"},
}

// Lookup returns the first vendor table row matching vendor and device
func Lookup(vendor Vendor, device uint16) Entry {
	for _, e := range vendorTable {
		if (e.Vendor == Wildcard || e.Vendor == vendor) && (e.Device == Wildcard || e.Device == device) {
			return e
		}
	}
	return vendorTable[len(vendorTable)-1]
}

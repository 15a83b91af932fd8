//go:build unit

package driver

import (
	"testing"
)

func TestRegisterOffsets(t *testing.T) {
	tests := []struct {
		name     string
		got      Register
		expected Register
	}{
		{"Version", RegVersion, 0x000},
		{"ATRetries", RegATRetries, 0x008},
		{"ConfigROMhdr", RegConfigROMHeader, 0x018},
		{"BusOptions", RegBusOptions, 0x020},
		{"ConfigROMmap", RegConfigROMMap, 0x034},
		{"HCControlSet", RegHCControlSet, 0x050},
		{"HCControlClear", RegHCControlClear, 0x054},
		{"SelfIDBuffer", RegSelfIDBuffer, 0x064},
		{"SelfIDCount", RegSelfIDCount, 0x068},
		{"IntEventSet", RegIntEventSet, 0x080},
		{"IntEventClear", RegIntEventClear, 0x084},
		{"LinkControlSet", RegLinkControlSet, 0x0E0},
		{"LinkControlClear", RegLinkControlClear, 0x0E4},
		{"PhyControl", RegPhyControl, 0x0EC},
		{"AsReqFilterHiSet", RegAsReqFilterHiSet, 0x100},
		{"PhyReqFilterLoSet", RegPhyReqFilterLoSet, 0x118},
		{"PhyUpperBound", RegPhyUpperBound, 0x120},
		{"AsReqTrContextControlClear", RegAsReqTrContextControlClear, 0x184},
		{"AsRspTrContextControlClear", RegAsRspTrContextControlClear, 0x1A4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %#03x, got %#03x", uint32(tt.expected), uint32(tt.got))
			}
		})
	}
}

func TestSetClearPairsAreAdjacent(t *testing.T) {
	pairs := [][2]Register{
		{RegHCControlSet, RegHCControlClear},
		{RegIntEventSet, RegIntEventClear},
		{RegIntMaskSet, RegIntMaskClear},
		{RegLinkControlSet, RegLinkControlClear},
		{RegAsReqFilterHiSet, RegAsReqFilterHiClr},
		{RegAsReqFilterLoSet, RegAsReqFilterLoClr},
		{RegPhyReqFilterHiSet, RegPhyReqFilterHiClr},
		{RegPhyReqFilterLoSet, RegPhyReqFilterLoClr},
		{RegAsReqTrContextControlSet, RegAsReqTrContextControlClear},
		{RegAsRspTrContextControlSet, RegAsRspTrContextControlClear},
	}

	for _, p := range pairs {
		if p[1] != p[0]+4 {
			t.Errorf("%v clear register at %#x, expected %#x", p[0], uint32(p[1]), uint32(p[0]+4))
		}
	}
}

func TestHCControlBits(t *testing.T) {
	tests := []struct {
		name     string
		got      uint32
		expected uint32
	}{
		{"softReset", HCControlSoftReset, 0x00010000},
		{"linkEnable", HCControlLinkEnable, 0x00020000},
		{"postedWriteEnable", HCControlPostedWriteEnable, 0x00040000},
		{"LPS", HCControlLPS, 0x00080000},
		{"aPhyEnhanceEnable", HCControlAPhyEnhanceEnable, 0x00400000},
		{"programPhyEnable", HCControlProgramPhyEnable, 0x00800000},
		{"ackTardyEnable", HCControlAckTardyEnable, 0x20000000},
		{"noByteSwapData", HCControlNoByteSwapData, 0x40000000},
		{"BIBimageValid", HCControlBIBImageValid, 0x80000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %#08x, got %#08x", tt.expected, tt.got)
			}
		})
	}
}

func TestIntEventBits(t *testing.T) {
	if IntBusReset != 0x20000 {
		t.Errorf("busReset = %#x", IntBusReset)
	}
	if IntSelfIDComplete != 0x10000 {
		t.Errorf("selfIDComplete = %#x", IntSelfIDComplete)
	}
	if IntPostedWriteErr != 0x100 {
		t.Errorf("postedWriteErr = %#x", IntPostedWriteErr)
	}
	if IntUnrecoverableError != 0x1000000 {
		t.Errorf("unrecoverableError = %#x", IntUnrecoverableError)
	}
	if LinkControlRcvSelfID != 0x200 {
		t.Errorf("rcvSelfID = %#x", LinkControlRcvSelfID)
	}
}

func TestPhyControlCommands(t *testing.T) {
	if got := PhyControlRead(2); got != 0x8200 {
		t.Errorf("PhyControlRead(2) = %#x, expected 0x8200", got)
	}
	if got := PhyControlWrite(4, 0x3F); got != 0x443F {
		t.Errorf("PhyControlWrite(4, 0x3f) = %#x, expected 0x443f", got)
	}
	if got := PhyControlData(0x80A50000); got != 0xA5 {
		t.Errorf("PhyControlData = %#x, expected 0xa5", got)
	}
}

func TestBusOptionsCapabilityMask(t *testing.T) {
	if BusOptionsCapabilityMask != 0xF0000000 {
		t.Errorf("capability mask = %#08x, expected 0xf0000000", BusOptionsCapabilityMask)
	}
}

func TestSelfIDCountFields(t *testing.T) {
	v := uint32(0x002A0000) | 12<<SelfIDCountSizeShift
	if gen := (v & SelfIDCountGenerationMask) >> SelfIDCountGenerationShift; gen != 0x2A {
		t.Errorf("generation = %#x, expected 0x2a", gen)
	}
	if words := (v & SelfIDCountSizeMask) >> SelfIDCountSizeShift; words != 12 {
		t.Errorf("size = %d, expected 12", words)
	}
}

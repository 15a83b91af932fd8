package configrom

import (
	"encoding/binary"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-ohci/pkg/driver"
)

// Load installs rom at busAddr, a buffer of arena, and marks the image
// valid. A busAddr that is not 1024-byte aligned is only logged.
//
// While the link is down the controller does not fetch the windowed copy,
// so the header and bus options quadlets are also written to their shadow
// registers.
func Load(regs driver.Registers, arena driver.Arena, busAddr uint32, rom *ROM, log logr.Logger) error {
	if busAddr%Alignment != 0 {
		log.Info("misaligned configuration ROM", "busAddr", driver.Hex(busAddr), "alignment", Alignment)
	}

	window, err := arena.Window(busAddr, SizeBytes)
	if err != nil {
		return err
	}
	regs.Write(driver.RegConfigROMMap, busAddr)
	for i, w := range rom {
		binary.BigEndian.PutUint32(window[i*4:], w)
	}

	regs.Write(driver.RegHCControlSet, driver.HCControlBIBImageValid)

	if regs.Read(driver.RegHCControlSet)&driver.HCControlLinkEnable == 0 {
		regs.Write(driver.RegConfigROMHeader, rom[0])
		regs.Write(driver.RegBusOptions, rom[2])
		log.V(1).Info("link down, mirrored ROM header", "header", driver.Hex(rom[0]), "busOptions", driver.Hex(rom[2]))
	}
	return nil
}

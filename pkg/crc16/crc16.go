// Package crc16 computes the CSR-style CRC used by IEEE 1212 configuration ROMs.
//
// The checksum is the ITU-T polynomial x^16 + x^12 + x^5 + 1 applied most
// significant bit first with a zero initial value, evaluated one nibble at a
// time over 32-bit quadlets.
package crc16

// Update folds one quadlet into a running CRC.
func Update(crc uint16, quadlet uint32) uint16 {
	acc := uint32(crc)
	for shift := 28; shift >= 0; shift -= 4 {
		sum := ((acc >> 12) ^ (quadlet >> uint(shift))) & 0xF
		acc = (acc << 4) ^ (sum << 12) ^ (sum << 5) ^ sum
	}
	return uint16(acc)
}

// Checksum returns the CRC over all quadlets. An empty slice yields 0.
func Checksum(quadlets []uint32) uint16 {
	var crc uint16
	for _, q := range quadlets {
		crc = Update(crc, q)
	}
	return crc
}

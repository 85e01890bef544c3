// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

// HeaderChecksum computes the CRC-8/DVB-S2 checksum stored in header byte 7.
// Pass a previous result as seed to continue a running computation.
func HeaderChecksum(data []byte, seed uint8) uint8 {
	crc := seed
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ headerPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// PayloadChecksum computes the 16-bit checksum appended (big-endian) to every
// payload. Pass a previous result as seed to continue a running computation.
func PayloadChecksum(data []byte, seed uint16) uint16 {
	msb := uint8(seed >> 8)
	lsb := uint8(seed)
	for _, b := range data {
		x := b ^ msb
		x ^= x >> 4
		msb = lsb ^ (x >> 3) ^ (x << 4)
		lsb = x ^ (x << 5)
	}
	return uint16(msb)<<8 | uint16(lsb)
}

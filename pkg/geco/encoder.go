// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"encoding/binary"
	"fmt"
)

// maxRegisterData is what fits in a payload after the register fields and checksum.
const maxRegisterData = 0xFF - plDataStart - 2

// Encode creates a complete wire-formatted GECO packet: header, payload and
// both checksums.
func Encode(p *Packet) ([]byte, error) {
	if len(p.data) > maxRegisterData {
		return nil, fmt.Errorf("register data too large: %d bytes (max %d)", len(p.data), maxRegisterData)
	}

	payloadLen := plDataStart + len(p.data) + 2
	packet := make([]byte, HeaderSize+payloadLen)

	packet[hdrStart] = StartByte
	packet[hdrDstHard] = p.addr.DstHard
	packet[hdrSrcHard] = p.addr.SrcHard
	packet[hdrFixed] = HeaderFixedByte
	packet[hdrPayloadLen] = uint8(payloadLen)
	packet[hdrChecksum] = HeaderChecksum(packet[:hdrChecksum], 0)

	payload := packet[HeaderSize:]
	payload[plDstSoft] = p.addr.DstSoft
	payload[plSrcSoft] = p.addr.SrcSoft
	payload[plFunction] = p.function
	payload[plSubFunction] = p.subFunction
	payload[plRegCount] = p.registerCount
	payload[plRegStartLo] = uint8(p.registerStart)
	payload[plRegStartHi] = uint8(p.registerStart >> 8)
	copy(payload[plDataStart:], p.data)

	body := payload[:len(payload)-2]
	binary.BigEndian.PutUint16(payload[len(payload)-2:], PayloadChecksum(body, 0))

	return packet, nil
}

// MustEncode encodes a packet, panicking on error. Only for packets whose
// register data is known to fit.
func MustEncode(p *Packet) []byte {
	data, err := Encode(p)
	if err != nil {
		panic(fmt.Sprintf("geco: encode error: %v", err))
	}
	return data
}

// BuildReadRequest creates a register read request. Use FncStatusRequest with
// StatusBase, or FncConfigRequest with ConfigBase.
func BuildReadRequest(addr Addressing, fnc uint8, start uint16, count uint8) []byte {
	return MustEncode(NewPacket(addr, fnc, SubFncRead, start, count, nil))
}

// BuildWriteRequest creates a config write request. The device expects the
// entire register block, not just the changed word.
func BuildWriteRequest(addr Addressing, start uint16, count uint8, data []byte) ([]byte, error) {
	if len(data) != int(count)*2 {
		return nil, fmt.Errorf("write data is %d bytes, %d registers need %d", len(data), count, int(count)*2)
	}
	return Encode(NewPacket(addr, FncConfigRequest, SubFncWrite, start, count, data))
}

// BuildResponse creates a device response carrying register data. Used by
// simulators and tests.
func BuildResponse(addr Addressing, fnc uint8, start uint16, regs []uint16) ([]byte, error) {
	if len(regs) > 0xFF {
		return nil, fmt.Errorf("too many registers: %d", len(regs))
	}
	return Encode(NewPacket(addr, fnc, SubFncRead, start, uint8(len(regs)), RegistersToBytes(regs)))
}

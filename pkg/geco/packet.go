// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import "time"

// Addressing holds the physical (RS485) and logical addresses of both ends of
// an exchange.
type Addressing struct {
	DstHard uint8
	SrcHard uint8
	DstSoft uint8
	SrcSoft uint8
}

// DefaultAddressing returns the controller -> heat pump addressing used by
// the G-426 controller.
func DefaultAddressing() Addressing {
	return Addressing{
		DstHard: DefaultDeviceHard,
		SrcHard: DefaultControllerHard,
		DstSoft: DefaultDeviceSoft,
		SrcSoft: DefaultControllerSoft,
	}
}

// Reply returns the addressing of the answer to a request sent with a.
func (a Addressing) Reply() Addressing {
	return Addressing{
		DstHard: a.SrcHard,
		SrcHard: a.DstHard,
		DstSoft: a.SrcSoft,
		SrcSoft: a.DstSoft,
	}
}

// Packet represents a decoded GECO protocol packet
type Packet struct {
	addr          Addressing
	function      uint8
	subFunction   uint8
	registerStart uint16
	registerCount uint8
	hasRegisters  bool
	data          []byte
	payload       []byte // payload without checksum
	totalLength   int
	timestamp     time.Time
}

// NewPacket creates a packet ready for Encode. Data is only carried on the
// wire for responses and write requests.
func NewPacket(addr Addressing, function, subFunction uint8, start uint16, count uint8, data []byte) *Packet {
	return &Packet{
		addr:          addr,
		function:      function,
		subFunction:   subFunction,
		registerStart: start,
		registerCount: count,
		hasRegisters:  true,
		data:          data,
		timestamp:     time.Now(),
	}
}

// Addressing returns the packet's address quadruple
func (p *Packet) Addressing() Addressing {
	return p.addr
}

// DstHard returns the destination physical address
func (p *Packet) DstHard() uint8 {
	return p.addr.DstHard
}

// SrcHard returns the source physical address
func (p *Packet) SrcHard() uint8 {
	return p.addr.SrcHard
}

// DstSoft returns the destination logical address
func (p *Packet) DstSoft() uint8 {
	return p.addr.DstSoft
}

// SrcSoft returns the source logical address
func (p *Packet) SrcSoft() uint8 {
	return p.addr.SrcSoft
}

// Function returns the function code
func (p *Packet) Function() uint8 {
	return p.function
}

// SubFunction returns the sub-function (read/write). Zero when HasRegisters is false.
func (p *Packet) SubFunction() uint8 {
	return p.subFunction
}

// RegisterStart returns the first register address
func (p *Packet) RegisterStart() uint16 {
	return p.registerStart
}

// RegisterCount returns the declared number of registers
func (p *Packet) RegisterCount() uint8 {
	return p.registerCount
}

// HasRegisters reports whether the payload was long enough to carry the
// register fields.
func (p *Packet) HasRegisters() bool {
	return p.hasRegisters
}

// Data returns the raw register data (responses and writes for parsed packets)
func (p *Packet) Data() []byte {
	return p.data
}

// Payload returns the payload bytes without the trailing checksum
func (p *Packet) Payload() []byte {
	return p.payload
}

// TotalLength returns header plus payload length in bytes
func (p *Packet) TotalLength() int {
	return p.totalLength
}

// Timestamp returns the packet's decode timestamp
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// IsResponse returns true for status and config responses
func (p *Packet) IsResponse() bool {
	return IsResponseFunction(p.function)
}

// IsWrite returns true if the packet carries the write sub-function
func (p *Packet) IsWrite() bool {
	return p.hasRegisters && p.subFunction == SubFncWrite
}

// Registers returns the register data as 16-bit words
func (p *Packet) Registers() []uint16 {
	return ExtractRegisters(p.data, int(p.registerCount))
}

// IsResponseFunction reports whether fnc carries register data back from the device
func IsResponseFunction(fnc uint8) bool {
	return fnc == FncStatusResponse || fnc == FncConfigResponse
}

// ResponseFunction maps a request function code to its response code
func ResponseFunction(fnc uint8) uint8 {
	switch fnc {
	case FncStatusRequest:
		return FncStatusResponse
	case FncConfigRequest:
		return FncConfigResponse
	}
	return fnc
}

// ExtractRegisters converts big-endian register data to words. At most count
// words are returned, fewer if data is short.
func ExtractRegisters(data []byte, count int) []uint16 {
	n := len(data) / 2
	if count < n {
		n = count
	}
	if n <= 0 {
		return nil
	}
	regs := make([]uint16, n)
	for i := range regs {
		regs[i] = uint16(data[i*2])<<8 | uint16(data[i*2+1])
	}
	return regs
}

// RegistersToBytes converts words back to big-endian register data
func RegistersToBytes(regs []uint16) []byte {
	data := make([]byte, len(regs)*2)
	for i, v := range regs {
		data[i*2] = byte(v >> 8)
		data[i*2+1] = byte(v)
	}
	return data
}

// Signed16 reinterprets a register word as two's complement
func Signed16(v uint16) int16 {
	return int16(v)
}

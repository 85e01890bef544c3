// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package geco provides a Go implementation of the GECO RS485 protocol spoken
// by Hewalex heat-pump controllers.
//
// This package provides packet encoding/decoding, checksum validation, stream
// framing for shared buses, and the register map used to translate status and
// config register blocks into typed values and back.
package geco

// Protocol framing bytes
const (
	StartByte       = 0x69
	HeaderFixedByte = 0x84
)

// Packet size limits
const (
	HeaderSize = 8
	// MinPacketSize is a header plus the smallest payload that still carries
	// addressing, a function code and the payload checksum.
	MinPacketSize = HeaderSize + 7
	// MinPayloadSize is the smallest payload (including checksum) accepted.
	MinPayloadSize = 7
	// MaxPacketSize is the largest packet the header length byte can describe.
	MaxPacketSize = HeaderSize + 0xFF
	// TypicalPacketSize is a full 50-register response.
	TypicalPacketSize = 120
)

// Header byte offsets
const (
	hdrStart      = 0
	hdrDstHard    = 1
	hdrSrcHard    = 2
	hdrFixed      = 3
	hdrPayloadLen = 6
	hdrChecksum   = 7
)

// Payload byte offsets (payload without its trailing checksum)
const (
	plDstSoft     = 0
	plSrcSoft     = 2
	plFunction    = 4
	plSubFunction = 5
	plRegCount    = 7
	plRegStartLo  = 8
	plRegStartHi  = 9
	plDataStart   = 10
)

// Function codes
const (
	FncStatusRequest  = 0x40
	FncStatusResponse = 0x50
	FncConfigRequest  = 0x60
	FncConfigResponse = 0x70
)

// Sub-function codes
const (
	SubFncRead  = 0x80
	SubFncWrite = 0xA0
)

// Header checksum (CRC-8/DVB-S2) configuration
const (
	headerPolynomial = 0xD5
)

// Register blocks
const (
	StatusBase  = 100
	StatusCount = 50
	ConfigBase  = 300
	ConfigCount = 50
)

// Default bus addresses
const (
	DefaultControllerHard = 1
	DefaultControllerSoft = 1
	DefaultDeviceHard     = 2
	DefaultDeviceSoft     = 2
)

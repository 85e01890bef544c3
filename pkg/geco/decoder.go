// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Parse failures. All of them are expected noise on a shared bus.
var (
	ErrTooShort        = errors.New("packet too short")
	ErrBadStart        = errors.New("missing start byte")
	ErrHeaderChecksum  = errors.New("header checksum mismatch")
	ErrIncomplete      = errors.New("incomplete payload")
	ErrPayloadTooShort = errors.New("payload too short for checksum")
	ErrPayloadChecksum = errors.New("payload checksum mismatch")
)

// ParseError describes why a byte sequence is not a valid packet
type ParseError struct {
	Err    error
	Detail string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

// Unwrap returns the sentinel error
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(err error, format string, args ...interface{}) *ParseError {
	return &ParseError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// ParsePacket parses a single GECO packet starting at data[0]. Bytes past the
// declared packet length are ignored. It never panics on malformed input.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < MinPacketSize {
		return nil, parseErr(ErrTooShort, "%d bytes (min %d)", len(data), MinPacketSize)
	}

	if data[hdrStart] != StartByte {
		return nil, parseErr(ErrBadStart, "got 0x%02X", data[hdrStart])
	}

	calculated := HeaderChecksum(data[:hdrChecksum], 0)
	if calculated != data[hdrChecksum] {
		return nil, parseErr(ErrHeaderChecksum, "calculated 0x%02X, received 0x%02X", calculated, data[hdrChecksum])
	}

	payloadLen := int(data[hdrPayloadLen])
	if len(data) < HeaderSize+payloadLen {
		return nil, parseErr(ErrIncomplete, "have %d, need %d", len(data)-HeaderSize, payloadLen)
	}

	if payloadLen < MinPayloadSize {
		return nil, parseErr(ErrPayloadTooShort, "%d bytes (min %d)", payloadLen, MinPayloadSize)
	}

	payload := data[HeaderSize : HeaderSize+payloadLen]
	body := payload[:payloadLen-2]
	received := binary.BigEndian.Uint16(payload[payloadLen-2:])
	if calculated := PayloadChecksum(body, 0); calculated != received {
		return nil, parseErr(ErrPayloadChecksum, "calculated 0x%04X, received 0x%04X", calculated, received)
	}

	p := &Packet{
		addr: Addressing{
			DstHard: data[hdrDstHard],
			SrcHard: data[hdrSrcHard],
			DstSoft: body[plDstSoft],
			SrcSoft: body[plSrcSoft],
		},
		function:    body[plFunction],
		payload:     append([]byte(nil), body...),
		totalLength: HeaderSize + payloadLen,
		timestamp:   time.Now(),
	}

	if len(body) >= plDataStart {
		p.hasRegisters = true
		p.subFunction = body[plSubFunction]
		p.registerCount = body[plRegCount]
		p.registerStart = uint16(body[plRegStartLo]) | uint16(body[plRegStartHi])<<8

		if p.IsResponse() || p.subFunction == SubFncWrite {
			p.data = p.payload[plDataStart:]
		}
	}

	return p, nil
}

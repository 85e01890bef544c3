// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	data, err := hex.DecodeString(s)
	require.NoError(t, err)
	return data
}

// ============================================================
// Encoder Tests
// ============================================================

func TestBuildReadRequest(t *testing.T) {
	tests := []struct {
		name  string
		fnc   uint8
		start uint16
		want  string
	}{
		{"status", FncStatusRequest, StatusBase, "6902018400000cf602000100408000326400bdb2"},
		{"config", FncConfigRequest, ConfigBase, "6902018400000cf602000100608000322c011cfe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildReadRequest(DefaultAddressing(), tt.fnc, tt.start, 50)
			assert.Equal(t, tt.want, hex.EncodeToString(got))
		})
	}
}

func TestBuildWriteRequest(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0x69, 0x01, 0x2C}
	got, err := BuildWriteRequest(DefaultAddressing(), ConfigBase, 3, data)
	require.NoError(t, err)
	assert.Equal(t, "690201840000120c0200010060a000032c0100010069012c2db6", hex.EncodeToString(got))

	_, err = BuildWriteRequest(DefaultAddressing(), ConfigBase, 4, data)
	assert.Error(t, err, "data shorter than count*2 must be rejected")
}

func TestBuildResponseSize(t *testing.T) {
	regs := make([]uint16, StatusCount)
	data, err := BuildResponse(DefaultAddressing().Reply(), FncStatusResponse, StatusBase, regs)
	require.NoError(t, err)
	assert.Len(t, data, TypicalPacketSize)
	assert.Equal(t, uint8(112), data[hdrPayloadLen])
}

func TestEncodeTooLarge(t *testing.T) {
	p := NewPacket(DefaultAddressing(), FncConfigRequest, SubFncWrite, ConfigBase, 255, make([]byte, 510))
	_, err := Encode(p)
	assert.Error(t, err)
}

// ============================================================
// Decoder Tests
// ============================================================

func TestParseReadRequest(t *testing.T) {
	p, err := ParsePacket(mustHex(t, "6902018400000cf602000100408000326400bdb2"))
	require.NoError(t, err)

	assert.Equal(t, uint8(2), p.DstHard())
	assert.Equal(t, uint8(1), p.SrcHard())
	assert.Equal(t, uint8(2), p.DstSoft())
	assert.Equal(t, uint8(1), p.SrcSoft())
	assert.Equal(t, uint8(FncStatusRequest), p.Function())
	assert.Equal(t, uint8(SubFncRead), p.SubFunction())
	assert.Equal(t, uint16(StatusBase), p.RegisterStart())
	assert.Equal(t, uint8(50), p.RegisterCount())
	assert.True(t, p.HasRegisters())
	assert.False(t, p.IsResponse())
	assert.Empty(t, p.Data(), "requests carry no register data")
	assert.Equal(t, 20, p.TotalLength())
}

func TestParseResponseRoundTrip(t *testing.T) {
	regs := []uint16{0x1403, 0x0F02, 0x0C1E, 0x2D00, 0x00C8, 0xFF38}
	data, err := BuildResponse(DefaultAddressing().Reply(), FncStatusResponse, StatusBase, regs)
	require.NoError(t, err)

	p, err := ParsePacket(data)
	require.NoError(t, err)
	assert.True(t, p.IsResponse())
	assert.Equal(t, regs, p.Registers())
	assert.Equal(t, uint8(1), p.DstHard())
	assert.Equal(t, uint8(2), p.SrcHard())
}

func TestParseWriteCarriesData(t *testing.T) {
	p, err := ParsePacket(mustHex(t, "690201840000120c0200010060a000032c0100010069012c2db6"))
	require.NoError(t, err)
	assert.True(t, p.IsWrite())
	assert.Equal(t, []uint16{0x0001, 0x0069, 0x012C}, p.Registers())
}

func TestParseIgnoresTrailingBytes(t *testing.T) {
	data := append(mustHex(t, "6902018400000cf602000100408000326400bdb2"), 0xAA, 0xBB)
	p, err := ParsePacket(data)
	require.NoError(t, err)
	assert.Equal(t, 20, p.TotalLength())
}

func TestParseShortPayloadHasNoRegisters(t *testing.T) {
	// 5 body bytes + checksum: addressing and a function code only
	p := NewPacket(DefaultAddressing(), FncStatusRequest, 0, 0, 0, nil)
	full := MustEncode(p)
	body := full[HeaderSize : HeaderSize+5]

	data := []byte{StartByte, 0x02, 0x01, HeaderFixedByte, 0x00, 0x00, 7}
	data = append(data, HeaderChecksum(data, 0))
	data = append(data, body...)
	crc := PayloadChecksum(body, 0)
	data = append(data, byte(crc>>8), byte(crc))

	parsed, err := ParsePacket(data)
	require.NoError(t, err)
	assert.False(t, parsed.HasRegisters())
	assert.Equal(t, uint8(FncStatusRequest), parsed.Function())
}

func TestParseErrors(t *testing.T) {
	valid := mustHex(t, "6902018400000cf602000100408000326400bdb2")

	corrupt := func(i int, v byte) []byte {
		d := append([]byte(nil), valid...)
		d[i] = v
		return d
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTooShort},
		{"fourteen bytes", valid[:14], ErrTooShort},
		{"bad start", corrupt(0, 0x68), ErrBadStart},
		{"header checksum", corrupt(7, 0x00), ErrHeaderChecksum},
		{"header byte flipped", corrupt(1, 0x03), ErrHeaderChecksum},
		{"incomplete", valid[:19], ErrIncomplete},
		{"payload checksum", corrupt(19, 0x00), ErrPayloadChecksum},
		{"payload byte flipped", corrupt(12, 0x50), ErrPayloadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePacket(tt.data)
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestParsePayloadTooShort(t *testing.T) {
	data := []byte{StartByte, 0x02, 0x01, HeaderFixedByte, 0x00, 0x00, 6}
	data = append(data, HeaderChecksum(data, 0))
	data = append(data, make([]byte, 10)...)

	_, err := ParsePacket(data)
	assert.ErrorIs(t, err, ErrPayloadTooShort)
}

// Every single bit flip of a valid packet must be rejected
func TestParseSingleBitFlips(t *testing.T) {
	valid := mustHex(t, "6902018400000cf602000100408000326400bdb2")

	for i := range valid {
		for bit := 0; bit < 8; bit++ {
			d := append([]byte(nil), valid...)
			d[i] ^= 1 << uint(bit)
			if _, err := ParsePacket(d); err == nil {
				t.Errorf("flip byte %d bit %d: expected error", i, bit)
			}
		}
	}
}

// ============================================================
// Register Helper Tests
// ============================================================

func TestExtractRegisters(t *testing.T) {
	data := []byte{0x00, 0xC8, 0xFF, 0x38, 0x12}

	assert.Equal(t, []uint16{0x00C8, 0xFF38}, ExtractRegisters(data, 5))
	assert.Equal(t, []uint16{0x00C8}, ExtractRegisters(data, 1))
	assert.Nil(t, ExtractRegisters(nil, 3))
	assert.Equal(t, data[:4], RegistersToBytes([]uint16{0x00C8, 0xFF38}))
	assert.Equal(t, int16(-200), Signed16(0xFF38))
}

func TestAddressingReply(t *testing.T) {
	a := DefaultAddressing()
	r := a.Reply()
	assert.Equal(t, a.DstHard, r.SrcHard)
	assert.Equal(t, a.SrcSoft, r.DstSoft)
	assert.Equal(t, a, r.Reply())
}

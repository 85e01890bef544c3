// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusResponse(t *testing.T, regs []uint16) []byte {
	t.Helper()
	data, err := BuildResponse(DefaultAddressing().Reply(), FncStatusResponse, StatusBase, regs)
	require.NoError(t, err)
	return data
}

// ============================================================
// FindPackets Tests
// ============================================================

func TestFindPacketsSequence(t *testing.T) {
	req := BuildReadRequest(DefaultAddressing(), FncStatusRequest, StatusBase, StatusCount)
	resp := statusResponse(t, make([]uint16, StatusCount))

	buf := append(append([]byte(nil), req...), resp...)
	frames := FindPackets(buf)

	require.Len(t, frames, 2)
	assert.Equal(t, uint8(FncStatusRequest), frames[0].Packet.Function())
	assert.Equal(t, len(req), frames[0].End)
	assert.Equal(t, uint8(FncStatusResponse), frames[1].Packet.Function())
	assert.Equal(t, len(buf), frames[1].End)
}

func TestFindPacketsSkipsFalseStart(t *testing.T) {
	// A 0x69 whose length byte fits the buffer but whose header is garbage
	noise := []byte{0x69, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00}
	req := BuildReadRequest(DefaultAddressing(), FncConfigRequest, ConfigBase, ConfigCount)

	buf := append(append([]byte(nil), noise...), req...)
	frames, falseStarts, _ := scan(buf, nil)

	require.Len(t, frames, 1)
	assert.Equal(t, 1, falseStarts)
	assert.Equal(t, uint8(FncConfigRequest), frames[0].Packet.Function())
	assert.Equal(t, len(buf), frames[0].End)
}

func TestFindPacketsStartByteInData(t *testing.T) {
	regs := make([]uint16, StatusCount)
	regs[4] = 0x6969
	regs[5] = 0x0069
	buf := statusResponse(t, regs)

	frames, falseStarts, _ := scan(buf, nil)
	require.Len(t, frames, 1)
	assert.Equal(t, 0, falseStarts)
	assert.Equal(t, regs, frames[0].Packet.Registers())
}

func TestFindPacketsIncompleteTail(t *testing.T) {
	req := BuildReadRequest(DefaultAddressing(), FncStatusRequest, StatusBase, StatusCount)
	buf := append(append([]byte(nil), req...), req[:10]...)

	frames := FindPackets(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, len(req), frames[0].End)
}

func TestFindPacketsNoise(t *testing.T) {
	assert.Empty(t, FindPackets(nil))
	assert.Empty(t, FindPackets([]byte{0x00, 0x11, 0x22}))
	assert.Empty(t, FindPackets([]byte{0x69, 0x69, 0x69}))
}

// ============================================================
// Framer Tests
// ============================================================

func TestFramerByteAtATime(t *testing.T) {
	f := NewFramer(1024, 512)
	resp := statusResponse(t, make([]uint16, StatusCount))

	var frames []Frame
	for _, b := range resp {
		frames = append(frames, f.Feed([]byte{b})...)
	}

	require.Len(t, frames, 1)
	assert.Equal(t, 0, f.Buffered())
	assert.Equal(t, uint64(1), f.Packets)
}

func TestFramerKeepsPartialPacket(t *testing.T) {
	f := NewFramer(0, 0)
	req := BuildReadRequest(DefaultAddressing(), FncStatusRequest, StatusBase, StatusCount)

	stream := append(append([]byte(nil), req...), req...)
	first := f.Feed(stream[:30])
	require.Len(t, first, 1)
	assert.Equal(t, 10, f.Buffered())

	second := f.Feed(stream[30:])
	require.Len(t, second, 1)
	assert.Equal(t, 0, f.Buffered())
}

func TestFramerCountsDiscardedPrefix(t *testing.T) {
	f := NewFramer(0, 0)
	req := BuildReadRequest(DefaultAddressing(), FncStatusRequest, StatusBase, StatusCount)

	frames := f.Feed(append([]byte{0x00, 0x01, 0x02}, req...))
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(3), f.Discarded)
}

func TestFramerCountsFalseStartOnce(t *testing.T) {
	f := NewFramer(0, 0)
	var rejects []error
	f.OnReject = func(err error) { rejects = append(rejects, err) }

	noise := []byte{0x69, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}
	req := BuildReadRequest(DefaultAddressing(), FncStatusRequest, StatusBase, StatusCount)
	stream := append(append([]byte(nil), noise...), req...)

	// Partial packet after the noise, then the rest in small pieces
	assert.Empty(t, f.Feed(stream[:12]))
	assert.Empty(t, f.Feed(stream[12:15]))
	frames := f.Feed(stream[15:])

	require.Len(t, frames, 1)
	assert.Equal(t, uint64(1), f.FalseStarts)
	require.Len(t, rejects, 1)
	assert.ErrorIs(t, rejects[0], ErrTooShort)
	assert.Equal(t, uint64(len(noise)), f.Discarded)
	assert.Equal(t, 0, f.Buffered())
}

func TestFramerCapsBuffer(t *testing.T) {
	f := NewFramer(DefaultFramerLimit, DefaultFramerKeep)

	f.Feed(make([]byte, 5000))
	assert.Equal(t, DefaultFramerKeep, f.Buffered())
	assert.Equal(t, uint64(5000-DefaultFramerKeep), f.Discarded)

	// Still finds packets after truncation
	req := BuildReadRequest(DefaultAddressing(), FncStatusRequest, StatusBase, StatusCount)
	assert.Len(t, f.Feed(req), 1)
}

func TestFramerReset(t *testing.T) {
	f := NewFramer(0, 0)
	f.Feed([]byte{0x69, 0x02})
	assert.Equal(t, 2, f.Buffered())
	f.Reset()
	assert.Equal(t, 0, f.Buffered())
}

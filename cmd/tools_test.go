// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

func statusRequest() []byte {
	return geco.BuildReadRequest(geco.DefaultAddressing(), geco.FncStatusRequest, geco.StatusBase, geco.StatusCount)
}

func statusResponse(t *testing.T) []byte {
	t.Helper()
	regs := make([]uint16, geco.StatusCount)
	regs[4] = 215
	data, err := geco.BuildResponse(geco.DefaultAddressing().Reply(), geco.FncStatusResponse, geco.StatusBase, regs)
	require.NoError(t, err)
	return data
}

// ============================================================
// Bus Watcher Tests
// ============================================================

func TestBusWatcherSync(t *testing.T) {
	var synced []uint64
	var events []busEvent
	w := newBusWatcher(
		func(n uint64) { synced = append(synced, n) },
		func(ev busEvent) { events = append(events, ev) },
	)

	// Noise before the first packet only counts towards the sync offset
	noise := []byte{0x00, 0x69, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}
	w.feed(noise)
	w.feed(statusRequest())
	require.Len(t, synced, 1)
	assert.Equal(t, uint64(len(noise)), synced[0])
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].packet)
	assert.NoError(t, events[0].decodeErr)

	// After sync a bad start byte is an event of its own
	w.feed([]byte{0x69, 0, 0, 0, 0, 0, 1, 0, 0})
	w.feed(statusResponse(t))
	assert.Len(t, synced, 1, "sync reported once")
	require.Len(t, events, 3)
	assert.Error(t, events[1].decodeErr)
	assert.True(t, events[2].packet.IsResponse())
}

// ============================================================
// Replay Tests
// ============================================================

func TestReplayCapture(t *testing.T) {
	var buf bytes.Buffer
	cw := geco.NewCaptureWriter(&buf)
	now := time.Now()

	req := statusRequest()
	resp := statusResponse(t)
	// Split the response across two records
	require.NoError(t, cw.Write(geco.DirectionRX, req, now))
	require.NoError(t, cw.Write(geco.DirectionTX, req, now))
	require.NoError(t, cw.Write(geco.DirectionRX, resp[:10], now))
	require.NoError(t, cw.Write(geco.DirectionRX, resp[10:], now.Add(time.Millisecond)))

	var seen []*geco.Packet
	sum, err := replayCapture(&buf, func(rec geco.CaptureRecord, frame geco.Frame) {
		seen = append(seen, frame.Packet)
	})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Records)
	assert.Equal(t, len(req)+len(resp), sum.Bytes, "tx records are not fed")
	require.Len(t, seen, 2)
	assert.False(t, seen[0].IsResponse())
	assert.True(t, seen[1].IsResponse())
	assert.Equal(t, uint64(2), sum.Stats.TotalPackets)
	assert.Equal(t, uint64(1), sum.Stats.Requests)
	assert.Equal(t, uint64(1), sum.Stats.Responses)
}

func TestReplayCaptureCorrupt(t *testing.T) {
	_, err := replayCapture(bytes.NewReader([]byte{0xFF, 0xFF}), nil)
	assert.Error(t, err)
}

// ============================================================
// Register Listing Tests
// ============================================================

func TestListRegisters(t *testing.T) {
	all := listRegisters(false)
	writable := listRegisters(true)
	require.NotEmpty(t, writable)
	assert.Less(t, len(writable), len(all))

	for _, r := range writable {
		assert.True(t, r.Writable, r.Name)
		assert.Equal(t, "config", r.Block)
	}

	var found bool
	for _, r := range all {
		if r.Name == "TapWaterTemp" {
			found = true
			assert.Equal(t, uint16(305), r.Address)
			require.NotNil(t, r.Min)
			assert.Equal(t, 10.0, *r.Min)
			assert.Equal(t, 60.0, *r.Max)
		}
	}
	assert.True(t, found)
}

func TestWriteStructured(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, outputYAML, map[string]int{"T1": 21}))
	assert.Equal(t, "T1: 21\n", buf.String())

	buf.Reset()
	require.NoError(t, writeStructured(&buf, outputJSON, map[string]int{"T1": 21}))
	assert.Equal(t, "{\n  \"T1\": 21\n}\n", buf.String())

	assert.Error(t, checkOutput("xml"))
}

// ============================================================
// Error Detection TUI Tests
// ============================================================

func TestErrorDetectionModel(t *testing.T) {
	m := initialModel("Test link", 10, false)

	next, _ := m.Update(syncMsg{invalidBytes: 7})
	m = next.(model)
	assert.True(t, m.synchronized)
	assert.Contains(t, m.errorLog[0].message, "7 invalid bytes")

	packet, err := geco.ParsePacket(statusResponse(t))
	require.NoError(t, err)
	next, _ = m.Update(serialDataMsg{packet: packet})
	m = next.(model)
	require.NotNil(t, m.lastStatus)
	assert.Equal(t, 21.5, m.lastStatus.T1)
	assert.Equal(t, uint64(1), m.stats.Responses)

	next, _ = m.Update(serialDataMsg{decodeErr: geco.ErrHeaderChecksum})
	m = next.(model)
	assert.Equal(t, uint64(1), m.stats.FalseStarts)
	assert.Equal(t, uint64(1), m.stats.HeaderCRCErrors)
	assert.True(t, m.errorLog[len(m.errorLog)-1].isError)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(model)
	assert.Zero(t, m.stats.TotalPackets)
	assert.Contains(t, m.View(), "Latest Status")
}

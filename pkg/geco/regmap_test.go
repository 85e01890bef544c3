// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Register Table Tests
// ============================================================

func TestRegisterTables(t *testing.T) {
	for _, b := range []Block{BlockStatus, BlockConfig} {
		seen := map[string]bool{}
		for _, def := range b.Definitions() {
			assert.False(t, seen[def.Name], "%s: duplicate name %s", b, def.Name)
			seen[def.Name] = true
			assert.Less(t, def.Offset, int(b.Count()), "%s: %s offset", b, def.Name)
		}
	}

	assert.Len(t, statusRegisters, 18+5)
	assert.Len(t, configRegisters, 24+3)
	for _, def := range statusRegisters {
		assert.False(t, def.Writable, "status register %s must not be writable", def.Name)
	}
}

func TestLookup(t *testing.T) {
	def, block, ok := Lookup("TapWaterTemp")
	require.True(t, ok)
	assert.Equal(t, BlockConfig, block)
	assert.Equal(t, 5, def.Offset)
	assert.Equal(t, TypeSignedTenths, def.Type)

	_, block, ok = Lookup("T3")
	require.True(t, ok)
	assert.Equal(t, BlockStatus, block)

	_, _, ok = Lookup("NoSuchRegister")
	assert.False(t, ok)
}

func TestWritableConfigs(t *testing.T) {
	defs := WritableConfigs()
	assert.Len(t, defs, 23)
	for _, def := range defs {
		assert.NotEqual(t, "InstallationScheme", def.Name)
	}
}

func TestBlockForResponse(t *testing.T) {
	b, ok := BlockForResponse(FncStatusResponse)
	assert.True(t, ok)
	assert.Equal(t, BlockStatus, b)

	b, ok = BlockForResponse(FncConfigResponse)
	assert.True(t, ok)
	assert.Equal(t, BlockConfig, b)

	_, ok = BlockForResponse(FncStatusRequest)
	assert.False(t, ok)
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecodeTenths(t *testing.T) {
	assert.Equal(t, 20.0, DecodeTenths(0x00C8))
	assert.Equal(t, -20.0, DecodeTenths(0xFF38))
	assert.Equal(t, 0.0, DecodeTenths(0))
	assert.Equal(t, -0.1, DecodeTenths(0xFFFF))
}

func TestDecodeBitProgram(t *testing.T) {
	assert.Equal(t, strings.Repeat("0", 24), DecodeBitProgram(0, 0))
	assert.Equal(t, "1"+strings.Repeat("0", 23), DecodeBitProgram(0, 0x0001))
	// bit 16 is the lowest bit of the high word
	assert.Equal(t, strings.Repeat("0", 16)+"1"+strings.Repeat("0", 7), DecodeBitProgram(0x0001, 0))
	assert.Equal(t, strings.Repeat("1", 24), DecodeBitProgram(0x00FF, 0xFFFF))
	// bits above 23 are ignored
	assert.Equal(t, strings.Repeat("0", 24), DecodeBitProgram(0xFF00, 0))
}

func TestDecodeStatusBlock(t *testing.T) {
	regs := make([]uint16, StatusCount)
	regs[0] = 24<<8 | 3
	regs[1] = 15<<8 | 5
	regs[2] = 12<<8 | 30
	regs[3] = 45 << 8
	regs[4] = 0x00C8
	regs[5] = 0xFF38
	regs[14] = 0x0005
	regs[15] = 1
	regs[16] = 250

	m := DecodeBlock(BlockStatus, regs)
	assert.Equal(t, 2024, m["Year"])
	assert.Equal(t, 3, m["Month"])
	assert.Equal(t, 15, m["Day"])
	assert.Equal(t, 5, m["Weekday"])
	assert.Equal(t, 12, m["Hour"])
	assert.Equal(t, 30, m["Minute"])
	assert.Equal(t, 45, m["Second"])
	assert.Equal(t, 20.0, m["T1"])
	assert.Equal(t, -20.0, m["T2"])
	assert.Equal(t, uint16(5), m["StatusBits"])
	assert.Equal(t, true, m["FanON"])
	assert.Equal(t, false, m["CirculationPumpON"])
	assert.Equal(t, true, m["HeatPumpON"])
	assert.Equal(t, true, m["IsManual"])
	assert.Equal(t, uint16(250), m["EV1"])

	_, hasLow := m["DateYearMonth"]
	assert.False(t, hasLow, "packed words are exposed through their parts only")
}

func TestDecodeShortBlock(t *testing.T) {
	m := DecodeBlock(BlockStatus, []uint16{0x1803, 0x0F05, 0x0C1E, 0x2D00, 0x00C8, 0x00D2})

	assert.Contains(t, m, "T2")
	assert.NotContains(t, m, "T3")
	assert.NotContains(t, m, "StatusBits")
	assert.NotContains(t, m, "FanON", "flags need their source word")
}

func TestDecodeConfigPrograms(t *testing.T) {
	regs := make([]uint16, ConfigCount)
	regs[8] = 0x0080  // hour 23
	regs[9] = 0x0001  // hour 0
	regs[12] = 0x0000 // Sun hi

	m := DecodeBlock(BlockConfig, regs)
	assert.Equal(t, "1"+strings.Repeat("0", 22)+"1", m["TimeProgramHPM_F"])

	// Program needs both words present
	m = DecodeBlock(BlockConfig, regs[:13])
	assert.Contains(t, m, "TimeProgramHPSat")
	assert.NotContains(t, m, "TimeProgramHPSun")
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name   string
		reg    string
		value  interface{}
		offset int
		raw    uint16
	}{
		{"tenths float", "TapWaterTemp", 50.5, 5, 505},
		{"tenths int", "TapWaterTemp", 45, 5, 450},
		{"tenths string", "TapWaterTemp", "47.3", 5, 473},
		{"tenths negative", "AmbientMinTemp", -5.5, 7, 0xFFC9},
		{"tenths binary fraction", "TapWaterHysteresis", 2.7, 6, 27},
		{"bool true", "HeatPumpEnabled", true, 1, 1},
		{"bool on", "HeatPumpEnabled", "on", 1, 1},
		{"bool off", "HeaterEEnabled", "OFF", 2, 0},
		{"bool number", "AntiFreezingEnabled", 1, 14, 1},
		{"word", "FanOperationMode", 2, 16, 2},
		{"word string", "DefrostingInterval", "45", 17, 45},
		{"word float truncates", "DefrostingMaxTime", 5.9, 20, 5},
		{"program word", "TimeProgramHPM_F_lo", 0xFFFF, 9, 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, raw, err := EncodeValue(tt.reg, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.offset, offset)
			assert.Equal(t, tt.raw, raw)
		})
	}
}

func TestEncodeValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		reg   string
		value interface{}
		want  error
	}{
		{"unknown", "NoSuchRegister", 1, ErrUnknownRegister},
		{"status register", "T1", 20.0, ErrNotWritable},
		{"read only config", "InstallationScheme", 2, ErrNotWritable},
		{"derived program", "TimeProgramHPSat", "000000000000000000000000", ErrNotWritable},
		{"above range", "TapWaterTemp", 70, ErrOutOfRange},
		{"below range", "DefrostingInterval", 10, ErrOutOfRange},
		{"negative word", "TimeProgramHPM_F_hi", -1, ErrOutOfRange},
		{"word overflow", "TimeProgramHPM_F_hi", 70000, ErrOutOfRange},
		{"bad bool", "HeatPumpEnabled", "maybe", ErrBadValue},
		{"bad number", "TapWaterTemp", "hot", ErrBadValue},
		{"bad type", "FanOperationMode", []int{1}, ErrBadValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := EncodeValue(tt.reg, tt.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)

			var eerr *EncodeError
			require.True(t, errors.As(err, &eerr))
			assert.Equal(t, tt.reg, eerr.Register)
		})
	}
}

// Encoding a decoded tenths value must reproduce the original word
func TestTenthsRoundTrip(t *testing.T) {
	for raw := -300; raw <= 600; raw++ {
		word := uint16(int16(raw))
		v := DecodeTenths(word)
		if v < 10 || v > 60 {
			continue
		}
		_, got, err := EncodeValue("TapWaterTemp", v)
		require.NoError(t, err, "value %v", v)
		assert.Equal(t, word, got, "value %v", v)
	}
}

// ============================================================
// Snapshot Tests
// ============================================================

func TestDecodeStatusRecord(t *testing.T) {
	regs := make([]uint16, StatusCount)
	regs[0] = 24<<8 | 11
	regs[4] = 0x00C8
	regs[13] = 0xFF38
	regs[14] = 0x0018
	regs[17] = 2

	r := DecodeStatus(regs)
	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, 11, r.Month)
	assert.Equal(t, 20.0, r.T1)
	assert.Equal(t, -20.0, r.T10)
	assert.True(t, r.CompressorON)
	assert.True(t, r.HeaterEON)
	assert.False(t, r.FanON)
	assert.Equal(t, uint16(2), r.WaitingStatus)
	assert.Equal(t, StatusCount, r.Registers)
	assert.True(t, r.Has("WaitingStatus"))
	assert.Equal(t, 20.0, r.Map()["T1"])
}

func TestDecodeStatusRecordPartial(t *testing.T) {
	r := DecodeStatus([]uint16{0, 0, 0, 0, 0x00C8})
	assert.True(t, r.Has("T1"))
	assert.False(t, r.Has("T2"))
	assert.False(t, r.Has("HeatPumpON"))
	assert.Equal(t, 0.0, r.T2)
}

func TestDecodeConfigRecord(t *testing.T) {
	regs := make([]uint16, ConfigCount)
	regs[0] = 3
	regs[1] = 1
	regs[5] = 500
	regs[7] = 0xFFC9
	regs[13] = 0x0003

	r := DecodeConfig(regs)
	assert.Equal(t, uint16(3), r.InstallationScheme)
	assert.True(t, r.HeatPumpEnabled)
	assert.Equal(t, 50.0, r.TapWaterTemp)
	assert.Equal(t, -5.5, r.AmbientMinTemp)
	assert.Equal(t, uint16(3), r.TimeProgramHPSun_lo)
	assert.Equal(t, "11"+strings.Repeat("0", 22), r.TimeProgramHPSun)
	assert.True(t, r.Has("TimeProgramHPSun"))

	// Map is a copy
	m := r.Map()
	m["TapWaterTemp"] = 0.0
	assert.Equal(t, 50.0, r.Map()["TapWaterTemp"])
}

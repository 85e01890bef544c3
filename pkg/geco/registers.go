// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

// RegisterType is the semantic type of a register slot
type RegisterType int

// Register types
const (
	TypeWord RegisterType = iota
	TypeSignedTenths
	TypeBoolean
	TypeBitmaskFlag
	TypePackedDate
	TypePackedTime
	TypeBitProgram
)

// String returns the short name of a register type
func (t RegisterType) String() string {
	switch t {
	case TypeWord:
		return "word"
	case TypeSignedTenths:
		return "te10"
	case TypeBoolean:
		return "bool"
	case TypeBitmaskFlag:
		return "mask"
	case TypePackedDate:
		return "date"
	case TypePackedTime:
		return "time"
	case TypeBitProgram:
		return "tprg"
	default:
		return "unknown"
	}
}

// Range is an inclusive valid range in logical units (degrees for
// TypeSignedTenths, the plain integer otherwise).
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// RegisterDefinition describes one named slot of a register block
type RegisterDefinition struct {
	Offset      int
	Name        string
	Type        RegisterType
	Description string
	Writable    bool
	Range       *Range

	// TypeBitmaskFlag
	Mask uint16

	// TypePackedDate / TypePackedTime: names of the high and low byte fields.
	// An empty LowName means the low byte is unused. HighBias is added to the
	// high byte (2000 for the year).
	HighName string
	LowName  string
	HighBias int

	// TypeBitProgram: offset of the low word (Offset holds the high word)
	LowOffset int
}

// Block identifies a register group
type Block int

// Register blocks
const (
	BlockStatus Block = iota
	BlockConfig
)

// String returns the block name
func (b Block) String() string {
	if b == BlockConfig {
		return "config"
	}
	return "status"
}

// Base returns the first register address of the block
func (b Block) Base() uint16 {
	if b == BlockConfig {
		return ConfigBase
	}
	return StatusBase
}

// Count returns the number of registers requested for the block
func (b Block) Count() uint8 {
	if b == BlockConfig {
		return ConfigCount
	}
	return StatusCount
}

// RequestFunction returns the read request function code for the block
func (b Block) RequestFunction() uint8 {
	if b == BlockConfig {
		return FncConfigRequest
	}
	return FncStatusRequest
}

// ResponseFunction returns the response function code for the block
func (b Block) ResponseFunction() uint8 {
	return ResponseFunction(b.RequestFunction())
}

// Definitions returns the register table of the block
func (b Block) Definitions() []RegisterDefinition {
	if b == BlockConfig {
		return configRegisters
	}
	return statusRegisters
}

// BlockForResponse maps a response function code to its block
func BlockForResponse(fnc uint8) (Block, bool) {
	switch fnc {
	case FncStatusResponse:
		return BlockStatus, true
	case FncConfigResponse:
		return BlockConfig, true
	}
	return 0, false
}

func rng(min, max float64) *Range {
	return &Range{Min: min, Max: max}
}

// statusRegisters is the read-only telemetry block (base 100)
var statusRegisters = []RegisterDefinition{
	{Offset: 0, Name: "DateYearMonth", Type: TypePackedDate, Description: "Year (hi) / Month (lo)", HighName: "Year", LowName: "Month", HighBias: 2000},
	{Offset: 1, Name: "DateDayWeekday", Type: TypePackedDate, Description: "Day (hi) / Weekday (lo)", HighName: "Day", LowName: "Weekday"},
	{Offset: 2, Name: "TimeHourMinute", Type: TypePackedTime, Description: "Hour (hi) / Minute (lo)", HighName: "Hour", LowName: "Minute"},
	{Offset: 3, Name: "TimeSecond", Type: TypePackedTime, Description: "Second (hi)", HighName: "Second"},

	{Offset: 4, Name: "T1", Type: TypeSignedTenths, Description: "Ambient temperature"},
	{Offset: 5, Name: "T2", Type: TypeSignedTenths, Description: "Tank bottom temperature"},
	{Offset: 6, Name: "T3", Type: TypeSignedTenths, Description: "Tank top temperature"},
	{Offset: 7, Name: "T4", Type: TypeSignedTenths, Description: "Solid fuel boiler temperature"},
	{Offset: 8, Name: "T5", Type: TypeSignedTenths, Description: "Void sensor"},
	{Offset: 9, Name: "T6", Type: TypeSignedTenths, Description: "Water inlet temperature"},
	{Offset: 10, Name: "T7", Type: TypeSignedTenths, Description: "Water outlet temperature"},
	{Offset: 11, Name: "T8", Type: TypeSignedTenths, Description: "Evaporator temperature"},
	{Offset: 12, Name: "T9", Type: TypeSignedTenths, Description: "Before compressor temperature"},
	{Offset: 13, Name: "T10", Type: TypeSignedTenths, Description: "After compressor temperature"},

	{Offset: 14, Name: "StatusBits", Type: TypeWord, Description: "Combined status bitmask"},
	{Offset: 15, Name: "IsManual", Type: TypeBoolean, Description: "Manual mode active"},
	{Offset: 16, Name: "EV1", Type: TypeWord, Description: "Expansion valve position"},
	{Offset: 17, Name: "WaitingStatus", Type: TypeWord, Description: "0=available, 2=disabled"},

	// Derived from StatusBits after the word pass
	{Offset: 14, Name: "FanON", Type: TypeBitmaskFlag, Mask: 0x0001},
	{Offset: 14, Name: "CirculationPumpON", Type: TypeBitmaskFlag, Mask: 0x0002},
	{Offset: 14, Name: "HeatPumpON", Type: TypeBitmaskFlag, Mask: 0x0004},
	{Offset: 14, Name: "CompressorON", Type: TypeBitmaskFlag, Mask: 0x0008},
	{Offset: 14, Name: "HeaterEON", Type: TypeBitmaskFlag, Mask: 0x0010},
}

// configRegisters is the read/write settings block (base 300)
var configRegisters = []RegisterDefinition{
	{Offset: 0, Name: "InstallationScheme", Type: TypeWord, Description: "Installation scheme (1-9)", Range: rng(1, 9)},
	{Offset: 1, Name: "HeatPumpEnabled", Type: TypeBoolean, Description: "Heat pump enabled", Writable: true, Range: rng(0, 1)},
	{Offset: 2, Name: "HeaterEEnabled", Type: TypeBoolean, Description: "Electric heater enabled", Writable: true, Range: rng(0, 1)},
	{Offset: 3, Name: "HeaterEPowerLimit", Type: TypeWord, Description: "Electric heater power limit", Writable: true, Range: rng(0, 3)},
	{Offset: 4, Name: "TapWaterSensor", Type: TypeWord, Description: "Controlling sensor (0=T2,1=T3,2=T7)", Writable: true, Range: rng(0, 2)},
	{Offset: 5, Name: "TapWaterTemp", Type: TypeSignedTenths, Description: "Target temperature", Writable: true, Range: rng(10, 60)},
	{Offset: 6, Name: "TapWaterHysteresis", Type: TypeSignedTenths, Description: "Start-up hysteresis", Writable: true, Range: rng(2, 10)},
	{Offset: 7, Name: "AmbientMinTemp", Type: TypeSignedTenths, Description: "Min ambient temp", Writable: true, Range: rng(-10, 10)},

	{Offset: 8, Name: "TimeProgramHPM_F_hi", Type: TypeWord, Description: "Time program HP Mon-Fri (hi)", Writable: true, Range: rng(0, 65535)},
	{Offset: 9, Name: "TimeProgramHPM_F_lo", Type: TypeWord, Description: "Time program HP Mon-Fri (lo)", Writable: true, Range: rng(0, 65535)},
	{Offset: 10, Name: "TimeProgramHPSat_hi", Type: TypeWord, Description: "Time program HP Saturday (hi)", Writable: true, Range: rng(0, 65535)},
	{Offset: 11, Name: "TimeProgramHPSat_lo", Type: TypeWord, Description: "Time program HP Saturday (lo)", Writable: true, Range: rng(0, 65535)},
	{Offset: 12, Name: "TimeProgramHPSun_hi", Type: TypeWord, Description: "Time program HP Sunday (hi)", Writable: true, Range: rng(0, 65535)},
	{Offset: 13, Name: "TimeProgramHPSun_lo", Type: TypeWord, Description: "Time program HP Sunday (lo)", Writable: true, Range: rng(0, 65535)},

	{Offset: 14, Name: "AntiFreezingEnabled", Type: TypeBoolean, Description: "Anti-freezing protection", Writable: true, Range: rng(0, 1)},
	{Offset: 15, Name: "WaterPumpOperationMode", Type: TypeWord, Description: "Pump mode (0=Continuous,1=Synchronous)", Writable: true, Range: rng(0, 1)},
	{Offset: 16, Name: "FanOperationMode", Type: TypeWord, Description: "Fan mode (0=Max,1=Min,2=Day/Night)", Writable: true, Range: rng(0, 2)},

	{Offset: 17, Name: "DefrostingInterval", Type: TypeWord, Description: "Defrost delay (30-90 min)", Writable: true, Range: rng(30, 90)},
	{Offset: 18, Name: "DefrostingStartTemp", Type: TypeSignedTenths, Description: "Defrost start temp", Writable: true, Range: rng(-30, 0)},
	{Offset: 19, Name: "DefrostingStopTemp", Type: TypeSignedTenths, Description: "Defrost stop temp", Writable: true, Range: rng(2, 30)},
	{Offset: 20, Name: "DefrostingMaxTime", Type: TypeWord, Description: "Max defrost duration (1-12 min)", Writable: true, Range: rng(1, 12)},

	{Offset: 21, Name: "ExtControllerHPOFF", Type: TypeBoolean, Description: "External HP deactivation", Writable: true, Range: rng(0, 1)},

	{Offset: 22, Name: "CircPumpMinTemp", Type: TypeSignedTenths, Description: "Min circ pump temp", Writable: true, Range: rng(20, 60)},
	{Offset: 23, Name: "CircPumpMode", Type: TypeWord, Description: "Circ pump mode (0=Intermittent,1=Continuous)", Writable: true, Range: rng(0, 1)},

	// Hour-by-hour views over the word pairs above
	{Offset: 8, LowOffset: 9, Name: "TimeProgramHPM_F", Type: TypeBitProgram, Description: "Heat pump schedule Mon-Fri"},
	{Offset: 10, LowOffset: 11, Name: "TimeProgramHPSat", Type: TypeBitProgram, Description: "Heat pump schedule Saturday"},
	{Offset: 12, LowOffset: 13, Name: "TimeProgramHPSun", Type: TypeBitProgram, Description: "Heat pump schedule Sunday"},
}

// Lookup finds a register definition by name in either block
func Lookup(name string) (RegisterDefinition, Block, bool) {
	for _, b := range []Block{BlockStatus, BlockConfig} {
		for _, def := range b.Definitions() {
			if def.Name == name {
				return def, b, true
			}
		}
	}
	return RegisterDefinition{}, 0, false
}

// WritableConfigs returns the definitions of every writable config register
func WritableConfigs() []RegisterDefinition {
	var defs []RegisterDefinition
	for _, def := range configRegisters {
		if def.Writable {
			defs = append(defs, def)
		}
	}
	return defs
}

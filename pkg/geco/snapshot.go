// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import "time"

// StatusRecord is a decoded status block (base 100). Fields whose register
// was not received are left at their zero value and Has reports false.
type StatusRecord struct {
	Year, Month, Day, Weekday int
	Hour, Minute, Second      int

	T1, T2, T3, T4, T5, T6, T7, T8, T9, T10 float64

	StatusBits        uint16
	FanON             bool
	CirculationPumpON bool
	HeatPumpON        bool
	CompressorON      bool
	HeaterEON         bool

	IsManual      bool
	EV1           uint16
	WaitingStatus uint16

	// Registers is the number of registers the record was decoded from
	Registers int
	// Raw holds the received words for diagnostics
	Raw        []uint16
	ReceivedAt time.Time

	fields map[string]interface{}
}

// DecodeStatus decodes a status register block starting at StatusBase
func DecodeStatus(regs []uint16) StatusRecord {
	m := DecodeBlock(BlockStatus, regs)
	r := StatusRecord{
		Registers:  len(regs),
		Raw:        append([]uint16(nil), regs...),
		ReceivedAt: time.Now(),
		fields:     m,
	}

	r.Year = intField(m, "Year")
	r.Month = intField(m, "Month")
	r.Day = intField(m, "Day")
	r.Weekday = intField(m, "Weekday")
	r.Hour = intField(m, "Hour")
	r.Minute = intField(m, "Minute")
	r.Second = intField(m, "Second")

	temps := []*float64{&r.T1, &r.T2, &r.T3, &r.T4, &r.T5, &r.T6, &r.T7, &r.T8, &r.T9, &r.T10}
	for i, t := range temps {
		*t = floatField(m, statusRegisters[4+i].Name)
	}

	r.StatusBits = wordField(m, "StatusBits")
	r.FanON = boolField(m, "FanON")
	r.CirculationPumpON = boolField(m, "CirculationPumpON")
	r.HeatPumpON = boolField(m, "HeatPumpON")
	r.CompressorON = boolField(m, "CompressorON")
	r.HeaterEON = boolField(m, "HeaterEON")
	r.IsManual = boolField(m, "IsManual")
	r.EV1 = wordField(m, "EV1")
	r.WaitingStatus = wordField(m, "WaitingStatus")

	return r
}

// Has reports whether the named field was decoded
func (r StatusRecord) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Map returns the decoded fields keyed by name
func (r StatusRecord) Map() map[string]interface{} {
	return copyFields(r.fields)
}

// ConfigRecord is a decoded config block (base 300)
type ConfigRecord struct {
	InstallationScheme uint16
	HeatPumpEnabled    bool
	HeaterEEnabled     bool
	HeaterEPowerLimit  uint16
	TapWaterSensor     uint16
	TapWaterTemp       float64
	TapWaterHysteresis float64
	AmbientMinTemp     float64

	TimeProgramHPM_F_hi uint16
	TimeProgramHPM_F_lo uint16
	TimeProgramHPSat_hi uint16
	TimeProgramHPSat_lo uint16
	TimeProgramHPSun_hi uint16
	TimeProgramHPSun_lo uint16

	AntiFreezingEnabled    bool
	WaterPumpOperationMode uint16
	FanOperationMode       uint16

	DefrostingInterval  uint16
	DefrostingStartTemp float64
	DefrostingStopTemp  float64
	DefrostingMaxTime   uint16

	ExtControllerHPOFF bool

	CircPumpMinTemp float64
	CircPumpMode    uint16

	TimeProgramHPM_F string
	TimeProgramHPSat string
	TimeProgramHPSun string

	Registers  int
	Raw        []uint16
	ReceivedAt time.Time

	fields map[string]interface{}
}

// DecodeConfig decodes a config register block starting at ConfigBase
func DecodeConfig(regs []uint16) ConfigRecord {
	m := DecodeBlock(BlockConfig, regs)
	return ConfigRecord{
		InstallationScheme:     wordField(m, "InstallationScheme"),
		HeatPumpEnabled:        boolField(m, "HeatPumpEnabled"),
		HeaterEEnabled:         boolField(m, "HeaterEEnabled"),
		HeaterEPowerLimit:      wordField(m, "HeaterEPowerLimit"),
		TapWaterSensor:         wordField(m, "TapWaterSensor"),
		TapWaterTemp:           floatField(m, "TapWaterTemp"),
		TapWaterHysteresis:     floatField(m, "TapWaterHysteresis"),
		AmbientMinTemp:         floatField(m, "AmbientMinTemp"),
		TimeProgramHPM_F_hi:    wordField(m, "TimeProgramHPM_F_hi"),
		TimeProgramHPM_F_lo:    wordField(m, "TimeProgramHPM_F_lo"),
		TimeProgramHPSat_hi:    wordField(m, "TimeProgramHPSat_hi"),
		TimeProgramHPSat_lo:    wordField(m, "TimeProgramHPSat_lo"),
		TimeProgramHPSun_hi:    wordField(m, "TimeProgramHPSun_hi"),
		TimeProgramHPSun_lo:    wordField(m, "TimeProgramHPSun_lo"),
		AntiFreezingEnabled:    boolField(m, "AntiFreezingEnabled"),
		WaterPumpOperationMode: wordField(m, "WaterPumpOperationMode"),
		FanOperationMode:       wordField(m, "FanOperationMode"),
		DefrostingInterval:     wordField(m, "DefrostingInterval"),
		DefrostingStartTemp:    floatField(m, "DefrostingStartTemp"),
		DefrostingStopTemp:     floatField(m, "DefrostingStopTemp"),
		DefrostingMaxTime:      wordField(m, "DefrostingMaxTime"),
		ExtControllerHPOFF:     boolField(m, "ExtControllerHPOFF"),
		CircPumpMinTemp:        floatField(m, "CircPumpMinTemp"),
		CircPumpMode:           wordField(m, "CircPumpMode"),
		TimeProgramHPM_F:       stringField(m, "TimeProgramHPM_F"),
		TimeProgramHPSat:       stringField(m, "TimeProgramHPSat"),
		TimeProgramHPSun:       stringField(m, "TimeProgramHPSun"),
		Registers:              len(regs),
		Raw:                    append([]uint16(nil), regs...),
		ReceivedAt:             time.Now(),
		fields:                 m,
	}
}

// Has reports whether the named field was decoded
func (r ConfigRecord) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Map returns the decoded fields keyed by name
func (r ConfigRecord) Map() map[string]interface{} {
	return copyFields(r.fields)
}

// Field value extraction helpers

func wordField(m map[string]interface{}, name string) uint16 {
	v, _ := m[name].(uint16)
	return v
}

func floatField(m map[string]interface{}, name string) float64 {
	v, _ := m[name].(float64)
	return v
}

func boolField(m map[string]interface{}, name string) bool {
	v, _ := m[name].(bool)
	return v
}

func intField(m map[string]interface{}, name string) int {
	v, _ := m[name].(int)
	return v
}

func stringField(m map[string]interface{}, name string) string {
	v, _ := m[name].(string)
	return v
}

func copyFields(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

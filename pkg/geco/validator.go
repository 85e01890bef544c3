// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	ANOMALY_LENGTH_MISMATCH AnomalyType = iota
	ANOMALY_UNKNOWN_FUNCTION
	ANOMALY_UNKNOWN_SUBFUNCTION
	ANOMALY_UNEXPECTED_START
	ANOMALY_INVALID_COUNT
	ANOMALY_OUT_OF_RANGE
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case ANOMALY_LENGTH_MISMATCH:
		return "length_mismatch"
	case ANOMALY_UNKNOWN_FUNCTION:
		return "unknown_function"
	case ANOMALY_UNKNOWN_SUBFUNCTION:
		return "unknown_subfunction"
	case ANOMALY_UNEXPECTED_START:
		return "unexpected_start"
	case ANOMALY_INVALID_COUNT:
		return "invalid_count"
	case ANOMALY_OUT_OF_RANGE:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// ValidationError represents a packet that parsed but looks wrong
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// plausible temperature range of a status sensor in degrees
const (
	minSensorTemp = -50.0
	maxSensorTemp = 150.0
)

// ValidatePacket checks a well-formed packet for protocol anomalies.
// Returns a slice of validation errors (empty if packet is valid).
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}

	switch p.function {
	case FncStatusRequest, FncStatusResponse, FncConfigRequest, FncConfigResponse:
	default:
		return []ValidationError{{
			Type:    ANOMALY_UNKNOWN_FUNCTION,
			Message: fmt.Sprintf("Unknown function code 0x%02X", p.function),
			Details: map[string]interface{}{"function": p.function},
		}}
	}

	if !p.hasRegisters {
		return []ValidationError{{
			Type:    ANOMALY_LENGTH_MISMATCH,
			Message: fmt.Sprintf("Payload too short for register fields (%d bytes)", len(p.payload)),
			Details: map[string]interface{}{"length": len(p.payload), "minimum": plDataStart},
		}}
	}

	if p.subFunction != SubFncRead && p.subFunction != SubFncWrite {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_UNKNOWN_SUBFUNCTION,
			Message: fmt.Sprintf("Unknown sub-function 0x%02X", p.subFunction),
			Details: map[string]interface{}{"sub_function": p.subFunction},
		})
	}

	block, _ := BlockForResponse(ResponseFunction(p.function))
	if p.registerStart < block.Base() || p.registerStart >= block.Base()+uint16(block.Count()) {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_UNEXPECTED_START,
			Message: fmt.Sprintf("Register start %d outside %s block (%d..%d)", p.registerStart, block, block.Base(), block.Base()+uint16(block.Count())-1),
			Details: map[string]interface{}{"start": p.registerStart, "block": block.String()},
		})
	}

	if p.registerCount == 0 {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_INVALID_COUNT,
			Message: "Register count is zero",
			Details: map[string]interface{}{"count": 0},
		})
	}

	// Responses and writes carry count*2 data bytes
	if p.IsResponse() || p.IsWrite() {
		expected := plDataStart + int(p.registerCount)*2
		if len(p.payload) != expected {
			errors = append(errors, ValidationError{
				Type: ANOMALY_LENGTH_MISMATCH,
				Message: fmt.Sprintf("Payload length mismatch: received=%d, expected=%d (count=%d)",
					len(p.payload), expected, p.registerCount),
				Details: map[string]interface{}{
					"received": len(p.payload),
					"expected": expected,
					"count":    p.registerCount,
				},
			})
		}
	}

	if p.function == FncStatusResponse && p.registerStart == StatusBase {
		errors = append(errors, validateStatusValues(p)...)
	}

	return errors
}

// validateStatusValues flags temperatures no sensor could report
func validateStatusValues(p *Packet) []ValidationError {
	errors := []ValidationError{}
	regs := p.Registers()

	for _, def := range statusRegisters {
		if def.Type != TypeSignedTenths || def.Offset >= len(regs) {
			continue
		}
		temp := DecodeTenths(regs[def.Offset])
		if temp < minSensorTemp || temp > maxSensorTemp {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_OUT_OF_RANGE,
				Message: fmt.Sprintf("%s: Out of range (%.1f°C, valid: %.0f to %.0f°C)", def.Name, temp, minSensorTemp, maxSensorTemp),
				Details: map[string]interface{}{"register": def.Name, "value": temp, "min": minSensorTemp, "max": maxSensorTemp},
			})
		}
	}

	return errors
}

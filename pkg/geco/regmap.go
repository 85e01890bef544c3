// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encode failures. Writes failing with any of these never reach the wire.
var (
	ErrUnknownRegister = errors.New("unknown register")
	ErrNotWritable     = errors.New("register is not writable")
	ErrOutOfRange      = errors.New("value out of range")
	ErrBadValue        = errors.New("invalid value")
)

// EncodeError describes a rejected register write
type EncodeError struct {
	Register string
	Value    interface{}
	Err      error
	Detail   string
}

// Error implements the error interface
func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("%s = %v: %v", e.Register, e.Value, e.Err)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the sentinel error
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// tenthsEpsilon absorbs binary floating point error so that e.g. 0.7 * 10
// truncates to 7 rather than 6.
const tenthsEpsilon = 1e-9

// DecodeBlock interprets registers through the block's definitions and
// returns every present field by name. Fields whose offset lies past the
// received data are omitted. Values are uint16 (word), float64 (te10),
// bool (bool, mask), int (date/time parts) or string (time programs).
func DecodeBlock(b Block, regs []uint16) map[string]interface{} {
	result := make(map[string]interface{})
	defs := b.Definitions()

	for _, def := range defs {
		if def.Type == TypeBitmaskFlag || def.Type == TypeBitProgram {
			continue
		}
		if def.Offset >= len(regs) {
			continue
		}
		v := regs[def.Offset]

		switch def.Type {
		case TypeSignedTenths:
			result[def.Name] = DecodeTenths(v)
		case TypeBoolean:
			result[def.Name] = v != 0
		case TypePackedDate, TypePackedTime:
			result[def.HighName] = int(v>>8) + def.HighBias
			if def.LowName != "" {
				result[def.LowName] = int(v & 0xFF)
			}
		default:
			result[def.Name] = v
		}
	}

	for _, def := range defs {
		switch def.Type {
		case TypeBitmaskFlag:
			if def.Offset < len(regs) {
				result[def.Name] = regs[def.Offset]&def.Mask != 0
			}
		case TypeBitProgram:
			if def.Offset < len(regs) && def.LowOffset < len(regs) {
				result[def.Name] = DecodeBitProgram(regs[def.Offset], regs[def.LowOffset])
			}
		}
	}

	return result
}

// DecodeTenths converts a two's complement word in tenths to a float
func DecodeTenths(v uint16) float64 {
	return float64(int16(v)) / 10.0
}

// DecodeBitProgram combines a word pair into a 24 character schedule, one
// '0' or '1' per hour starting at midnight.
func DecodeBitProgram(hi, lo uint16) string {
	combined := uint32(hi)<<16 | uint32(lo)
	var sb strings.Builder
	sb.Grow(24)
	for i := 0; i < 24; i++ {
		if combined&(1<<uint(i)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// EncodeValue validates a user supplied value for a config register and
// returns the register offset and the raw word to splice into the block.
// Accepted shapes depend on the register type: booleans take bool, numbers
// or "true"/"1"/"on"/"yes" (and their negatives); numeric registers take Go
// numbers or numeric strings.
func EncodeValue(name string, value interface{}) (int, uint16, error) {
	def, block, ok := Lookup(name)
	if !ok {
		return 0, 0, &EncodeError{Register: name, Value: value, Err: ErrUnknownRegister}
	}
	if block != BlockConfig || !def.Writable {
		return 0, 0, &EncodeError{Register: name, Value: value, Err: ErrNotWritable}
	}

	raw, err := encodeRaw(def, value)
	if err != nil {
		return 0, 0, err
	}
	return def.Offset, raw, nil
}

func encodeRaw(def RegisterDefinition, value interface{}) (uint16, error) {
	fail := func(err error, detail string) error {
		return &EncodeError{Register: def.Name, Value: value, Err: err, Detail: detail}
	}
	checkRange := func(logical float64) error {
		if def.Range != nil && !def.Range.Contains(logical) {
			return fail(ErrOutOfRange, fmt.Sprintf("valid %g..%g", def.Range.Min, def.Range.Max))
		}
		return nil
	}

	switch def.Type {
	case TypeSignedTenths:
		v, err := toFloat(value)
		if err != nil {
			return 0, fail(ErrBadValue, err.Error())
		}
		tenths := math.Trunc(v*10 + math.Copysign(tenthsEpsilon, v))
		if tenths < math.MinInt16 || tenths > math.MaxInt16 {
			return 0, fail(ErrOutOfRange, "does not fit a signed 16-bit word")
		}
		if err := checkRange(tenths / 10); err != nil {
			return 0, err
		}
		return uint16(int16(tenths)), nil

	case TypeBoolean:
		b, err := toBool(value)
		if err != nil {
			return 0, fail(ErrBadValue, err.Error())
		}
		if b {
			return 1, nil
		}
		return 0, nil

	case TypeWord:
		n, err := toInt(value)
		if err != nil {
			return 0, fail(ErrBadValue, err.Error())
		}
		if err := checkRange(float64(n)); err != nil {
			return 0, err
		}
		if n < 0 || n > math.MaxUint16 {
			return 0, fail(ErrOutOfRange, "does not fit a 16-bit word")
		}
		return uint16(n), nil
	}

	return 0, fail(ErrNotWritable, def.Type.String()+" registers are read-only")
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported type %T", value)
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("unsupported type %T", value)
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "on", "yes":
			return true, nil
		case "false", "0", "off", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", v)
	}
	n, err := toFloat(value)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

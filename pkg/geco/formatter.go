// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s (0x%02X) %d/%d -> %d/%d len=%d\n",
		timestamp, FormatFunctionCode(p.function), p.function,
		p.addr.SrcHard, p.addr.SrcSoft, p.addr.DstHard, p.addr.DstSoft, p.totalLength)

	if p.hasRegisters {
		result += fmt.Sprintf("  %s start=%d count=%d\n", FormatSubFunction(p.subFunction), p.registerStart, p.registerCount)
	}

	if len(p.data) > 0 {
		result += FormatRegisters(p)
	}

	return result
}

// FormatFunctionCode returns the human-readable name for a function code
func FormatFunctionCode(fnc uint8) string {
	switch fnc {
	case FncStatusRequest:
		return "STATUS_REQUEST"
	case FncStatusResponse:
		return "STATUS_RESPONSE"
	case FncConfigRequest:
		return "CONFIG_REQUEST"
	case FncConfigResponse:
		return "CONFIG_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// FormatSubFunction returns the human-readable name for a sub-function code
func FormatSubFunction(sub uint8) string {
	switch sub {
	case SubFncRead:
		return "READ"
	case SubFncWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("SUB_0x%02X", sub)
	}
}

// FormatRegisters decodes the register data of a packet. Blocks that start at
// a known base are shown by name, anything else as raw words.
func FormatRegisters(p *Packet) string {
	regs := p.Registers()
	block, known := BlockForResponse(ResponseFunction(p.function))
	if !known || p.registerStart != block.Base() {
		return formatRawRegisters(p.registerStart, regs)
	}

	fields := DecodeBlock(block, regs)
	return FormatFields(fields)
}

// FormatFields renders a decoded field map sorted by name
func FormatFields(fields map[string]interface{}) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("    %-24s %s\n", name, FormatValue(fields[name])))
	}
	return sb.String()
}

// FormatValue renders a decoded register value
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.1f", val)
	case bool:
		if val {
			return "ON"
		}
		return "OFF"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatRawRegisters(start uint16, regs []uint16) string {
	var sb strings.Builder
	for i, v := range regs {
		sb.WriteString(fmt.Sprintf("    [%d] 0x%04X (%d)\n", int(start)+i, v, v))
	}
	return sb.String()
}

// FormatHex formats bytes as space separated hex
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks bus traffic and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets     uint64
	ValidPackets     uint64
	HeaderCRCErrors  uint64
	PayloadCRCErrors uint64
	DecodeErrors     uint64
	FalseStarts      uint64
	Requests         uint64
	Responses        uint64
	Writes           uint64
	MalformedPackets uint64
	LengthMismatches uint64
	UnknownFunctions uint64
	AnomalousValues  uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a packet and its errors
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrHeaderChecksum):
			s.HeaderCRCErrors++
		case errors.Is(decodeErr, ErrPayloadChecksum):
			s.PayloadCRCErrors++
		default:
			s.DecodeErrors++
		}
		return
	}

	if packet != nil {
		switch {
		case packet.IsWrite():
			s.Writes++
		case packet.IsResponse():
			s.Responses++
		default:
			s.Requests++
		}
	}

	if len(validationErrors) == 0 {
		s.ValidPackets++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case ANOMALY_LENGTH_MISMATCH, ANOMALY_INVALID_COUNT:
			s.LengthMismatches++
			s.MalformedPackets++
		case ANOMALY_UNKNOWN_FUNCTION, ANOMALY_UNKNOWN_SUBFUNCTION:
			s.UnknownFunctions++
			s.MalformedPackets++
		case ANOMALY_UNEXPECTED_START, ANOMALY_OUT_OF_RANGE:
			s.AnomalousValues++
		}
	}
}

// AddFalseStarts records start bytes that did not begin a valid packet
func (s *Statistics) AddFalseStarts(n int) {
	s.FalseStarts += uint64(n)
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.HeaderCRCErrors + s.PayloadCRCErrors + s.DecodeErrors + s.MalformedPackets + s.AnomalousValues
}

func (s *Statistics) percent(n uint64) float64 {
	if s.TotalPackets == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(s.TotalPackets)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, s.percent(s.ValidPackets))
	result += fmt.Sprintf("  Requests:         %5d\n", s.Requests)
	result += fmt.Sprintf("  Responses:        %5d\n", s.Responses)
	if s.Writes > 0 {
		result += fmt.Sprintf("  Writes:           %5d\n", s.Writes)
	}

	if s.HeaderCRCErrors > 0 {
		result += fmt.Sprintf("Header CRC Err:  %8d (%.1f%%)\n", s.HeaderCRCErrors, s.percent(s.HeaderCRCErrors))
	}
	if s.PayloadCRCErrors > 0 {
		result += fmt.Sprintf("Payload CRC Err: %8d (%.1f%%)\n", s.PayloadCRCErrors, s.percent(s.PayloadCRCErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, s.percent(s.DecodeErrors))
	}
	if s.FalseStarts > 0 {
		result += fmt.Sprintf("False Starts:    %8d\n", s.FalseStarts)
	}
	if s.MalformedPackets > 0 {
		result += fmt.Sprintf("Malformed Pkts:  %8d (%.1f%%)\n", s.MalformedPackets, s.percent(s.MalformedPackets))
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.UnknownFunctions > 0 {
			result += fmt.Sprintf("  Unknown Function: %5d\n", s.UnknownFunctions)
		}
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, s.percent(s.AnomalousValues))
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

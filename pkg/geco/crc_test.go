// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import "testing"

// ============================================================
// Header Checksum Tests
// ============================================================

func TestHeaderChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint8
	}{
		{"empty", []byte{}, 0x00},
		{"check string", []byte("123456789"), 0xBC},
		{"status request header", []byte{0x69, 0x02, 0x01, 0x84, 0x00, 0x00, 0x0C}, 0xF6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderChecksum(tt.data, 0); got != tt.want {
				t.Errorf("HeaderChecksum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestHeaderChecksumIncremental(t *testing.T) {
	data := []byte("123456789")
	partial := HeaderChecksum(data[:4], 0)
	if got := HeaderChecksum(data[4:], partial); got != 0xBC {
		t.Errorf("incremental HeaderChecksum() = 0x%02X, want 0xBC", got)
	}
}

// ============================================================
// Payload Checksum Tests
// ============================================================

func TestPayloadChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", []byte{}, 0x0000},
		{"check string", []byte("123456789"), 0x31C3},
		{"status request body", []byte{0x02, 0x00, 0x01, 0x00, 0x40, 0x80, 0x00, 0x32, 0x64, 0x00}, 0xBDB2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PayloadChecksum(tt.data, 0); got != tt.want {
				t.Errorf("PayloadChecksum() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestPayloadChecksumIncremental(t *testing.T) {
	data := []byte("123456789")
	for split := 0; split <= len(data); split++ {
		partial := PayloadChecksum(data[:split], 0)
		if got := PayloadChecksum(data[split:], partial); got != 0x31C3 {
			t.Errorf("split %d: PayloadChecksum() = 0x%04X, want 0x31C3", split, got)
		}
	}
}

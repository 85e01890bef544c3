// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture record directions
const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)

// CaptureRecord is one chunk of bus traffic as it was received or sent
type CaptureRecord struct {
	Time      int64  `cbor:"1,keyasint"` // unix nanoseconds
	Direction string `cbor:"2,keyasint"`
	Data      []byte `cbor:"3,keyasint"`
}

// Timestamp returns the record time
func (r CaptureRecord) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// CaptureWriter appends records to a CBOR sequence
type CaptureWriter struct {
	enc     *cbor.Encoder
	records int
}

// NewCaptureWriter returns a writer emitting one CBOR item per record
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Write records a chunk of traffic
func (c *CaptureWriter) Write(direction string, data []byte, at time.Time) error {
	rec := CaptureRecord{
		Time:      at.UnixNano(),
		Direction: direction,
		Data:      append([]byte(nil), data...),
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	c.records++
	return nil
}

// Records returns the number of records written
func (c *CaptureWriter) Records() int {
	return c.records
}

// CaptureReader reads records written by CaptureWriter
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader returns a reader over a CBOR sequence
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

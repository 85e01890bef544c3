// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import "bytes"

// Frame is a packet found in a buffer together with the offset just past its
// last byte.
type Frame struct {
	Packet *Packet
	End    int
}

// Default buffer limits for a Framer
const (
	DefaultFramerLimit = 4096
	DefaultFramerKeep  = 2048
)

// FindPackets scans buf for every valid packet. A start byte that does not
// lead to a valid packet (typically a 0x69 inside register data) is skipped
// one byte at a time. Scanning stops at the first candidate that does not fit
// in the buffer yet.
func FindPackets(buf []byte) []Frame {
	frames, _, _ := scan(buf, nil)
	return frames
}

// scan returns the frames found, the number of rejected start bytes and the
// offset up to which buf has been fully examined. onReject, if set, receives
// the parse error of every rejected start.
func scan(buf []byte, onReject func(error)) ([]Frame, int, int) {
	var frames []Frame
	falseStarts := 0
	pos := 0

	for pos < len(buf) {
		idx := bytes.IndexByte(buf[pos:], StartByte)
		if idx < 0 {
			break
		}
		idx += pos

		remaining := buf[idx:]
		if len(remaining) < HeaderSize {
			break
		}

		total := HeaderSize + int(remaining[hdrPayloadLen])
		if len(remaining) < total {
			break
		}

		packet, err := ParsePacket(remaining[:total])
		if err != nil {
			falseStarts++
			if onReject != nil {
				onReject(err)
			}
			pos = idx + 1
			continue
		}

		frames = append(frames, Frame{Packet: packet, End: idx + total})
		pos = idx + total
	}

	return frames, falseStarts, pos
}

// Framer accumulates bytes from a stream and extracts packets as they
// complete. Consumed bytes are trimmed after every Feed and the buffer is
// capped so noise without any valid packet cannot grow it without bound.
type Framer struct {
	buf   []byte
	limit int
	keep  int

	// Counters since creation
	Packets     uint64
	FalseStarts uint64
	Discarded   uint64

	// OnReject is called with the parse error of every rejected start byte
	OnReject func(err error)
}

// NewFramer creates a framer that truncates its buffer to the last keep
// bytes once it grows past limit.
func NewFramer(limit, keep int) *Framer {
	if limit <= 0 {
		limit = DefaultFramerLimit
	}
	if keep <= 0 || keep > limit {
		keep = limit / 2
	}
	return &Framer{
		buf:   make([]byte, 0, limit),
		limit: limit,
		keep:  keep,
	}
}

// Feed appends chunk and returns every packet completed by it
func (f *Framer) Feed(chunk []byte) []Frame {
	f.buf = append(f.buf, chunk...)

	frames, falseStarts, examined := scan(f.buf, f.OnReject)
	f.FalseStarts += uint64(falseStarts)
	f.Packets += uint64(len(frames))

	// Examined bytes are never scanned again
	if examined > 0 {
		f.Discarded += uint64(examined - consumedBytes(frames))
		f.buf = append(f.buf[:0], f.buf[examined:]...)
	}

	if len(f.buf) > f.limit {
		drop := len(f.buf) - f.keep
		f.Discarded += uint64(drop)
		f.buf = append(f.buf[:0], f.buf[drop:]...)
	}

	return frames
}

// Buffered returns the number of bytes waiting for more data
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards any buffered bytes
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

func consumedBytes(frames []Frame) int {
	n := 0
	for _, fr := range frames {
		n += fr.Packet.TotalLength()
	}
	return n
}

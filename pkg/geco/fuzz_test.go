// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package geco

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPacket builds a valid packet with random addressing and registers
func randomPacket(rng *rand.Rand) ([]byte, []uint16) {
	addr := Addressing{
		DstHard: uint8(rng.Intn(256)),
		SrcHard: uint8(rng.Intn(256)),
		DstSoft: uint8(rng.Intn(256)),
		SrcSoft: uint8(rng.Intn(256)),
	}
	fnc := []uint8{FncStatusResponse, FncConfigResponse}[rng.Intn(2)]
	regs := make([]uint16, rng.Intn(60)+1)
	for i := range regs {
		regs[i] = uint16(rng.Intn(65536))
	}
	data, err := BuildResponse(addr, fnc, uint16(rng.Intn(65536)), regs)
	if err != nil {
		panic(err)
	}
	return data, regs
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzParse_RandomBytes feeds random bytes to the parser
// and verifies it doesn't crash or panic
func TestFuzzParse_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		length := rng.Intn(300)
		data := make([]byte, length)
		rng.Read(data)
		if length > 0 && rng.Intn(2) == 0 {
			data[0] = StartByte
		}

		ParsePacket(data)
		FindPackets(data)
	}
}

// TestFuzzParse_RandomPackets round-trips random valid packets
func TestFuzzParse_RandomPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data, regs := randomPacket(rng)

		packet, err := ParsePacket(data)
		if err != nil {
			t.Errorf("Round %d: unexpected parse error: %v", i, err)
			continue
		}
		got := packet.Registers()
		if len(got) != len(regs) {
			t.Errorf("Round %d: register count mismatch: expected %d, got %d", i, len(regs), len(got))
			continue
		}
		for j := range regs {
			if got[j] != regs[j] {
				t.Errorf("Round %d: register %d mismatch: expected 0x%04X, got 0x%04X", i, j, regs[j], got[j])
				break
			}
		}
	}
}

// TestFuzzParse_CorruptedPackets corrupts one byte of a valid packet and
// expects the checksums to catch it
func TestFuzzParse_CorruptedPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data, _ := randomPacket(rng)

		idx := rng.Intn(len(data))
		data[idx] ^= byte(rng.Intn(255) + 1)

		if _, err := ParsePacket(data); err == nil {
			t.Errorf("Round %d: corruption at byte %d not detected", i, idx)
		}
	}
}

// ============================================================
// Framer Fuzz Tests
// ============================================================

// TestFuzzFramer_PacketsInNoise embeds valid packets between random noise
// and feeds the stream in random chunk sizes
func TestFuzzFramer_PacketsInNoise(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds == 0 {
		rounds = 1
	}
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		var stream []byte
		var want [][]uint16

		for n := rng.Intn(5) + 1; n > 0; n-- {
			// Noise without start bytes so it cannot swallow the next packet
			noise := make([]byte, rng.Intn(40))
			for j := range noise {
				noise[j] = byte(rng.Intn(256))
				if noise[j] == StartByte {
					noise[j] = 0x00
				}
			}
			stream = append(stream, noise...)

			data, regs := randomPacket(rng)
			stream = append(stream, data...)
			want = append(want, regs)
		}

		f := NewFramer(0, 0)
		var got []Frame
		for pos := 0; pos < len(stream); {
			n := rng.Intn(64) + 1
			if pos+n > len(stream) {
				n = len(stream) - pos
			}
			got = append(got, f.Feed(stream[pos:pos+n])...)
			pos += n
		}

		if len(got) != len(want) {
			t.Errorf("Round %d: expected %d packets, got %d", i, len(want), len(got))
			continue
		}
		for j := range want {
			if len(got[j].Packet.Registers()) != len(want[j]) {
				t.Errorf("Round %d: packet %d register count mismatch", i, j)
			}
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/link/linktest"
	"github.com/Thermoquad/gecostat/pkg/session"
)

// recordingSink collects everything published to it
type recordingSink struct {
	mu      sync.Mutex
	status  []geco.StatusRecord
	config  []geco.ConfigRecord
	raw     map[geco.Block]int
	reports []CycleReport
}

func newRecordingSink() *recordingSink {
	return &recordingSink{raw: map[geco.Block]int{}}
}

func (r *recordingSink) PublishStatus(s geco.StatusRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, s)
}

func (r *recordingSink) PublishConfig(c geco.ConfigRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = append(r.config, c)
}

func (r *recordingSink) PublishRaw(b geco.Block, regs []uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw[b]++
}

func (r *recordingSink) RecordCycle(c CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, c)
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.status), len(r.config)
}

func newTestPoller(t *testing.T, dev *linktest.Device, sink Sink, cfg Config) *Poller {
	t.Helper()
	sess := session.New(dev.Opener(), session.Config{ResponseTimeout: 50 * time.Millisecond})
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	cfg.OperationPause = -1
	cfg.RequestGap = -1
	if cfg.ListenTimeout == 0 {
		cfg.ListenTimeout = 5 * time.Millisecond
	}
	p := New(sess, sink, cfg, nil)
	p.Backoff().Step = time.Millisecond
	p.Backoff().Max = 5 * time.Millisecond
	return p
}

// ============================================================
// Mode Tests
// ============================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"active", ModeActive, false},
		{"direct", ModeActive, false},
		{"Eavesdrop", ModeEavesdrop, false},
		{"", ModeActive, false},
		{"passive", ModeActive, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "eavesdrop", ModeEavesdrop.String())
}

// ============================================================
// Active Mode Tests
// ============================================================

func TestCyclePublishesBlocks(t *testing.T) {
	dev := linktest.NewDevice()
	dev.Status[4] = 0x00C8
	dev.Config[5] = 450
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{RawRegisters: true})
	require.NoError(t, p.sess.Connect(context.Background()))

	require.NoError(t, p.Cycle(context.Background()))

	require.Len(t, sink.status, 1)
	require.Len(t, sink.config, 1)
	assert.Equal(t, 20.0, sink.status[0].T1)
	assert.Equal(t, 45.0, sink.config[0].TapWaterTemp)
	assert.Equal(t, 1, sink.raw[geco.BlockStatus])
	assert.Equal(t, 1, sink.raw[geco.BlockConfig])

	require.Len(t, sink.reports, 1)
	assert.True(t, sink.reports[0].StatusOK)
	assert.True(t, sink.reports[0].ConfigOK)

	require.Len(t, dev.Requests, 2)
	assert.Equal(t, uint8(geco.FncStatusRequest), dev.Requests[0].Function())
	assert.Equal(t, uint8(geco.FncConfigRequest), dev.Requests[1].Function())
}

func TestCycleWritesFirst(t *testing.T) {
	dev := linktest.NewDevice()
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{})
	require.NoError(t, p.sess.Connect(context.Background()))

	// First cycle fills the config cache
	require.NoError(t, p.Cycle(context.Background()))

	require.NoError(t, p.Submit("TapWaterTemp", "48"))
	require.NoError(t, p.Submit("Bogus", 1))
	assert.Equal(t, 2, p.Pending())

	require.NoError(t, p.Cycle(context.Background()))
	assert.Equal(t, 0, p.Pending())

	reqs := dev.Requests[2:]
	require.Len(t, reqs, 3, "invalid write sends nothing")
	assert.True(t, reqs[0].IsWrite())
	assert.Equal(t, uint8(geco.FncStatusRequest), reqs[1].Function())
	assert.Equal(t, uint16(480), dev.ConfigSnapshot()[5])

	last := sink.reports[len(sink.reports)-1]
	assert.Equal(t, 2, last.Writes)
	assert.Equal(t, 1, last.WriteFailures)
}

func TestCycleTimeoutIsNotFatal(t *testing.T) {
	dev := linktest.NewDevice()
	dev.Respond = func(req *geco.Packet) []byte {
		if req.Function() == geco.FncStatusRequest {
			return nil
		}
		data, _ := geco.BuildResponse(dev.Addr, geco.FncConfigResponse, geco.ConfigBase, make([]uint16, geco.ConfigCount))
		return data
	}
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{})
	require.NoError(t, p.sess.Connect(context.Background()))

	assert.NoError(t, p.Cycle(context.Background()))
	assert.Empty(t, sink.status)
	assert.Len(t, sink.config, 1)
}

func TestCycleTransportFailure(t *testing.T) {
	dev := linktest.NewDevice()
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{})
	require.NoError(t, p.sess.Connect(context.Background()))

	dev.FailNext(linktest.ErrInjected)
	err := p.Cycle(context.Background())
	assert.True(t, session.IsTransportError(err))
	assert.Empty(t, sink.config, "cycle stops at the failure")
}

func TestRunRecoversAfterFailures(t *testing.T) {
	dev := linktest.NewDevice()
	dev.FailOpen(errors.New("refused"))
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	dev.FailOpen(nil)

	require.Eventually(t, func() bool {
		s, c := sink.counts()
		return s >= 2 && c >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunWakesForWrites(t *testing.T) {
	dev := linktest.NewDevice()
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		_, c := sink.counts()
		return c >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Submit("HeatPumpEnabled", true))

	require.Eventually(t, func() bool {
		return dev.ConfigSnapshot()[1] == 1
	}, 2*time.Second, 5*time.Millisecond, "write must not wait for the poll interval")
}

// ============================================================
// Eavesdrop Mode Tests
// ============================================================

func TestSubmitRejectedInEavesdrop(t *testing.T) {
	p := newTestPoller(t, linktest.NewDevice(), newRecordingSink(), Config{Mode: ModeEavesdrop})
	assert.ErrorIs(t, p.Submit("TapWaterTemp", 45), ErrWriteUnsupported)
	assert.Equal(t, 0, p.Pending())
}

func TestListenForwardsResponses(t *testing.T) {
	dev := linktest.NewDevice()
	sink := newRecordingSink()
	p := newTestPoller(t, dev, sink, Config{Mode: ModeEavesdrop})
	require.NoError(t, p.sess.Connect(context.Background()))

	controller := geco.DefaultAddressing()
	statusRegs := make([]uint16, geco.StatusCount)
	statusRegs[4] = 0x00C8
	status, err := geco.BuildResponse(controller.Reply(), geco.FncStatusResponse, geco.StatusBase, statusRegs)
	require.NoError(t, err)
	config, err := geco.BuildResponse(controller.Reply(), geco.FncConfigResponse, geco.ConfigBase, make([]uint16, geco.ConfigCount))
	require.NoError(t, err)
	partial, err := geco.BuildResponse(controller.Reply(), geco.FncStatusResponse, 120, []uint16{1, 2})
	require.NoError(t, err)

	var stream []byte
	stream = append(stream, geco.BuildReadRequest(controller, geco.FncStatusRequest, geco.StatusBase, geco.StatusCount)...)
	stream = append(stream, status...)
	stream = append(stream, 0x00, 0x69, 0x00)
	stream = append(stream, partial...)
	stream = append(stream, config...)

	// Deliver in two pieces so a packet straddles reads
	dev.Inject(stream[:100])
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Listen(context.Background()))
	}
	dev.Inject(stream[100:])
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Listen(context.Background()))
	}

	require.Len(t, sink.status, 1)
	require.Len(t, sink.config, 1)
	assert.Equal(t, 20.0, sink.status[0].T1)
	assert.Empty(t, dev.Requests, "eavesdrop mode never writes")
}

func TestListenTransportFailure(t *testing.T) {
	dev := linktest.NewDevice()
	p := newTestPoller(t, dev, newRecordingSink(), Config{Mode: ModeEavesdrop})
	require.NoError(t, p.sess.Connect(context.Background()))

	dev.FailNext(linktest.ErrInjected)
	err := p.Listen(context.Background())
	assert.True(t, session.IsTransportError(err))
	assert.False(t, p.sess.Connected())
}

// ============================================================
// Sink Tests
// ============================================================

func TestMultiSink(t *testing.T) {
	a, b := newRecordingSink(), newRecordingSink()
	ch := make(ChanSink, 1)
	m := MultiSink{a, b, ch}

	m.PublishStatus(geco.StatusRecord{T1: 1})
	m.PublishConfig(geco.ConfigRecord{})
	m.PublishRaw(geco.BlockConfig, []uint16{1})
	m.RecordCycle(CycleReport{})

	for _, s := range []*recordingSink{a, b} {
		assert.Len(t, s.status, 1)
		assert.Len(t, s.config, 1)
		assert.Equal(t, 1, s.raw[geco.BlockConfig])
		assert.Len(t, s.reports, 1)
	}

	// Channel holds one update, the second is dropped
	u := <-ch
	require.NotNil(t, u.Status)
	assert.Equal(t, 1.0, u.Status.T1)
	assert.Len(t, ch, 0)
}

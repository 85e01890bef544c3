// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package linktest provides an in-memory heat pump for exercising code that
// talks to a link.Transport.
package linktest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/link"
)

// ErrInjected is the transport failure produced by FailNext
var ErrInjected = errors.New("injected transport failure")

// Device emulates a heat pump behind a transport. Requests written to it are
// answered from its register blocks; writes update the config block.
type Device struct {
	mu sync.Mutex

	Addr   geco.Addressing
	Status []uint16
	Config []uint16

	// Requests holds every parsed request in order
	Requests []*geco.Packet

	// Respond, if set, replaces the built-in responder. Returning nil sends
	// nothing.
	Respond func(req *geco.Packet) []byte

	// Prefix is sent before every response (bus noise, foreign packets)
	Prefix []byte

	// MuteWrites drops write requests without answering
	MuteWrites bool

	// CorruptWrites answers writes with this value at every written offset
	CorruptWrites *uint16

	rx      []byte
	failErr error
	openErr error
	closed  bool
	flushes int
	opens   int
}

// NewDevice returns a device with full, zeroed status and config blocks
func NewDevice() *Device {
	return &Device{
		Addr:   geco.DefaultAddressing().Reply(),
		Status: make([]uint16, geco.StatusCount),
		Config: make([]uint16, geco.ConfigCount),
	}
}

// Inject queues raw bytes to be read, as if another bus member sent them
func (d *Device) Inject(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx = append(d.rx, data...)
}

// FailNext makes the next Write or ReadTimeout return err
func (d *Device) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failErr = err
}

// FailOpen makes every following Opener call fail with err until cleared with nil
func (d *Device) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// Opener returns a link.Opener that reopens this device
func (d *Device) Opener() link.Opener {
	return func(ctx context.Context) (link.Transport, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.openErr != nil {
			return nil, d.openErr
		}
		d.opens++
		d.closed = false
		return d, nil
	}
}

// Opens returns the number of successful Opener calls
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Flushes returns the number of Flush calls
func (d *Device) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// LastRequest returns the most recent request, or nil
func (d *Device) LastRequest() *geco.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Requests) == 0 {
		return nil
	}
	return d.Requests[len(d.Requests)-1]
}

// ConfigSnapshot returns a copy of the device's config block
func (d *Device) ConfigSnapshot() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint16(nil), d.Config...)
}

func (d *Device) takeFailure() error {
	if d.closed {
		return errors.New("linktest: device closed")
	}
	err := d.failErr
	d.failErr = nil
	return err
}

// Write parses the request and queues the answer
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure(); err != nil {
		return 0, err
	}

	req, err := geco.ParsePacket(p)
	if err != nil {
		return len(p), nil
	}
	d.Requests = append(d.Requests, req)

	var resp []byte
	if d.Respond != nil {
		resp = d.Respond(req)
	} else {
		resp = d.respond(req)
	}
	if resp != nil {
		d.rx = append(d.rx, d.Prefix...)
		d.rx = append(d.rx, resp...)
	}
	return len(p), nil
}

func (d *Device) respond(req *geco.Packet) []byte {
	switch req.Function() {
	case geco.FncStatusRequest:
		return d.block(geco.FncStatusResponse, req, d.Status)
	case geco.FncConfigRequest:
		if !req.IsWrite() {
			return d.block(geco.FncConfigResponse, req, d.Config)
		}
		if d.MuteWrites {
			return nil
		}
		regs := req.Registers()
		offset := int(req.RegisterStart()) - geco.ConfigBase
		for i, v := range regs {
			if offset+i < 0 || offset+i >= len(d.Config) {
				continue
			}
			if d.CorruptWrites != nil {
				v = *d.CorruptWrites
			}
			d.Config[offset+i] = v
		}
		return d.block(geco.FncConfigResponse, req, d.Config)
	}
	return nil
}

func (d *Device) block(fnc uint8, req *geco.Packet, regs []uint16) []byte {
	data, err := geco.BuildResponse(d.Addr, fnc, req.RegisterStart(), regs)
	if err != nil {
		return nil
	}
	return data
}

// ReadTimeout returns queued bytes, or waits briefly and returns 0, nil
func (d *Device) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	if err := d.takeFailure(); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if len(d.rx) > 0 {
		n := copy(p, d.rx)
		d.rx = d.rx[n:]
		d.mu.Unlock()
		return n, nil
	}
	d.mu.Unlock()

	if timeout > time.Millisecond {
		timeout = time.Millisecond
	}
	time.Sleep(timeout)
	return 0, nil
}

// Flush drops pending bytes
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	d.rx = nil
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Device) String() string {
	return "linktest device"
}

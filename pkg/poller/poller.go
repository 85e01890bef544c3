// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller drives a session: either polling the heat pump directly or
// listening to an existing controller's traffic, and handing decoded blocks
// to a Sink.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/session"
)

// Mode selects how the poller uses the bus
type Mode int

const (
	// ModeActive sends requests and is the only mode that can write
	ModeActive Mode = iota
	// ModeEavesdrop only listens to another controller's exchanges
	ModeEavesdrop
)

// String returns the configuration name of the mode
func (m Mode) String() string {
	if m == ModeEavesdrop {
		return "eavesdrop"
	}
	return "active"
}

// ParseMode accepts "active" (or "direct") and "eavesdrop"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "direct", "":
		return ModeActive, nil
	case "eavesdrop":
		return ModeEavesdrop, nil
	}
	return ModeActive, fmt.Errorf("unknown mode %q (use active or eavesdrop)", s)
}

// ErrWriteUnsupported is returned by Submit in eavesdrop mode
var ErrWriteUnsupported = errors.New("writes are not supported in eavesdrop mode")

// Defaults for Config fields left at zero
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultOperationPause = 500 * time.Millisecond
	DefaultRequestGap     = time.Second
	DefaultListenTimeout  = time.Second
)

// Eavesdrop buffer
const (
	listenChunk = 512
)

// Config tunes a Poller
type Config struct {
	Mode Mode

	// PollInterval is the sleep between active cycles
	PollInterval time.Duration
	// OperationPause follows every write
	OperationPause time.Duration
	// RequestGap separates the status and config reads
	RequestGap time.Duration
	// ListenTimeout bounds one eavesdrop read
	ListenTimeout time.Duration

	// RawRegisters also sends raw words to sinks implementing RawSink
	RawRegisters bool
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.OperationPause < 0 {
		c.OperationPause = 0
	} else if c.OperationPause == 0 {
		c.OperationPause = DefaultOperationPause
	}
	if c.RequestGap < 0 {
		c.RequestGap = 0
	} else if c.RequestGap == 0 {
		c.RequestGap = DefaultRequestGap
	}
	if c.ListenTimeout <= 0 {
		c.ListenTimeout = DefaultListenTimeout
	}
}

// Poller runs the main loop over one session
type Poller struct {
	sess    *session.Session
	queue   *session.WriteQueue
	sink    Sink
	cfg     Config
	log     *zap.Logger
	backoff *session.Backoff
	framer  *geco.Framer
	buf     []byte
}

// New creates a poller. A nil logger disables logging.
func New(sess *session.Session, sink Sink, cfg Config, log *zap.Logger) *Poller {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		sess:    sess,
		queue:   session.NewWriteQueue(),
		sink:    sink,
		cfg:     cfg,
		log:     log,
		backoff: session.NewBackoff(),
		framer:  geco.NewFramer(geco.DefaultFramerLimit, geco.DefaultFramerKeep),
		buf:     make([]byte, listenChunk),
	}
}

// Mode returns the poller mode
func (p *Poller) Mode() Mode {
	return p.cfg.Mode
}

// Backoff exposes the reconnect backoff, mainly for tuning in tests
func (p *Poller) Backoff() *session.Backoff {
	return p.backoff
}

// Submit queues a register write for the next active cycle. It is safe to
// call from any goroutine.
func (p *Poller) Submit(name string, value interface{}) error {
	if p.cfg.Mode == ModeEavesdrop {
		p.log.Warn("cannot write in eavesdrop mode, ignoring command",
			zap.String("register", name), zap.Any("value", value))
		return ErrWriteUnsupported
	}
	p.log.Info("queuing write command", zap.String("register", name), zap.Any("value", value))
	p.queue.Push(name, value)
	return nil
}

// Pending returns the number of queued writes
func (p *Poller) Pending() int {
	return p.queue.Len()
}

// Run loops until ctx is done. Transport failures close the link and are
// retried after the backoff delay; nothing inside the loop is fatal.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller starting",
		zap.Stringer("mode", p.cfg.Mode),
		zap.Duration("poll_interval", p.cfg.PollInterval))
	defer p.sess.Close()

	for ctx.Err() == nil {
		if !p.sess.Connected() {
			if err := p.sess.Connect(ctx); err != nil {
				p.retryLater(ctx, err)
				continue
			}
			p.framer.Reset()
		}

		var err error
		if p.cfg.Mode == ModeEavesdrop {
			err = p.Listen(ctx)
		} else {
			err = p.Cycle(ctx)
		}

		if ctx.Err() != nil {
			break
		}
		if session.IsTransportError(err) {
			p.retryLater(ctx, err)
			continue
		}
		p.backoff.Reset()

		if p.cfg.Mode == ModeActive {
			p.wait(ctx)
		}
	}

	p.log.Info("poller stopped")
	return nil
}

func (p *Poller) retryLater(ctx context.Context, err error) {
	wait := p.backoff.Failure()
	p.log.Error("connection error, retrying",
		zap.Error(err),
		zap.Int("failures", p.backoff.Failures()),
		zap.Duration("wait", wait))
	session.Sleep(ctx, wait)
}

// wait sleeps for the poll interval, waking early for queued writes
func (p *Poller) wait(ctx context.Context) {
	if p.queue.Len() > 0 {
		return
	}
	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-p.queue.Notify():
	case <-timer.C:
	}
}

// Cycle runs one active cycle: pending writes, then the status block, then
// the config block. It returns the first transport error, which aborts the
// rest of the cycle. Timeouts only skip the affected block.
func (p *Poller) Cycle(ctx context.Context) error {
	report := CycleReport{Started: time.Now()}
	defer func() {
		report.Duration = time.Since(report.Started)
		report.Session = p.sess.Stats()
		if rs, ok := p.sink.(ReportSink); ok {
			rs.RecordCycle(report)
		}
	}()

	// Drain the notification left by pushes handled in this cycle
	select {
	case <-p.queue.Notify():
	default:
	}

	for {
		w, ok := p.queue.Pop()
		if !ok {
			break
		}
		report.Writes++
		if err := p.sess.WriteRegister(ctx, w.Name, w.Value); err != nil {
			report.WriteFailures++
			p.log.Error("write failed",
				zap.String("register", w.Name),
				zap.Any("value", w.Value),
				zap.Error(err))
			if session.IsTransportError(err) {
				report.Err = err
				return err
			}
		}
		if err := session.Sleep(ctx, p.cfg.OperationPause); err != nil {
			return err
		}
	}

	status, err := p.sess.ReadStatus(ctx)
	switch {
	case err == nil:
		report.StatusOK = true
		p.sink.PublishStatus(status)
		p.publishRaw(geco.BlockStatus, status.Raw)
	case session.IsTransportError(err):
		report.Err = err
		return err
	default:
		p.log.Warn("failed to read status registers", zap.Error(err))
	}

	if err := session.Sleep(ctx, p.cfg.RequestGap); err != nil {
		return err
	}

	config, err := p.sess.ReadConfig(ctx)
	switch {
	case err == nil:
		report.ConfigOK = true
		p.sink.PublishConfig(config)
		p.publishRaw(geco.BlockConfig, config.Raw)
	case session.IsTransportError(err):
		report.Err = err
		return err
	default:
		p.log.Warn("failed to read config registers", zap.Error(err))
	}

	return nil
}

// Listen performs one eavesdrop step: a single bounded read, then every
// status or config response completed by it is decoded and published.
func (p *Poller) Listen(ctx context.Context) error {
	n, err := p.sess.Receive(p.buf, p.cfg.ListenTimeout)
	if err != nil {
		p.framer.Reset()
		return err
	}
	if n == 0 {
		return nil
	}

	for _, frame := range p.framer.Feed(p.buf[:n]) {
		p.handleObserved(frame.Packet)
	}
	return nil
}

func (p *Poller) handleObserved(pkt *geco.Packet) {
	block, ok := geco.BlockForResponse(pkt.Function())
	if !ok {
		return
	}
	regs := pkt.Registers()
	if len(regs) == 0 {
		return
	}
	if pkt.RegisterStart() != block.Base() {
		p.log.Debug("ignoring partial block",
			zap.Stringer("block", block),
			zap.Uint16("start", pkt.RegisterStart()),
			zap.Int("registers", len(regs)))
		return
	}

	if block == geco.BlockStatus {
		p.sink.PublishStatus(geco.DecodeStatus(regs))
	} else {
		p.sink.PublishConfig(geco.DecodeConfig(regs))
	}
	p.publishRaw(block, regs)
}

func (p *Poller) publishRaw(block geco.Block, regs []uint16) {
	if !p.cfg.RawRegisters {
		return
	}
	if rs, ok := p.sink.(RawSink); ok {
		rs.PublishRaw(block, regs)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session owns the connection to a heat pump: request/response
// exchanges, the cached config block and read-modify-write register updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/link"
)

// Exchange buffer limits
const (
	exchangeFramerLimit = 1024
	exchangeFramerKeep  = 512
	readChunk           = 256
	readSlice           = 100 * time.Millisecond
)

// Defaults for Config fields left at zero
const (
	DefaultResponseTimeout = 5 * time.Second
	DefaultMaxCacheAge     = 10 * time.Minute
)

// Config tunes a Session
type Config struct {
	Addressing      geco.Addressing
	ResponseTimeout time.Duration
	// MaxCacheAge bounds how old the cached config block may be when a write
	// is built from it. Negative disables the check.
	MaxCacheAge time.Duration
}

// Stats are cumulative session counters
type Stats struct {
	Exchanges       uint64
	Timeouts        uint64
	TransportErrors uint64
	Writes          uint64
	WriteFailures   uint64
	Skipped         uint64 // packets with another function code seen while waiting
}

// Session is a single half-duplex conversation with one device. It is not
// safe for concurrent use; the polling loop is its only caller.
type Session struct {
	open link.Opener
	tr   link.Transport
	cfg  Config
	log  *zap.Logger
	now  func() time.Time

	cache    []uint16
	cachedAt time.Time

	stats Stats
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithClock replaces time.Now for cache age checks
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a session. No connection is made until Connect.
func New(open link.Opener, cfg Config, opts ...Option) *Session {
	if cfg.Addressing == (geco.Addressing{}) {
		cfg.Addressing = geco.DefaultAddressing()
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.MaxCacheAge == 0 {
		cfg.MaxCacheAge = DefaultMaxCacheAge
	}

	s := &Session{
		open: open,
		cfg:  cfg,
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the transport if it is not open already
func (s *Session) Connect(ctx context.Context) error {
	if s.tr != nil {
		return nil
	}
	tr, err := s.open(ctx)
	if err != nil {
		s.stats.TransportErrors++
		return &TransportError{Op: "open", Err: err}
	}
	s.tr = tr
	s.log.Info("connected", zap.String("link", tr.String()))
	return nil
}

// Connected reports whether a transport is open
func (s *Session) Connected() bool {
	return s.tr != nil
}

// Transport returns the open transport, or nil
func (s *Session) Transport() link.Transport {
	return s.tr
}

// Close closes the transport. The cached config block survives.
func (s *Session) Close() error {
	if s.tr == nil {
		return nil
	}
	err := s.tr.Close()
	s.tr = nil
	return err
}

// Stats returns a copy of the session counters
func (s *Session) Stats() Stats {
	return s.stats
}

func (s *Session) fail(op string, err error) error {
	s.stats.TransportErrors++
	s.log.Warn("transport failure, closing link", zap.String("op", op), zap.Error(err))
	s.Close()
	return &TransportError{Op: op, Err: err}
}

// Flush discards bytes received before the next request
func (s *Session) Flush() error {
	if s.tr == nil {
		return ErrNotConnected
	}
	if err := s.tr.Flush(); err != nil {
		return s.fail("flush", err)
	}
	return nil
}

// Exchange flushes, sends req and waits up to timeout for a packet carrying
// the expect function code. Packets with other function codes are skipped.
func (s *Session) Exchange(ctx context.Context, req []byte, expect uint8, timeout time.Duration) (*geco.Packet, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}

	s.stats.Exchanges++
	s.log.Debug("tx", zap.Int("bytes", len(req)), zap.Binary("data", req))
	if _, err := s.tr.Write(req); err != nil {
		return nil, s.fail("write", err)
	}

	framer := geco.NewFramer(exchangeFramerLimit, exchangeFramerKeep)
	buf := make([]byte, readChunk)
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if remaining > readSlice {
			remaining = readSlice
		}

		n, err := s.tr.ReadTimeout(buf, remaining)
		if err != nil {
			return nil, s.fail("read", err)
		}
		if n == 0 {
			continue
		}

		for _, frame := range framer.Feed(buf[:n]) {
			p := frame.Packet
			if p.Function() != expect {
				s.stats.Skipped++
				s.log.Debug("skipping packet", zap.Uint8("fnc", p.Function()), zap.Uint8("expected", expect))
				continue
			}
			for _, anomaly := range geco.ValidatePacket(p) {
				s.log.Warn("packet anomaly", zap.Stringer("type", anomaly.Type), zap.String("detail", anomaly.Message))
			}
			return p, nil
		}
	}

	s.stats.Timeouts++
	s.log.Warn("timeout waiting for response", zap.Uint8("fnc", expect), zap.Duration("timeout", timeout))
	return nil, ErrNoResponse
}

// Receive reads whatever arrives within timeout without sending anything.
// Used to listen to traffic between other bus members.
func (s *Session) Receive(p []byte, timeout time.Duration) (int, error) {
	if s.tr == nil {
		return 0, ErrNotConnected
	}
	n, err := s.tr.ReadTimeout(p, timeout)
	if err != nil {
		return n, s.fail("read", err)
	}
	return n, nil
}

// ReadBlock reads a full register block and returns its words
func (s *Session) ReadBlock(ctx context.Context, b geco.Block) ([]uint16, error) {
	req := geco.BuildReadRequest(s.cfg.Addressing, b.RequestFunction(), b.Base(), b.Count())
	p, err := s.Exchange(ctx, req, b.ResponseFunction(), s.cfg.ResponseTimeout)
	if err != nil {
		return nil, fmt.Errorf("read %s block: %w", b, err)
	}
	if p.RegisterStart() != b.Base() {
		return nil, fmt.Errorf("read %s block: %w: %d", b, ErrUnexpectedBlock, p.RegisterStart())
	}
	regs := p.Registers()
	if len(regs) == 0 {
		return nil, fmt.Errorf("read %s block: %w", b, ErrEmptyBlock)
	}
	return regs, nil
}

// ReadStatus reads and decodes the status block
func (s *Session) ReadStatus(ctx context.Context) (geco.StatusRecord, error) {
	regs, err := s.ReadBlock(ctx, geco.BlockStatus)
	if err != nil {
		return geco.StatusRecord{}, err
	}
	return geco.DecodeStatus(regs), nil
}

// ReadConfig reads and decodes the config block. A complete block replaces
// the cached copy used by WriteRegister.
func (s *Session) ReadConfig(ctx context.Context) (geco.ConfigRecord, error) {
	regs, err := s.ReadBlock(ctx, geco.BlockConfig)
	if err != nil {
		return geco.ConfigRecord{}, err
	}
	if len(regs) == int(geco.ConfigCount) {
		s.setCache(regs)
	} else {
		s.log.Warn("short config block, cache not updated", zap.Int("registers", len(regs)))
	}
	return geco.DecodeConfig(regs), nil
}

func (s *Session) setCache(regs []uint16) {
	s.cache = append([]uint16(nil), regs...)
	s.cachedAt = s.now()
}

// CachedConfig returns a copy of the cached config block and when it was read
func (s *Session) CachedConfig() ([]uint16, time.Time, bool) {
	if s.cache == nil {
		return nil, time.Time{}, false
	}
	return append([]uint16(nil), s.cache...), s.cachedAt, true
}

// WriteRegister changes one config register by resending the cached block
// with only that word replaced. The value is validated before anything is
// sent. On failure the cache is left as it was before the call.
func (s *Session) WriteRegister(ctx context.Context, name string, value interface{}) error {
	offset, raw, err := geco.EncodeValue(name, value)
	if err != nil {
		return err
	}

	if s.cache == nil {
		return ErrNoCache
	}
	if age := s.now().Sub(s.cachedAt); s.cfg.MaxCacheAge > 0 && age > s.cfg.MaxCacheAge {
		return fmt.Errorf("%w: %s old", ErrStaleCache, age.Round(time.Second))
	}
	if offset >= len(s.cache) {
		return ErrNoCache
	}

	s.stats.Writes++
	prev, prevAt := s.cache, s.cachedAt

	block := append([]uint16(nil), s.cache...)
	block[offset] = raw
	s.cache = block

	writeErr := func(err error, got uint16) error {
		s.cache, s.cachedAt = prev, prevAt
		s.stats.WriteFailures++
		return &WriteError{Register: name, Offset: offset, Want: raw, Got: got, Err: err}
	}

	req, err := geco.BuildWriteRequest(s.cfg.Addressing, geco.ConfigBase, uint8(len(block)), geco.RegistersToBytes(block))
	if err != nil {
		return writeErr(err, 0)
	}

	s.log.Info("writing config register",
		zap.String("register", name),
		zap.Int("offset", offset),
		zap.Uint16("raw", raw))

	p, err := s.Exchange(ctx, req, geco.FncConfigResponse, s.cfg.ResponseTimeout)
	if err != nil {
		if errors.Is(err, ErrNoResponse) {
			return writeErr(ErrWriteUnconfirmed, 0)
		}
		return writeErr(err, 0)
	}

	returned := p.Registers()
	if p.RegisterStart() != geco.ConfigBase || offset >= len(returned) {
		return writeErr(ErrWriteUnconfirmed, 0)
	}
	if returned[offset] != raw {
		return writeErr(ErrWriteMismatch, returned[offset])
	}

	// The device's block is authoritative
	adopted := append([]uint16(nil), block...)
	copy(adopted, returned)
	s.setCache(adopted)

	s.log.Info("write confirmed", zap.String("register", name))
	return nil
}

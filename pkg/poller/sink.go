// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/session"
)

// Sink receives decoded blocks
type Sink interface {
	PublishStatus(geco.StatusRecord)
	PublishConfig(geco.ConfigRecord)
}

// RawSink is implemented by sinks that also want raw register dumps
type RawSink interface {
	PublishRaw(block geco.Block, regs []uint16)
}

// CycleReport summarizes one active cycle
type CycleReport struct {
	Started       time.Time
	Duration      time.Duration
	StatusOK      bool
	ConfigOK      bool
	Writes        int
	WriteFailures int
	Err           error
	Session       session.Stats
}

// ReportSink is implemented by sinks that track cycle outcomes
type ReportSink interface {
	RecordCycle(CycleReport)
}

// MultiSink fans out to several sinks
type MultiSink []Sink

// PublishStatus implements Sink
func (m MultiSink) PublishStatus(r geco.StatusRecord) {
	for _, s := range m {
		s.PublishStatus(r)
	}
}

// PublishConfig implements Sink
func (m MultiSink) PublishConfig(r geco.ConfigRecord) {
	for _, s := range m {
		s.PublishConfig(r)
	}
}

// PublishRaw forwards to members implementing RawSink
func (m MultiSink) PublishRaw(block geco.Block, regs []uint16) {
	for _, s := range m {
		if rs, ok := s.(RawSink); ok {
			rs.PublishRaw(block, regs)
		}
	}
}

// RecordCycle forwards to members implementing ReportSink
func (m MultiSink) RecordCycle(r CycleReport) {
	for _, s := range m {
		if rs, ok := s.(ReportSink); ok {
			rs.RecordCycle(r)
		}
	}
}

// LogSink writes every snapshot to a logger at debug level
type LogSink struct {
	Log *zap.Logger
}

// PublishStatus implements Sink
func (l LogSink) PublishStatus(r geco.StatusRecord) {
	l.Log.Debug("status", zap.Any("fields", r.Map()))
}

// PublishConfig implements Sink
func (l LogSink) PublishConfig(r geco.ConfigRecord) {
	l.Log.Debug("config", zap.Any("fields", r.Map()))
}

// PublishRaw implements RawSink
func (l LogSink) PublishRaw(block geco.Block, regs []uint16) {
	l.Log.Debug("raw registers", zap.Stringer("block", block), zap.Uint16s("regs", regs))
}

// Update is a snapshot delivered through a ChanSink. Exactly one of Status
// and Config is set.
type Update struct {
	Status *geco.StatusRecord
	Config *geco.ConfigRecord
}

// ChanSink delivers snapshots on a channel, dropping them if the reader is
// behind.
type ChanSink chan Update

// PublishStatus implements Sink
func (c ChanSink) PublishStatus(r geco.StatusRecord) {
	select {
	case c <- Update{Status: &r}:
	default:
	}
}

// PublishConfig implements Sink
func (c ChanSink) PublishConfig(r geco.ConfigRecord) {
	select {
	case c <- Update{Config: &r}:
	default:
	}
}

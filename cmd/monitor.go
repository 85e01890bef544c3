// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/poller"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and configuring the heat pump",
	Long: `Run the poller with a live terminal UI instead of MQTT.

Features:
  - Live status registers (temperatures, flags, controller clock)
  - Config registers with their current values
  - Editing writable config registers (active mode only)
  - Poll cycle statistics
  - Event logging, including reconnects

Tab switches between the status table and the config list. Enter on a
writable config register opens an input for the new value; Enter again
queues the write for the next cycle, Esc cancels.

Supports serial, TCP and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// Messages from the poller goroutine
type statusMsg geco.StatusRecord
type configMsg geco.ConfigRecord
type cycleMsg poller.CycleReport
type logMsg struct {
	level   zapcore.Level
	message string
}
type pollerDoneMsg struct{}

// tuiSink forwards poller output to the running program
type tuiSink struct {
	p *tea.Program
}

func (s *tuiSink) PublishStatus(r geco.StatusRecord) { s.p.Send(statusMsg(r)) }
func (s *tuiSink) PublishConfig(r geco.ConfigRecord) { s.p.Send(configMsg(r)) }
func (s *tuiSink) RecordCycle(r poller.CycleReport)  { s.p.Send(cycleMsg(r)) }

// tuiLogger routes log entries into the event log; writing to stderr would
// corrupt the screen
func tuiLogger(send func(tea.Msg), level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(io.Discard),
		level,
	)
	core = zapcore.RegisterHooks(core, func(e zapcore.Entry) error {
		send(logMsg{level: e.Level, message: e.Message})
		return nil
	})
	return zap.New(core)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	pcfg, err := appConfig.PollerConfig()
	if err != nil {
		return err
	}
	level, err := zapcore.ParseLevel(appConfig.Logging.Level)
	if err != nil {
		return err
	}

	sink := &tuiSink{}
	var prog *tea.Program
	log := tuiLogger(func(msg tea.Msg) { prog.Send(msg) }, level)

	sess, err := newSession(log)
	if err != nil {
		return err
	}
	pol := poller.New(sess, sink, pcfg, log)

	m := initialMonitorModel(describeLink(appConfig), pcfg.Mode, pol.Submit)
	prog = tea.NewProgram(m, tea.WithAltScreen())
	sink.p = prog

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = pol.Run(runCtx)
		prog.Send(pollerDoneMsg{})
	}()

	_, runErr := prog.Run()
	cancel()
	wg.Wait()

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/link"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed packets and errors",
	Long: `Track packet errors, malformed data, and anomalous values with statistics.

This command listens passively and validates each packet. It detects:
  - Checksum failures (header CRC-8 and payload checksum)
  - Start bytes that did not begin a valid packet
  - Malformed packets (unknown function codes, length mismatches)
  - Anomalous values (register starts outside a block, implausible temperatures)
  - Statistics and trends (packet rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid packets too.

Packets are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// busEvent is one decoded packet or one rejected start byte
type busEvent struct {
	packet           *geco.Packet
	decodeErr        error
	validationErrors []geco.ValidationError
}

// busWatcher turns a byte stream into busEvents. Rejected start bytes only
// count as errors once the first valid packet has been seen.
type busWatcher struct {
	framer       *geco.Framer
	synchronized bool

	onSync  func(invalidBytes uint64)
	onEvent func(busEvent)
}

func newBusWatcher(onSync func(uint64), onEvent func(busEvent)) *busWatcher {
	w := &busWatcher{
		framer:  geco.NewFramer(geco.DefaultFramerLimit, geco.DefaultFramerKeep),
		onSync:  onSync,
		onEvent: onEvent,
	}
	w.framer.OnReject = func(err error) {
		if w.synchronized {
			w.onEvent(busEvent{decodeErr: err})
		}
	}
	return w
}

func (w *busWatcher) feed(chunk []byte) {
	for _, frame := range w.framer.Feed(chunk) {
		if !w.synchronized {
			// First packet! Everything discarded so far was pre-sync noise
			w.synchronized = true
			w.onSync(w.framer.Discarded)
		}
		w.onEvent(busEvent{
			packet:           frame.Packet,
			validationErrors: geco.ValidatePacket(frame.Packet),
		})
	}
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(ctx, conn, connInfo)
	}
	return runTextMode(ctx, conn, connInfo)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints validation errors for a packet
func printValidationErrors(packet *geco.Packet, errors []geco.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	fnc := geco.FormatFunctionCode(packet.Function())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, fnc, packet.Function())
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case geco.ANOMALY_LENGTH_MISMATCH:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case geco.ANOMALY_UNKNOWN_FUNCTION, geco.ANOMALY_UNKNOWN_SUBFUNCTION, geco.ANOMALY_INVALID_COUNT:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case geco.ANOMALY_UNEXPECTED_START:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		case geco.ANOMALY_OUT_OF_RANGE:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if temp, ok := err.Details["value"].(float64); ok {
				fmt.Printf("    %v=%.1f°C\n", err.Details["register"], temp)
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	// Packet header for context
	fmt.Printf("  From %d/%d to %d/%d", packet.SrcHard(), packet.SrcSoft(), packet.DstHard(), packet.DstSoft())
	if packet.HasRegisters() {
		fmt.Printf(", start=%d count=%d", packet.RegisterStart(), packet.RegisterCount())
	}
	fmt.Printf("\n  >>> PACKET REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, conn link.Transport, connInfo string) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	watcher := newBusWatcher(
		func(invalid uint64) { p.Send(syncMsg{invalidBytes: invalid}) },
		func(ev busEvent) { p.Send(serialDataMsg(ev)) },
	)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := readLoop(readCtx, conn, watcher.feed); err != nil {
			p.Send(connectionLostMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in plain text
func runTextMode(ctx context.Context, conn link.Transport, connInfo string) error {
	fmt.Printf("Gecostat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := geco.NewStatistics()

	watcher := newBusWatcher(
		func(invalid uint64) {
			if invalid > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalid)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		},
		func(ev busEvent) {
			if ev.decodeErr != nil {
				stats.Update(nil, ev.decodeErr, nil)
				stats.AddFalseStarts(1)
				printDecodeError(ev.decodeErr)
				return
			}
			stats.Update(ev.packet, nil, ev.validationErrors)
			if len(ev.validationErrors) > 0 {
				printValidationErrors(ev.packet, ev.validationErrors)
			} else if showAll {
				fmt.Print(geco.FormatPacket(ev.packet))
				fmt.Println()
			}
		},
	)

	// Channel for non-blocking reads
	chunks := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readLoop(ctx, conn, func(chunk []byte) {
			data := make([]byte, len(chunk))
			copy(data, chunk)
			chunks <- data
		})
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case data := <-chunks:
			watcher.feed(data)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			if err != nil {
				logger.Error("read failed", zap.Error(err))
			}
			return err
		}
	}
}

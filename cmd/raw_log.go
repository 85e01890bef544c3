// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

var (
	rawLogCapture string
	rawLogHex     bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display GECO packets as they arrive.

Nothing is sent on the bus. Each packet is shown with timestamp, function
code, addresses and decoded registers. Responses starting at a block base are
shown with register names.

With --capture, every received chunk is also appended to a CBOR capture file
that the replay command can decode later.

Supports serial, TCP and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Write received bytes to a CBOR capture file")
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print each packet as hex")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	// Open connection (serial, TCP or WebSocket)
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var capture *geco.CaptureWriter
	if rawLogCapture != "" {
		f, err := os.Create(rawLogCapture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		capture = geco.NewCaptureWriter(f)
	}

	fmt.Printf("Gecostat - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if capture != nil {
		fmt.Printf("Capture: %s\n", rawLogCapture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	framer := geco.NewFramer(geco.DefaultFramerLimit, geco.DefaultFramerKeep)
	framer.OnReject = func(err error) {
		logger.Debug("rejected start byte", zap.Error(err))
	}

	err = readLoop(ctx, conn, func(chunk []byte) {
		if capture != nil {
			if err := capture.Write(geco.DirectionRX, chunk, time.Now()); err != nil {
				logger.Error("capture write failed", zap.Error(err))
			}
		}
		for _, frame := range framer.Feed(chunk) {
			fmt.Print(geco.FormatPacket(frame.Packet))
			if rawLogHex {
				fmt.Printf("  %s\n", geco.FormatHex(geco.MustEncode(frame.Packet)))
			}
			fmt.Println()
		}
	})

	if capture != nil {
		fmt.Printf("\n%d chunks captured\n", capture.Records())
	}
	return err
}

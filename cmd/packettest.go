// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid GECO packet",
	Long: `Wait for a valid GECO packet on the connection until timeout.

This command connects to the bus and waits for any valid packet, request or
response, from any device. It ignores invalid bytes and waits for a complete
packet that passes both checksums. Nothing is sent.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for checking wiring and the serial bridge before running the poller.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(packetTestTimeout)*time.Second)
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Gecostat - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid GECO packet...\n\n")

	framer := geco.NewFramer(geco.DefaultFramerLimit, geco.DefaultFramerKeep)
	var packet *geco.Packet
	readErr := readLoop(ctx, conn, func(chunk []byte) {
		if packet != nil {
			return
		}
		if frames := framer.Feed(chunk); len(frames) > 0 {
			packet = frames[0].Packet
			cancel()
		}
	})

	if packet != nil {
		if framer.Discarded > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", framer.Discarded)
		}
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Function: %s (0x%02X)\n", geco.FormatFunctionCode(packet.Function()), packet.Function())
		fmt.Printf("  From: %d/%d  To: %d/%d\n", packet.SrcHard(), packet.SrcSoft(), packet.DstHard(), packet.DstSoft())
		fmt.Printf("  Length: %d bytes\n", packet.TotalLength())
		if packet.HasRegisters() {
			fmt.Printf("  Registers: start=%d count=%d\n", packet.RegisterStart(), packet.RegisterCount())
		}
		os.Exit(0)
	}

	if readErr != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", readErr)
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
	os.Exit(1)
	return nil
}

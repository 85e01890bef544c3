// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/session"
)

var (
	pingCount int
	pingGap   time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link by timing status reads",
	Long: `Send status read requests to the heat pump and report the round trip
time of each, together with the controller clock from the response.

This is useful for verifying:
  - The serial port, TCP bridge or WebSocket bridge is reachable
  - Device and controller addresses are right
  - The controller answers within the response timeout

Exit codes:
  0 - All reads answered
  1 - One or more reads failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of reads to send")
	pingCmd.Flags().DurationVar(&pingGap, "gap", 500*time.Millisecond, "Pause between reads")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	ctx, stop := signalContext()
	defer stop()

	sess, err := newSession(logger)
	if err != nil {
		return err
	}
	if err := sess.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer sess.Close()

	fmt.Printf("Gecostat - Ping\n")
	fmt.Printf("Connection: %s\n", describeLink(appConfig))
	fmt.Printf("Count: %d reads\n\n", pingCount)

	sent, successCount := 0, 0
	for i := 1; i <= pingCount; i++ {
		sent++
		fmt.Printf("Read %d/%d: ", i, pingCount)

		startTime := time.Now()
		status, err := sess.ReadStatus(ctx)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			rtt := time.Since(startTime)
			fmt.Printf("%d registers, controller clock %04d-%02d-%02d %02d:%02d:%02d, rtt=%v\n",
				status.Registers,
				status.Year, status.Month, status.Day,
				status.Hour, status.Minute, status.Second,
				rtt.Round(time.Millisecond))
			successCount++
		}

		if i < pingCount && session.Sleep(ctx, pingGap) != nil {
			break
		}
	}

	failCount := sent - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d reads sent, %d answered, %.0f%% loss\n",
		sent, successCount, float64(failCount)/float64(sent)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

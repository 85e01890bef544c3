// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

var replayQuiet bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file written by raw_log --capture",
	Long: `Feed a CBOR capture file through the framer and print every packet
with its timestamp, followed by a traffic summary.

No connection is opened, so this works offline.

Examples:
  gecostat raw_log --port /dev/ttyUSB0 --capture bus.cbor
  gecostat replay bus.cbor`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"config": "none"},
	RunE:        runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Only print the summary")
}

// replaySummary holds the outcome of decoding a capture
type replaySummary struct {
	Records int
	Bytes   int
	Stats   *geco.Statistics
	Framer  *geco.Framer
}

// replayCapture decodes every record in r, calling onFrame for each packet
func replayCapture(r io.Reader, onFrame func(geco.CaptureRecord, geco.Frame)) (replaySummary, error) {
	sum := replaySummary{
		Stats:  geco.NewStatistics(),
		Framer: geco.NewFramer(geco.DefaultFramerLimit, geco.DefaultFramerKeep),
	}
	sum.Framer.OnReject = func(err error) {
		sum.Stats.AddFalseStarts(1)
	}

	reader := geco.NewCaptureReader(r)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		sum.Records++
		if rec.Direction != geco.DirectionRX {
			continue
		}
		sum.Bytes += len(rec.Data)
		for _, frame := range sum.Framer.Feed(rec.Data) {
			sum.Stats.Update(frame.Packet, nil, geco.ValidatePacket(frame.Packet))
			if onFrame != nil {
				onFrame(rec, frame)
			}
		}
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	sum, err := replayCapture(f, func(rec geco.CaptureRecord, frame geco.Frame) {
		if replayQuiet {
			return
		}
		fmt.Printf("[%s] ", rec.Timestamp().Format("2006-01-02 15:04:05.000"))
		fmt.Print(geco.FormatPacket(frame.Packet))
		fmt.Println()
	})
	if err != nil {
		return err
	}

	s := sum.Stats
	fmt.Printf("=== Replay of %s ===\n", args[0])
	fmt.Printf("Records:         %8d\n", sum.Records)
	fmt.Printf("Bytes:           %8d\n", sum.Bytes)
	fmt.Printf("Packets:         %8d\n", s.TotalPackets)
	fmt.Printf("  Requests:      %8d\n", s.Requests)
	fmt.Printf("  Responses:     %8d\n", s.Responses)
	fmt.Printf("  Writes:        %8d\n", s.Writes)
	fmt.Printf("False starts:    %8d\n", s.FalseStarts)
	fmt.Printf("Anomalies:       %8d\n", s.AnomalousValues+s.MalformedPackets)
	fmt.Printf("Discarded bytes: %8d\n", sum.Framer.Discarded)
	return nil
}

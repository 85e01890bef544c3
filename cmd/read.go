// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

var readOutput string

var readCmd = &cobra.Command{
	Use:       "read [status|config|all]",
	Short:     "Read and decode register blocks once",
	ValidArgs: []string{"status", "config", "all"},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	Long: `Send one read request per block and print the decoded registers.

This is an active command: it talks on the bus as the controller. Do not use
it while another controller is polling the heat pump.`,
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().StringVarP(&readOutput, "output", "o", outputTable, "Output format: table, json or yaml")
}

func runRead(cmd *cobra.Command, args []string) error {
	if err := checkOutput(readOutput); err != nil {
		return err
	}
	which := "all"
	if len(args) == 1 {
		which = args[0]
	}

	ctx, stop := signalContext()
	defer stop()

	sess, err := newSession(logger)
	if err != nil {
		return err
	}
	if err := sess.Connect(ctx); err != nil {
		return err
	}
	defer sess.Close()

	result := map[string]map[string]interface{}{}

	if which == "status" || which == "all" {
		status, err := sess.ReadStatus(ctx)
		if err != nil {
			return fmt.Errorf("status read failed: %w", err)
		}
		result[geco.BlockStatus.String()] = status.Map()
	}
	if which == "config" || which == "all" {
		config, err := sess.ReadConfig(ctx)
		if err != nil {
			return fmt.Errorf("config read failed: %w", err)
		}
		result[geco.BlockConfig.String()] = config.Map()
	}

	if readOutput != outputTable {
		return writeStructured(os.Stdout, readOutput, result)
	}
	for _, block := range []geco.Block{geco.BlockStatus, geco.BlockConfig} {
		fields, ok := result[block.String()]
		if !ok {
			continue
		}
		fmt.Printf("%s (base %d):\n", block, block.Base())
		fmt.Print(geco.FormatFields(fields))
		fmt.Println()
	}
	return nil
}

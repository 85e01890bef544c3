// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

var writeCmd = &cobra.Command{
	Use:   "write NAME VALUE",
	Short: "Write one config register",
	Long: `Write a config register with read-modify-write.

The config block is read first, the named register is replaced in a copy, and
the whole block is written back. The heat pump echoes the block it stored;
the write only succeeds if the echoed value matches.

Booleans accept true/false, on/off, yes/no and 1/0. Temperatures are given in
degrees and stored in tenths. Run "gecostat registers --writable" for the list
of writable registers and their ranges.`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	name, value := args[0], args[1]

	// Reject bad input before touching the bus
	if _, _, err := geco.EncodeValue(name, value); err != nil {
		return err
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

	before, err := sess.ReadConfig(ctx)
	if err != nil {
		return fmt.Errorf("config read failed: %w", err)
	}
	if err := sess.WriteRegister(ctx, name, value); err != nil {
		return err
	}

	regs, _, _ := sess.CachedConfig()
	after := geco.DecodeConfig(regs)
	fmt.Printf("%s: %s -> %s\n", name,
		geco.FormatValue(before.Map()[name]), geco.FormatValue(after.Map()[name]))
	return nil
}

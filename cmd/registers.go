// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/geco"
)

var (
	registersOutput   string
	registersWritable bool
)

var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "List the known registers",
	Long: `Print the register map: block, address, name, type, range and
description. Names printed here are the ones accepted by write and by the
MQTT command topics.`,
	Annotations: map[string]string{"config": "none"},
	RunE:        runRegisters,
}

func init() {
	rootCmd.AddCommand(registersCmd)
	registersCmd.Flags().StringVarP(&registersOutput, "output", "o", outputTable, "Output format: table, json or yaml")
	registersCmd.Flags().BoolVar(&registersWritable, "writable", false, "Only list writable config registers")
}

// registerInfo is the printable form of a register definition
type registerInfo struct {
	Block       string   `json:"block" yaml:"block"`
	Address     uint16   `json:"address" yaml:"address"`
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Writable    bool     `json:"writable" yaml:"writable"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Description string   `json:"description" yaml:"description"`
}

func listRegisters(writableOnly bool) []registerInfo {
	var out []registerInfo
	add := func(b geco.Block, def geco.RegisterDefinition) {
		info := registerInfo{
			Block:       b.String(),
			Address:     b.Base() + uint16(def.Offset),
			Name:        def.Name,
			Type:        def.Type.String(),
			Writable:    def.Writable,
			Description: def.Description,
		}
		if def.Range != nil {
			lo, hi := def.Range.Min, def.Range.Max
			info.Min, info.Max = &lo, &hi
		}
		out = append(out, info)
	}

	if writableOnly {
		for _, def := range geco.WritableConfigs() {
			add(geco.BlockConfig, def)
		}
		return out
	}
	for _, b := range []geco.Block{geco.BlockStatus, geco.BlockConfig} {
		for _, def := range b.Definitions() {
			add(b, def)
		}
	}
	return out
}

func runRegisters(cmd *cobra.Command, args []string) error {
	if err := checkOutput(registersOutput); err != nil {
		return err
	}
	regs := listRegisters(registersWritable)
	if registersOutput != outputTable {
		return writeStructured(os.Stdout, registersOutput, regs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BLOCK\tADDR\tNAME\tTYPE\tRW\tRANGE\tDESCRIPTION")
	for _, r := range regs {
		rw := "r"
		if r.Writable {
			rw = "rw"
		}
		rng := "-"
		if r.Min != nil {
			rng = fmt.Sprintf("%g..%g", *r.Min, *r.Max)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", r.Block, r.Address, r.Name, r.Type, rw, rng, r.Description)
	}
	return w.Flush()
}

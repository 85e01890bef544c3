// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gecostat/pkg/link"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this machine.

Use one of them with --port, or as serial:///dev/ttyUSB0 in link.url.

Exit codes:
  0 - At least one port found
  1 - No ports found
  2 - Enumeration error`,
	Annotations: map[string]string{"config": "none"},
	RunE:        runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := link.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list ports: %v\n", err)
		os.Exit(2)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		os.Exit(1)
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Gecostat - GECO heat pump bridge
//
// Polls or eavesdrops on a Hewalex GECO RS485 bus, publishes registers to
// MQTT and Prometheus, and provides tools for decoding bus traffic.

package main

import (
	"os"

	"github.com/Thermoquad/gecostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string

	// portName is a shorthand for --url with a local serial device
	portName string

	appConfig *Config
	logger    *zap.Logger
)

var settings = newViper()

var rootCmd = &cobra.Command{
	Use:   "gecostat",
	Short: "GECO heat pump bus poller and protocol analyzer",
	Long: `Gecostat - A CLI tool for polling and analyzing Hewalex GECO heat pumps
over their RS485 bus.

The run command polls the heat pump (or listens to an existing controller)
and publishes decoded values to MQTT and Prometheus. The remaining commands
are diagnostics: raw packet logs, error detection, one-shot reads and writes.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 38400]
  TCP:       --url tcp://host:8899 (RS485 to Ethernet bridge)
  WebSocket: --url ws://host/path [--username user]

Settings can also come from a config file (--config, or gecostat.yaml in
/etc/gecostat, ~/.config/gecostat or the working directory) and from
environment variables prefixed with GECO_, e.g. GECO_MQTT_HOST.

For WebSocket authentication, the password is read from the GECO_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipConfig(cmd) {
			logger = zap.NewNop()
			return nil
		}
		if portName != "" && !cmd.Flags().Changed("url") {
			settings.Set("link.url", portName)
		}

		var err error
		appConfig, err = LoadConfig(settings, cfgFile)
		if err != nil {
			return err
		}
		logger, err = NewLogger(appConfig.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// skipConfig is true for commands that never touch the bus
func skipConfig(cmd *cobra.Command) bool {
	return cmd.Annotations["config"] == "none"
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (yaml, json or toml)")

	// Connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device (shorthand for --url)")
	flags.StringP("url", "u", "", "Bus URL (tcp://, socket://, serial://, ws:// or wss://)")
	flags.IntP("baud", "b", 38400, "Baud rate (serial only)")
	flags.String("username", "", "Username for HTTP Basic auth (WebSocket only)")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Poller flags
	flags.String("mode", "active", "Poller mode: active or eavesdrop")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")

	bindFlag("link.url", "url")
	bindFlag("link.baud", "baud")
	bindFlag("link.username", "username")
	bindFlag("link.no_ssl_verify", "no-ssl-verify")
	bindFlag("mode", "mode")
	bindFlag("logging.level", "log-level")
	bindFlag("logging.format", "log-format")
}

func bindFlag(key, flag string) {
	if err := settings.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

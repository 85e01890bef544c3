// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/bridge"
	"github.com/Thermoquad/gecostat/pkg/poller"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the heat pump and publish values to MQTT and Prometheus",
	Long: `Run the poller until interrupted.

In active mode the heat pump is polled every poll interval: queued writes
first, then the status block, then the config block. In eavesdrop mode the
bus is only observed and responses to another controller are decoded.

Decoded values are published to MQTT (when mqtt.enabled) and exposed as
Prometheus gauges on /metrics (when metrics.enabled). MQTT messages on
<prefix>/config/<Register>/set queue register writes.

Only startup failures are fatal: an invalid config or an unreachable broker.
Bus errors are logged and retried with backoff.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("mqtt", false, "Publish to MQTT")
	runCmd.Flags().Bool("metrics", false, "Serve Prometheus metrics")
	runCmd.Flags().String("metrics-listen", ":9110", "Metrics listen address")
	runCmd.Flags().Duration("interval", 30*time.Second, "Poll interval (active mode)")
	runCmd.Flags().Bool("raw", false, "Also publish raw register dumps")

	for key, flag := range map[string]string{
		"mqtt.enabled":    "mqtt",
		"metrics.enabled": "metrics",
		"metrics.listen":  "metrics-listen",
		"poll_interval":   "interval",
		"raw_registers":   "raw",
	} {
		if err := settings.BindPFlag(key, runCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	pcfg, err := appConfig.PollerConfig()
	if err != nil {
		return err
	}
	sess, err := newSession(logger)
	if err != nil {
		return err
	}

	logger.Info("gecostat starting",
		zap.String("link", describeLink(appConfig)),
		zap.Stringer("mode", pcfg.Mode),
		zap.Duration("poll_interval", pcfg.PollInterval))

	sinks := poller.MultiSink{poller.LogSink{Log: logger}}
	var p *poller.Poller

	var pub *bridge.MQTTPublisher
	if appConfig.MQTT.Enabled {
		submit := bridge.SubmitterFunc(func(name string, value interface{}) error {
			return p.Submit(name, value)
		})
		pub = bridge.NewMQTTPublisher(appConfig.BrokerConfig(), submit, logger.Named("mqtt"))
		sinks = append(sinks, pub)
	}

	var metricsServer *http.Server
	if appConfig.Metrics.Enabled {
		metrics := bridge.NewMetrics()
		sinks = append(sinks, metrics)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              appConfig.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	p = poller.New(sess, sinks, pcfg, logger.Named("poller"))

	if pub != nil {
		if err := pub.Connect(); err != nil {
			return err
		}
		defer pub.Close()
	}

	if metricsServer != nil {
		go func() {
			logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("poller stopped: %w", err)
	}

	logger.Info("gecostat stopped")
	return nil
}

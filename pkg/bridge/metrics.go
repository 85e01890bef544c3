// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/poller"
)

const namespace = "geco"

// Metrics exports decoded registers and poller health as Prometheus gauges
type Metrics struct {
	registry *prometheus.Registry

	status *prometheus.GaugeVec
	config *prometheus.GaugeVec
	last   *prometheus.GaugeVec

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Gauge
	writes        prometheus.Counter
	writeFailures prometheus.Counter

	exchanges       prometheus.Gauge
	timeouts        prometheus.Gauge
	transportErrors prometheus.Gauge
	skipped         prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status_value",
			Help:      "Decoded status register value",
		}, []string{"register"}),
		config: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_value",
			Help:      "Decoded config register value",
		}, []string{"register"}),
		last: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Time the block was last decoded",
		}, []string{"block"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Active poll cycles by outcome",
		}, []string{"result"}),
		cycleDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of the last poll cycle",
		}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Register writes attempted",
		}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Register writes that failed or were not confirmed",
		}),
		exchanges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_exchanges",
			Help:      "Request/response exchanges since start",
		}),
		timeouts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_timeouts",
			Help:      "Exchanges that got no matching response",
		}),
		transportErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_transport_errors",
			Help:      "Transport failures since start",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_skipped_packets",
			Help:      "Bus packets skipped while waiting for a response",
		}),
	}

	m.registry.MustRegister(
		m.status, m.config, m.last,
		m.cycles, m.cycleDuration, m.writes, m.writeFailures,
		m.exchanges, m.timeouts, m.transportErrors, m.skipped,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PublishStatus implements poller.Sink
func (m *Metrics) PublishStatus(r geco.StatusRecord) {
	setGauges(m.status, r.Map())
	m.last.WithLabelValues(geco.BlockStatus.String()).Set(float64(r.ReceivedAt.Unix()))
}

// PublishConfig implements poller.Sink
func (m *Metrics) PublishConfig(r geco.ConfigRecord) {
	setGauges(m.config, r.Map())
	m.last.WithLabelValues(geco.BlockConfig.String()).Set(float64(r.ReceivedAt.Unix()))
}

// RecordCycle implements poller.ReportSink
func (m *Metrics) RecordCycle(rep poller.CycleReport) {
	result := "ok"
	switch {
	case rep.Err != nil:
		result = "error"
	case !rep.StatusOK || !rep.ConfigOK:
		result = "partial"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Set(rep.Duration.Seconds())
	m.writes.Add(float64(rep.Writes))
	m.writeFailures.Add(float64(rep.WriteFailures))

	m.exchanges.Set(float64(rep.Session.Exchanges))
	m.timeouts.Set(float64(rep.Session.Timeouts))
	m.transportErrors.Set(float64(rep.Session.TransportErrors))
	m.skipped.Set(float64(rep.Session.Skipped))
}

// setGauges sets one gauge per numeric field. Strings (time programs) have
// no numeric form and are skipped.
func setGauges(vec *prometheus.GaugeVec, fields map[string]interface{}) {
	for name, v := range fields {
		f, ok := gaugeValue(v)
		if !ok {
			continue
		}
		vec.WithLabelValues(name).Set(f)
	}
}

func gaugeValue(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case int:
		return float64(val), true
	case uint16:
		return float64(val), true
	default:
		return 0, false
	}
}

var (
	_ poller.Sink       = (*Metrics)(nil)
	_ poller.ReportSink = (*Metrics)(nil)
)

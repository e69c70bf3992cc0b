// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: runZeroInc-sockstats/pkg/exporter/exporter.go's
// Describe/Collect shape (a mutex-guarded snapshot read on every
// Collect call, one prometheus.Desc per metric, metrics emitted as
// plain gauges/counters with no per-label cardinality).

package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a [*Series]'s Sum bucket as Prometheus metrics.
// Only Sum is exported (the current interval bucket is an internal
// rotation detail); callers wanting per-interval series should read
// Series.Current/First directly instead of scraping them.
type Collector struct {
	series *Series

	requests   *prometheus.Desc
	ongoing    *prometheus.Desc
	answers    *prometheus.Desc
	connActive *prometheus.Desc
	handshakes *prometheus.Desc
	resumed    *prometheus.Desc
	failed     *prometheus.Desc
	rcode      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector wraps series for Prometheus registration.
func NewCollector(series *Series) *Collector {
	return &Collector{
		series:     series,
		requests:   prometheus.NewDesc("dnsreplay_requests_total", "Total DNS requests sent.", nil, nil),
		ongoing:    prometheus.NewDesc("dnsreplay_requests_ongoing", "DNS requests awaiting a response.", nil, nil),
		answers:    prometheus.NewDesc("dnsreplay_answers_total", "Total DNS answers received.", nil, nil),
		connActive: prometheus.NewDesc("dnsreplay_connections_active", "Open connections at last rotation.", nil, nil),
		handshakes: prometheus.NewDesc("dnsreplay_connection_handshakes_total", "Connection handshake attempts.", nil, nil),
		resumed:    prometheus.NewDesc("dnsreplay_connection_handshakes_resumed_total", "TLS session-resumed handshakes.", nil, nil),
		failed:     prometheus.NewDesc("dnsreplay_connection_handshakes_failed_total", "Failed connection handshakes.", nil, nil),
		rcode:      prometheus.NewDesc("dnsreplay_rcode_total", "Answers by RCODE.", []string{"rcode"}, nil),
	}
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.requests
	descs <- c.ongoing
	descs <- c.answers
	descs <- c.connActive
	descs <- c.handshakes
	descs <- c.resumed
	descs <- c.failed
	descs <- c.rcode
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.series.mu.Lock()
	defer c.series.mu.Unlock()

	sum := c.series.Sum
	metrics <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(sum.Requests))
	metrics <- prometheus.MustNewConstMetric(c.ongoing, prometheus.GaugeValue, float64(sum.Ongoing))
	metrics <- prometheus.MustNewConstMetric(c.answers, prometheus.CounterValue, float64(sum.Answers))
	metrics <- prometheus.MustNewConstMetric(c.connActive, prometheus.GaugeValue, float64(sum.ConnActive))
	metrics <- prometheus.MustNewConstMetric(c.handshakes, prometheus.CounterValue, float64(sum.ConnHandshakes))
	metrics <- prometheus.MustNewConstMetric(c.resumed, prometheus.CounterValue, float64(sum.ConnResumed))
	metrics <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(sum.ConnHandshakesFailed))
	for rc := RCode(0); rc < rcodeCount; rc++ {
		metrics <- prometheus.MustNewConstMetric(c.rcode, prometheus.CounterValue, float64(sum.RCode[rc]), rc.String())
	}
}

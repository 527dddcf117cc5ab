package dispatch

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mindcare/guardian/core/model"
)

var (
	sendLatency   *prometheus.HistogramVec
	sendsTotal    *prometheus.CounterVec
	retriesActive prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_send_latency_seconds",
			Help:    "Latency of channel send attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "ok"},
	)
	sends := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sends_total",
			Help: "Number of channel send attempts",
		},
		[]string{"channel", "ok"},
	)
	retries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_retries_inflight",
			Help: "Number of notifications with an active retry loop",
		},
	)
	return lat, sends, retries
}

func init() {
	sendLatency, sendsTotal, retriesActive = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(sendLatency, sendsTotal, retriesActive)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	sendLatency, sendsTotal, retriesActive = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observeSend(ch model.Channel, ok bool, dur time.Duration) {
	label := strconv.FormatBool(ok)
	sendsTotal.WithLabelValues(string(ch), label).Inc()
	sendLatency.WithLabelValues(string(ch), label).Observe(dur.Seconds())
}

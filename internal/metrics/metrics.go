// Package metrics exports server events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gonzalop/ftpjail/server"
)

var _ server.MetricsCollector = (*Collector)(nil)

// Collector implements server.MetricsCollector.
type Collector struct {
	commands          *prometheus.HistogramVec
	transferBytes     *prometheus.CounterVec
	transferDurations *prometheus.HistogramVec
	connections       *prometheus.CounterVec
	logins            *prometheus.CounterVec
}

// New registers the ftpjail metrics with reg. Pass prometheus.DefaultRegisterer
// to expose them with the process metrics.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		commands: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftpjail_command_duration_seconds",
				Help:    "FTP command duration and result in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 10, 60},
			},
			[]string{
				"cmd",
				"result", // ok, error
			},
		),
		transferBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpjail_transfer_bytes_total",
				Help: "Bytes moved by completed transfers.",
			},
			[]string{
				"op", // RETR, STOR, APPE, STOU
			},
		),
		transferDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftpjail_transfer_duration_seconds",
				Help:    "Duration of completed transfers in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"op"},
		),
		connections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpjail_connection_total",
				Help: "Incoming control connections.",
			},
			[]string{
				"reason", // accepted, global_limit_reached, per_ip_limit_reached
			},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpjail_authentication_total",
				Help: "Login attempts by result.",
			},
			[]string{
				"result", // ok, fail
			},
		),
	}
}

func (c *Collector) RecordCommand(cmd string, success bool, duration time.Duration) {
	result := "ok"
	if !success {
		result = "error"
	}
	c.commands.WithLabelValues(cmd, result).Observe(duration.Seconds())
}

func (c *Collector) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	c.transferBytes.WithLabelValues(operation).Add(float64(bytes))
	c.transferDurations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordConnection(_ bool, reason string) {
	c.connections.WithLabelValues(reason).Inc()
}

// RecordAuthentication counts logins. The user name is not a label.
func (c *Collector) RecordAuthentication(success bool, _ string) {
	result := "ok"
	if !success {
		result = "fail"
	}
	c.logins.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

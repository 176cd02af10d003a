// Package metrics holds the Prometheus collectors for the real-time channel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jam"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConnectionsActive *prometheus.GaugeVec
	CommandsTotal     *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	FramesDropped     prometheus.Counter
	FeedsActive       prometheus.Gauge
	FeedRefreshes     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open real-time connections by role.",
		}, []string{"role"}),
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands received by type and outcome.",
		}, []string{"command", "outcome"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because a client's send queue was full.",
		}),
		FeedsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feeds_active",
			Help:      "Jams with a running change feed.",
		}),
		FeedRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refreshes_total",
			Help:      "Queue snapshots pushed by change feeds, by trigger.",
		}, []string{"trigger"}),
	}
}

// ConnOpened records a new connection for role.
func (m *Metrics) ConnOpened(role string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(role).Inc()
}

// ConnClosed records a closed connection for role.
func (m *Metrics) ConnClosed(role string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(role).Dec()
}

// Command records one executed command.
func (m *Metrics) Command(command, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(seconds)
}

// FrameDropped records a frame dropped for a slow client.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// FeedStarted records a feed starting.
func (m *Metrics) FeedStarted() {
	if m == nil {
		return
	}
	m.FeedsActive.Inc()
}

// FeedStopped records a feed stopping.
func (m *Metrics) FeedStopped() {
	if m == nil {
		return
	}
	m.FeedsActive.Dec()
}

// FeedRefreshed records a snapshot push caused by trigger.
func (m *Metrics) FeedRefreshed(trigger string) {
	if m == nil {
		return
	}
	m.FeedRefreshes.WithLabelValues(trigger).Inc()
}

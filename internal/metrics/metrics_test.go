package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	default:
		t.Fatalf("unsupported metric type")
		return 0
	}
}

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnOpened("user")
	m.ConnOpened("user")
	m.ConnClosed("user")
	m.Command("add_song", "ok", 0.01)
	m.FrameDropped()
	m.FeedStarted()
	m.FeedRefreshed("notification")

	assert.Equal(t, 1.0, value(t, m.ConnectionsActive.WithLabelValues("user")))
	assert.Equal(t, 1.0, value(t, m.CommandsTotal.WithLabelValues("add_song", "ok")))
	assert.Equal(t, 1.0, value(t, m.FramesDropped))
	assert.Equal(t, 1.0, value(t, m.FeedsActive))
	assert.Equal(t, 1.0, value(t, m.FeedRefreshes.WithLabelValues("notification")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ConnOpened("host")
		m.Command("update", "ok", 0)
		m.FrameDropped()
		m.FeedStopped()
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

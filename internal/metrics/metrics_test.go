package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ReservationAttempt("created")
	m.ReservationAttempt("created")
	m.ReservationAttempt("daily_limit")
	m.SlotToggle("opened")
	m.Notification("telegram", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reservations.WithLabelValues("daily_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toggles.WithLabelValues("opened")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("telegram", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ReservationAttempt("created")
		m.SlotToggle("closed")
		m.Notification("amqp", true)
		m.ObserveHTTP("/healthz", "200", 0.01)
	})
	assert.NotNil(t, m.Handler())
}

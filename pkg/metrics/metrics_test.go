package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncWrite("self")
	m.IncWrite("self")
	m.IncWrite("admin_override")
	m.IncRejected("CutoffPassed")
	m.AddBulkFailures(3)
	m.AddCascadeOptOuts(0)
	m.SubscriberJoined()
	m.SubscriberJoined()
	m.SubscriberLeft()
	m.ObserveCompute(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParticipationWrites.WithLabelValues("self")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParticipationWrites.WithLabelValues("admin_override")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParticipationRejected.WithLabelValues("CutoffPassed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BulkFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CascadeOptOuts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamSubscribers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncWrite("self")
		m.IncRejected("DayBlocked")
		m.ObserveCompute(time.Now())
		m.SubscriberJoined()
		m.IncEvent("heartbeat")
		m.IncJob("announcement", "ok")
	})
}

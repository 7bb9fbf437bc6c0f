package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()
	require.NotSame(t, a.Registry(), b.Registry())

	a.IncReconnectAttempts()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ReconnectAttempts))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ReconnectAttempts))
}

func TestRecordTransition(t *testing.T) {
	m := NewMetrics()

	m.RecordTransition("idle", "exporting")
	m.RecordTransition("exporting", "pending")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionTransitions.WithLabelValues("idle", "exporting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionState.WithLabelValues("exporting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("pending")))
}

func TestRecordExport(t *testing.T) {
	m := NewMetrics()

	m.RecordExport(10*time.Millisecond, "")
	m.RecordExport(20*time.Millisecond, "extraction")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportFailures.WithLabelValues("extraction")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExportDuration))
}

func TestUpdateUptime(t *testing.T) {
	m := NewMetrics()
	m.UpdateUptime()
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Uptime), 0.0)
}

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/api/workspaces/:wid/tickets", "GET", 200, 15*time.Millisecond)
	m.RecordAuthorization("TICKET", "READ", true)
	m.RecordAuthorization("TICKET", "READ", false)
	m.RecordAuthorization("TICKET", "READ", false)
	m.RecordHistory("UPDATE", 2)
	m.RecordHistory("UPDATE", 0)
	m.RecordError("FORBIDDEN")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/workspaces/:wid/tickets", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthorizationDecisions.WithLabelValues("TICKET", "READ", "denied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HistoryRecordsTotal.WithLabelValues("UPDATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPErrorsTotal.WithLabelValues("FORBIDDEN")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordAuthorization("TICKET", "READ", true)
		m.RecordHistory("CREATE", 8)
		m.RecordError("CONFLICT")
	})
}

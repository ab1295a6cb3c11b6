package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheusQuestMetrics(t *testing.T) {
	m := New()
	m.ObserveAPI("POST", "/api/guilds/:guildID/assignments/:id/progress", "200", 20*time.Millisecond)
	m.ObserveAPI("GET", "/healthcheck", "503", time.Millisecond)
	m.ObserveAggregateOperation("Quest.Assignment.ApplyProgress", "success", 3*time.Millisecond)
	m.IncAggregateConflict("Quest.Assignment.Start")
	m.IncAggregateRetry("")
	m.IncProgressEntries(3)
	m.IncProgressEntries(-1)
	m.IncAutoCompleted()
	m.IncProgressEvent("progress_applied", "ok")

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `guildops_api_requests_total{method="POST",route="/api/guilds/:guildID/assignments/:id/progress",status="200"} 1.000000`)
	assert.Contains(t, out, "guildops_api_requests_error_total 1.000000")
	assert.Contains(t, out, `guildops_aggregate_operations_total{operation="Quest.Assignment.ApplyProgress",status="success"} 1.000000`)
	assert.Contains(t, out, `guildops_aggregate_operation_duration_seconds_bucket{operation="Quest.Assignment.ApplyProgress",status="success",le="0.005"} 1`)
	assert.Contains(t, out, `guildops_aggregate_conflicts_total{operation="Quest.Assignment.Start"} 1.000000`)
	assert.Contains(t, out, `guildops_aggregate_retries_total{operation="unknown"} 1.000000`)
	assert.Contains(t, out, "guildops_progress_entries_total 3.000000")
	assert.Contains(t, out, "guildops_assignments_autocompleted_total 1.000000")
	assert.Contains(t, out, `guildops_progress_events_total{kind="progress_applied",status="ok"} 1.000000`)
	assert.Contains(t, out, "# TYPE guildops_redis_up gauge")
}

func TestWritePrometheusIsOrdered(t *testing.T) {
	m := New()
	m.IncAggregateConflict("b")
	m.IncAggregateConflict("a")

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	assert.Less(t, strings.Index(out, `operation="a"`), strings.Index(out, `operation="b"`))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveAggregateOperation("x", "success", time.Millisecond)
	m.IncAutoCompleted()
	m.ApiInflightInc()

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInitHonorsConfig(t *testing.T) {
	assert.Nil(t, Init(nil, MetricsConfig{}))

	m := Init(nil, MetricsConfig{Enabled: true, ScrapeIntervalSeconds: 2})
	require.NotNil(t, m)
	assert.Equal(t, 2*time.Second, m.interval)
	assert.Equal(t, 10*time.Second, New().interval)
}

func TestLabelEscaping(t *testing.T) {
	assert.Equal(t, `{k="a\"b\\c"}`, labelString([]string{"k"}, []string{`a"b\c`}))
	assert.Equal(t, `{le="1"}`, withLe("", "1"))
	assert.Equal(t, `{a="x",le="+Inf"}`, withLe(`{a="x"}`, "+Inf"))
}

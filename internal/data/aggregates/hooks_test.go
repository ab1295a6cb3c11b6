package aggregates

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

func TestObservabilityHooksWithoutSinksAreNoop(t *testing.T) {
	_, ok := NewObservabilityHooks(HooksOptions{}).(noopHooks)
	assert.True(t, ok)
}

func TestObservabilityHooksRecordMetrics(t *testing.T) {
	m := observability.New()
	h := NewObservabilityHooks(HooksOptions{Metrics: m, Log: logger.Nop(), SlowWrite: time.Nanosecond})
	h.ObserveOperation("Quest.Assignment.Transition", "success", time.Millisecond)
	h.IncConflict("Quest.Assignment.Transition")
	h.IncRetry("Quest.Blueprint.UpsertGraph")

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, `guildops_aggregate_operations_total{operation="Quest.Assignment.Transition",status="success"} 1.000000`)
	assert.Contains(t, out, `guildops_aggregate_conflicts_total{operation="Quest.Assignment.Transition"} 1.000000`)
	assert.Contains(t, out, `guildops_aggregate_retries_total{operation="Quest.Blueprint.UpsertGraph"} 1.000000`)
}

func TestObservabilityHooksLogOnlyIsSafe(t *testing.T) {
	h := NewObservabilityHooks(HooksOptions{Log: logger.Nop()})
	h.ObserveOperation("Quest.Assignment.Start", "success", time.Second)
	h.IncConflict("Quest.Assignment.Start")
	h.IncRetry("Quest.Assignment.Start")
}

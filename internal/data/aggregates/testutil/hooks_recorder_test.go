package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHooksRecorderKeepsOrderAndFilters(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("Quest.Assignment.Start", "conflict", time.Millisecond)
	h.IncConflict("Quest.Assignment.Start")
	h.ObserveOperation("Quest.Assignment.Start", "success", time.Millisecond)
	h.IncRetry("Quest.Blueprint.UpsertGraph")

	assert.Len(t, h.Events(), 4)
	assert.Equal(t, []string{"conflict", "success"}, h.Statuses("Quest.Assignment.Start"))
	assert.Equal(t, []string{"Quest.Assignment.Start"}, h.Ops(HookConflict))
	assert.Equal(t, []string{"Quest.Blueprint.UpsertGraph"}, h.Ops(HookRetry))
	assert.Empty(t, h.Statuses("Quest.Blueprint.Create"))
}

func TestHooksRecorderConcurrentWrites(t *testing.T) {
	h := &HooksRecorder{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ObserveOperation("Quest.Assignment.ApplyProgress", "success", time.Microsecond)
		}()
	}
	wg.Wait()
	assert.Len(t, h.Statuses("Quest.Assignment.ApplyProgress"), 20)
}

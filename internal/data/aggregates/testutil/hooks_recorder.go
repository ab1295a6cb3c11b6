package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/guildops-backend/internal/data/aggregates"
)

type HookKind string

const (
	HookOperation HookKind = "operation"
	HookConflict  HookKind = "conflict"
	HookRetry     HookKind = "retry"
)

type HookEvent struct {
	Kind     HookKind
	Op       string
	Status   string
	Duration time.Duration
}

// HooksRecorder keeps every hook call in order. Safe for concurrent writes.
type HooksRecorder struct {
	mu     sync.Mutex
	events []HookEvent
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) record(ev HookEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.record(HookEvent{Kind: HookOperation, Op: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) { h.record(HookEvent{Kind: HookConflict, Op: name}) }

func (h *HooksRecorder) IncRetry(name string) { h.record(HookEvent{Kind: HookRetry, Op: name}) }

func (h *HooksRecorder) Events() []HookEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HookEvent(nil), h.events...)
}

// Statuses lists the recorded outcome of each op write, oldest first.
func (h *HooksRecorder) Statuses(op string) []string {
	var out []string
	for _, ev := range h.Events() {
		if ev.Kind == HookOperation && ev.Op == op {
			out = append(out, ev.Status)
		}
	}
	return out
}

// Ops lists the op names recorded for kind.
func (h *HooksRecorder) Ops(kind HookKind) []string {
	var out []string
	for _, ev := range h.Events() {
		if ev.Kind == kind {
			out = append(out, ev.Op)
		}
	}
	return out
}

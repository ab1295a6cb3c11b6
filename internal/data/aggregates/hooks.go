package aggregates

import (
	"time"

	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

// DefaultSlowWrite is the duration above which a quest write is logged.
const DefaultSlowWrite = 500 * time.Millisecond

// Hooks receives the outcome of every aggregate write.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type HooksOptions struct {
	Metrics *observability.Metrics
	Log     *logger.Logger
	// SlowWrite of zero uses DefaultSlowWrite; negative disables slow-write logs.
	SlowWrite time.Duration
}

type questWriteHooks struct {
	metrics *observability.Metrics
	log     *logger.Logger
	slow    time.Duration
}

// NewObservabilityHooks feeds aggregate outcomes into metrics and warns about slow writes.
func NewObservabilityHooks(opts HooksOptions) Hooks {
	if opts.Metrics == nil && opts.Log == nil {
		return noopHooks{}
	}
	slow := opts.SlowWrite
	if slow == 0 {
		slow = DefaultSlowWrite
	}
	h := &questWriteHooks{metrics: opts.Metrics, slow: slow}
	if opts.Log != nil {
		h.log = opts.Log.With("component", "AggregateHooks")
	}
	return h
}

func (h *questWriteHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(name, status, dur)
	if h.log != nil && h.slow > 0 && dur >= h.slow {
		h.log.Warn("slow quest write", "op", name, "status", status, "duration_ms", dur.Milliseconds())
	}
}

func (h *questWriteHooks) IncConflict(name string) { h.metrics.IncAggregateConflict(name) }

func (h *questWriteHooks) IncRetry(name string) { h.metrics.IncAggregateRetry(name) }

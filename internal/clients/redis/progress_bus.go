package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

// Event kinds published on the progress channel.
const (
	EventAssignmentStarted   = "assignment_started"
	EventAssignmentStatus    = "assignment_status"
	EventProgressApplied     = "progress_applied"
	EventAssignmentCompleted = "assignment_completed"
	EventBlueprintGraph      = "blueprint_graph_updated"
)

type ProgressEvent struct {
	Kind         string      `json:"kind"`
	GuildID      uuid.UUID   `json:"guild_id"`
	BlueprintID  uuid.UUID   `json:"blueprint_id"`
	AssignmentID *uuid.UUID  `json:"assignment_id,omitempty"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	ActorID      uuid.UUID   `json:"actor_id"`
	Status       string      `json:"status,omitempty"`
	NodeIDs      []string    `json:"node_ids,omitempty"`
	Summary      *EventStats `json:"summary,omitempty"`
	At           time.Time   `json:"at"`
}

type EventStats struct {
	TotalNodes     int     `json:"total_nodes"`
	CompletedNodes int     `json:"completed_nodes"`
	Percentage     float64 `json:"percentage"`
}

type ProgressBus interface {
	Publish(ctx context.Context, ev ProgressEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev ProgressEvent)) error
	Close() error
}

type BusOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type progressBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

// NewProgressBus connects to redis. An empty Addr yields a bus that drops events.
func NewProgressBus(log *logger.Logger, opts BusOptions) (ProgressBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		log.Info("progress bus disabled (no REDIS_ADDR)")
		return NoopBus{}, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewProgressBusFromClient(log, rdb, opts.Channel), nil
}

func NewProgressBusFromClient(log *logger.Logger, rdb goredis.UniversalClient, channel string) ProgressBus {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "guildops.progress"
	}
	return &progressBus{
		log:     log.With("service", "RedisProgressBus"),
		rdb:     rdb,
		channel: channel,
	}
}

// Client exposes the underlying redis client for health checks.
func (b *progressBus) Client() goredis.UniversalClient { return b.rdb }

func (b *progressBus) Publish(ctx context.Context, ev ProgressEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis progress bus not initialized")
	}
	raw, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *progressBus) StartForwarder(ctx context.Context, onEvent func(ev ProgressEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis progress bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				ev, err := DecodeEvent([]byte(m.Payload))
				if err != nil {
					b.log.Warn("bad redis progress payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *progressBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func EncodeEvent(ev ProgressEvent) ([]byte, error) {
	if strings.TrimSpace(ev.Kind) == "" {
		return nil, fmt.Errorf("progress event kind required")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return json.Marshal(ev)
}

func DecodeEvent(raw []byte) (ProgressEvent, error) {
	var ev ProgressEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ProgressEvent{}, err
	}
	if strings.TrimSpace(ev.Kind) == "" {
		return ProgressEvent{}, fmt.Errorf("progress event kind missing")
	}
	return ev, nil
}

// NoopBus drops every event.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, ProgressEvent) error { return nil }
func (NoopBus) StartForwarder(context.Context, func(ProgressEvent)) error {
	return nil
}
func (NoopBus) Close() error { return nil }

// RecordingBus keeps published events in memory.
type RecordingBus struct {
	mu     sync.Mutex
	events []ProgressEvent
	Err    error
}

func (r *RecordingBus) Publish(_ context.Context, ev ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *RecordingBus) Events() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.events...)
}
func (r *RecordingBus) StartForwarder(context.Context, func(ProgressEvent)) error { return nil }
func (r *RecordingBus) Close() error                                              { return nil }

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/guildops-backend/internal/clients/redis"
	"github.com/yungbote/guildops-backend/internal/data/graph"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
	"github.com/yungbote/guildops-backend/internal/platform/neo4jdb"
)

const postCommitTimeout = 5 * time.Second

// QuestNotifier fans committed quest writes out to the event bus and the graph mirror.
// Failures are logged and never surface to the caller.
type QuestNotifier interface {
	GraphUpdated(ctx context.Context, actorID uuid.UUID, res domainagg.UpsertGraphResult)
	AssignmentStarted(ctx context.Context, actorID uuid.UUID, st domainagg.AssignmentState)
	AssignmentStatusChanged(ctx context.Context, actorID uuid.UUID, st domainagg.AssignmentState)
	ProgressApplied(ctx context.Context, actorID uuid.UUID, res domainagg.ApplyProgressResult)
}

type NoopNotifier struct{}

func (NoopNotifier) GraphUpdated(context.Context, uuid.UUID, domainagg.UpsertGraphResult)          {}
func (NoopNotifier) AssignmentStarted(context.Context, uuid.UUID, domainagg.AssignmentState)       {}
func (NoopNotifier) AssignmentStatusChanged(context.Context, uuid.UUID, domainagg.AssignmentState) {}
func (NoopNotifier) ProgressApplied(context.Context, uuid.UUID, domainagg.ApplyProgressResult)     {}

// GraphMirror receives the full graph of a blueprint after every upsert.
type GraphMirror interface {
	SyncBlueprint(ctx context.Context, bp *quest.Blueprint, nodes []*quest.BlueprintNode, links []*quest.BlueprintLink) error
}

type neo4jMirror struct {
	client *neo4jdb.Client
}

// NewNeo4jMirror returns nil when client is nil.
func NewNeo4jMirror(client *neo4jdb.Client) GraphMirror {
	if client == nil {
		return nil
	}
	return &neo4jMirror{client: client}
}

func (m *neo4jMirror) SyncBlueprint(ctx context.Context, bp *quest.Blueprint, nodes []*quest.BlueprintNode, links []*quest.BlueprintLink) error {
	return graph.SyncBlueprintGraph(ctx, m.client, bp, nodes, links)
}

type questNotifier struct {
	log     *logger.Logger
	bus     redis.ProgressBus
	mirror  GraphMirror
	metrics *observability.Metrics
	now     func() time.Time
}

func NewQuestNotifier(log *logger.Logger, bus redis.ProgressBus, mirror GraphMirror, metrics *observability.Metrics) QuestNotifier {
	if bus == nil {
		bus = redis.NoopBus{}
	}
	return &questNotifier{
		log:     log.With("service", "QuestNotifier"),
		bus:     bus,
		mirror:  mirror,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (n *questNotifier) GraphUpdated(ctx context.Context, actorID uuid.UUID, res domainagg.UpsertGraphResult) {
	if res.Blueprint == nil {
		return
	}
	bp := res.Blueprint
	ev := redis.ProgressEvent{
		Kind:        redis.EventBlueprintGraph,
		GuildID:     bp.GuildID,
		BlueprintID: bp.ID,
		ActorID:     actorID,
		NodeIDs:     append(append([]string{}, res.InsertedNodeIDs...), res.DeletedNodeIDs...),
		At:          n.now(),
	}
	n.fanOut(ctx, []redis.ProgressEvent{ev}, func(ctx context.Context) error {
		if n.mirror == nil {
			return nil
		}
		err := n.mirror.SyncBlueprint(ctx, bp, res.Nodes, res.Links)
		n.metrics.IncGraphMirrorSync(statusOf(err))
		return err
	})
}

func (n *questNotifier) AssignmentStarted(ctx context.Context, actorID uuid.UUID, st domainagg.AssignmentState) {
	if st.Assignment == nil {
		return
	}
	n.fanOut(ctx, []redis.ProgressEvent{n.assignmentEvent(redis.EventAssignmentStarted, actorID, st.Assignment, nil)}, nil)
}

func (n *questNotifier) AssignmentStatusChanged(ctx context.Context, actorID uuid.UUID, st domainagg.AssignmentState) {
	if st.Assignment == nil {
		return
	}
	events := []redis.ProgressEvent{n.assignmentEvent(redis.EventAssignmentStatus, actorID, st.Assignment, nil)}
	if st.Assignment.Status == quest.AssignmentCompleted {
		events = append(events, n.assignmentEvent(redis.EventAssignmentCompleted, actorID, st.Assignment, nil))
	}
	n.fanOut(ctx, events, nil)
}

func (n *questNotifier) ProgressApplied(ctx context.Context, actorID uuid.UUID, res domainagg.ApplyProgressResult) {
	if res.Assignment == nil {
		return
	}
	n.metrics.IncProgressEntries(len(res.AppliedNodeIDs))
	events := []redis.ProgressEvent{n.assignmentEvent(redis.EventProgressApplied, actorID, res.Assignment, res.AppliedNodeIDs)}
	if res.AutoCompleted {
		n.metrics.IncAutoCompleted()
		events = append(events, n.assignmentEvent(redis.EventAssignmentCompleted, actorID, res.Assignment, nil))
	}
	n.fanOut(ctx, events, nil)
}

func (n *questNotifier) assignmentEvent(kind string, actorID uuid.UUID, as *quest.Assignment, nodeIDs []string) redis.ProgressEvent {
	asID := as.ID
	userID := as.UserID
	sum := as.Summary.Data()
	return redis.ProgressEvent{
		Kind:         kind,
		GuildID:      as.GuildID,
		BlueprintID:  as.BlueprintID,
		AssignmentID: &asID,
		UserID:       &userID,
		ActorID:      actorID,
		Status:       as.Status,
		NodeIDs:      nodeIDs,
		Summary: &redis.EventStats{
			TotalNodes:     sum.TotalNodes,
			CompletedNodes: sum.Completed,
			Percentage:     sum.PercentComplete,
		},
		At: n.now(),
	}
}

// fanOut publishes events and runs extra concurrently, detached from the
// request's cancellation.
func (n *questNotifier) fanOut(ctx context.Context, events []redis.ProgressEvent, extra func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	var g errgroup.Group
	for _, ev := range events {
		g.Go(func() error {
			err := n.bus.Publish(ctx, ev)
			n.metrics.IncProgressEvent(ev.Kind, statusOf(err))
			if err != nil {
				n.log.Warn("progress event publish failed", "kind", ev.Kind, "error", err)
			}
			return nil
		})
	}
	if extra != nil {
		g.Go(func() error {
			if err := extra(ctx); err != nil {
				n.log.Warn("graph mirror sync failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

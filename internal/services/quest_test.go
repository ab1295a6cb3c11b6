package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/guildops-backend/internal/clients/redis"
	"github.com/yungbote/guildops-backend/internal/data/aggregates"
	"github.com/yungbote/guildops-backend/internal/data/repos"
	repotest "github.com/yungbote/guildops-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/domain/guild"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/modules/quest/progress"
	"github.com/yungbote/guildops-backend/internal/observability"
)

type recordingMirror struct {
	mu    sync.Mutex
	syncs map[uuid.UUID]int
	err   error
}

func (m *recordingMirror) SyncBlueprint(_ context.Context, bp *quest.Blueprint, nodes []*quest.BlueprintNode, _ []*quest.BlueprintLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncs == nil {
		m.syncs = map[uuid.UUID]int{}
	}
	m.syncs[bp.ID] = len(nodes)
	return m.err
}

type serviceFixture struct {
	ctx     context.Context
	db      *gorm.DB
	svc     QuestService
	bus     *redis.RecordingBus
	mirror  *recordingMirror
	metrics *observability.Metrics

	guildID   uuid.UUID
	member    Actor
	officer   Actor
	outsider  Actor
	character uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	base := aggregates.BaseDeps{DB: db, Log: log}

	f := &serviceFixture{
		ctx:      ctx,
		db:       db,
		bus:      &redis.RecordingBus{},
		mirror:   &recordingMirror{},
		metrics:  observability.New(),
		guildID:  uuid.New(),
		member:   Actor{UserID: uuid.New(), DisplayName: "Aria"},
		officer:  Actor{UserID: uuid.New(), DisplayName: "Quartermaster"},
		outsider: Actor{UserID: uuid.New(), DisplayName: "Stranger"},
	}
	f.svc = NewQuestService(log, QuestServiceDeps{
		Repos: set,
		Blueprints: aggregates.NewBlueprintAggregate(aggregates.BlueprintAggregateDeps{
			Base: base, Blueprints: set.Blueprint, Nodes: set.Node, Links: set.Link,
			Assignments: set.Assignment, Progress: set.NodeProgress,
		}),
		Assignments: aggregates.NewAssignmentAggregate(aggregates.AssignmentAggregateDeps{
			Base: base, Blueprints: set.Blueprint, Nodes: set.Node, Links: set.Link,
			Assignments: set.Assignment, Progress: set.NodeProgress, Characters: set.Character,
		}),
		Roles:      NewRoleResolver(log, set.Member),
		Characters: NewCharacterDirectory(set.Character),
		Notifier:   NewQuestNotifier(log, f.bus, f.mirror, f.metrics),
	})

	repotest.SeedMember(t, ctx, db, f.guildID, f.member.UserID, guild.RoleMember)
	repotest.SeedMember(t, ctx, db, f.guildID, f.officer.UserID, guild.RoleOfficer)
	f.character = repotest.SeedCharacter(t, ctx, db, f.guildID, f.member.UserID, "Aria").ID
	return f
}

func crypt() GraphInput {
	a := repotest.Node("A", 0, false, false, 0)
	b := repotest.Node("B", 1, false, false, 5)
	c := repotest.Node("C", 2, false, true, 0)
	g := repotest.Node("G", 3, true, false, 0)
	l1 := repotest.Link("A", "B")
	l2 := repotest.Link("B", "C")
	l3 := repotest.Link("G", "B")
	l4 := repotest.Link("G", "C")
	return GraphInput{
		Nodes: []*quest.BlueprintNode{&a, &b, &c, &g},
		Links: []*quest.BlueprintLink{&l1, &l2, &l3, &l4},
	}
}

func (f *serviceFixture) createBlueprint(t *testing.T, by Actor, visibility string) *quest.Blueprint {
	t.Helper()
	bp, err := f.svc.CreateBlueprint(f.ctx, f.guildID, by, CreateBlueprintRequest{Title: "Ashen Crypt", Visibility: visibility})
	require.NoError(t, err)
	return bp
}

func TestQuestServiceEndToEnd(t *testing.T) {
	f := newServiceFixture(t)
	bp := f.createBlueprint(t, f.officer, "guild")
	assert.Equal(t, quest.VisibilityGuild, bp.Visibility)

	gr, err := f.svc.UpsertBlueprintGraph(f.ctx, f.guildID, bp.ID, f.officer, crypt())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C", "G"}, gr.InsertedNodeIDs)
	assert.Equal(t, 3, gr.TotalSteps)
	assert.Equal(t, 4, f.mirror.syncs[bp.ID])

	view, err := f.svc.StartAssignment(f.ctx, f.guildID, bp.ID, f.member, f.character)
	require.NoError(t, err)
	require.Len(t, view.Progress, 4)
	assert.Equal(t, "member-"+f.member.UserID.String()[:8], view.OwnerName)

	res, err := f.svc.ApplyAssignmentProgressUpdates(f.ctx, f.guildID, view.Assignment.ID, f.member, []progress.Update{
		{NodeID: "A", Status: strPtr("completed")},
		{NodeID: "B", ProgressCount: intPtr(5), Status: strPtr("COMPLETED")},
		{NodeID: "C", Status: strPtr("COMPLETED")},
	}, false)
	require.NoError(t, err)
	assert.True(t, res.AutoCompleted)
	assert.Equal(t, quest.AssignmentCompleted, res.Assignment.Status)
	assert.Equal(t, []string{"A", "B", "C"}, res.AppliedNodeIDs)

	kinds := []string{}
	for _, ev := range f.bus.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.ElementsMatch(t, []string{
		redis.EventBlueprintGraph,
		redis.EventAssignmentStarted,
		redis.EventProgressApplied,
		redis.EventAssignmentCompleted,
	}, kinds)

	sums, err := f.svc.ListBlueprintSummaries(f.ctx, f.guildID, f.member)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 4, sums[0].NodeCount)
	assert.Equal(t, 3, sums[0].TotalSteps)
	require.NotNil(t, sums[0].MyAssignment)
	assert.Equal(t, quest.AssignmentCompleted, sums[0].MyAssignment.Status)
	assert.Equal(t, 1.0, sums[0].MyAssignment.Summary.PercentComplete)
}

func TestQuestServiceDetailVisibility(t *testing.T) {
	f := newServiceFixture(t)
	private := f.createBlueprint(t, f.member, "PRIVATE")
	other := Actor{UserID: uuid.New(), DisplayName: "Bram"}
	repotest.SeedMember(t, f.ctx, f.db, f.guildID, other.UserID, guild.RoleMember)

	_, err := f.svc.GetBlueprintDetail(f.ctx, f.guildID, private.ID, other, false)
	assert.Equal(t, domainagg.CodeNotFound, domainagg.CodeOf(err))

	d, err := f.svc.GetBlueprintDetail(f.ctx, f.guildID, private.ID, f.officer, false)
	require.NoError(t, err)
	assert.True(t, d.CanEdit)
	assert.Empty(t, d.Assignments)

	d, err = f.svc.GetBlueprintDetail(f.ctx, f.guildID, private.ID, f.member, false)
	require.NoError(t, err)
	assert.True(t, d.CanEdit)

	sums, err := f.svc.ListBlueprintSummaries(f.ctx, f.guildID, other)
	require.NoError(t, err)
	assert.Empty(t, sums)

	_, err = f.svc.ListBlueprintSummaries(f.ctx, f.guildID, f.outsider)
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))
}

func TestQuestServiceGuildAssignmentsNeedManager(t *testing.T) {
	f := newServiceFixture(t)
	bp := f.createBlueprint(t, f.officer, "")
	_, err := f.svc.UpsertBlueprintGraph(f.ctx, f.guildID, bp.ID, f.officer, crypt())
	require.NoError(t, err)
	_, err = f.svc.StartAssignment(f.ctx, f.guildID, bp.ID, f.member, f.character)
	require.NoError(t, err)

	d, err := f.svc.GetBlueprintDetail(f.ctx, f.guildID, bp.ID, f.officer, false)
	require.NoError(t, err)
	assert.Empty(t, d.Assignments)

	d, err = f.svc.GetBlueprintDetail(f.ctx, f.guildID, bp.ID, f.officer, true)
	require.NoError(t, err)
	require.Len(t, d.Assignments, 1)
	assert.Len(t, d.Assignments[0].Progress, 4)
	assert.Len(t, d.Links, 4)
	assert.Equal(t, quest.EdgeDependency, d.Links[0].Kind)

	d, err = f.svc.GetBlueprintDetail(f.ctx, f.guildID, bp.ID, f.member, true)
	require.NoError(t, err)
	require.Len(t, d.Assignments, 1)
	assert.False(t, d.CanEdit)
}

func TestQuestServicePermissions(t *testing.T) {
	f := newServiceFixture(t)
	bp := f.createBlueprint(t, f.officer, "GUILD")

	_, err := f.svc.CreateBlueprint(f.ctx, f.guildID, f.outsider, CreateBlueprintRequest{Title: "Nope"})
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))

	_, err = f.svc.UpsertBlueprintGraph(f.ctx, f.guildID, bp.ID, f.member, crypt())
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))

	title := "Renamed"
	_, err = f.svc.UpdateBlueprintMetadata(f.ctx, f.guildID, bp.ID, f.member, domainagg.BlueprintMetadataPatch{Title: &title})
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))

	_, err = f.svc.UpdateBlueprintMetadata(f.ctx, uuid.New(), bp.ID, f.officer, domainagg.BlueprintMetadataPatch{Title: &title})
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))

	updated, err := f.svc.UpdateBlueprintMetadata(f.ctx, f.guildID, bp.ID, f.officer, domainagg.BlueprintMetadataPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	require.NotNil(t, updated.LastEditorID)
	assert.Equal(t, f.officer.UserID, *updated.LastEditorID)

	_, err = f.svc.UpsertBlueprintGraph(f.ctx, f.guildID, bp.ID, f.officer, crypt())
	require.NoError(t, err)
	view, err := f.svc.StartAssignment(f.ctx, f.guildID, bp.ID, f.member, f.character)
	require.NoError(t, err)

	// An officer needs the override flag to touch someone else's assignment.
	_, err = f.svc.UpdateAssignmentStatus(f.ctx, f.guildID, view.Assignment.ID, f.officer, "PAUSED", false)
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))
	paused, err := f.svc.UpdateAssignmentStatus(f.ctx, f.guildID, view.Assignment.ID, f.officer, "paused", true)
	require.NoError(t, err)
	assert.Equal(t, quest.AssignmentPaused, paused.Assignment.Status)

	// The override flag alone grants nothing to a plain member.
	other := Actor{UserID: uuid.New()}
	repotest.SeedMember(t, f.ctx, f.db, f.guildID, other.UserID, guild.RoleMember)
	_, err = f.svc.ApplyAssignmentProgressUpdates(f.ctx, f.guildID, view.Assignment.ID, other, []progress.Update{{NodeID: "A", Status: strPtr("COMPLETED")}}, true)
	assert.Equal(t, domainagg.CodePermissionDenied, domainagg.CodeOf(err))
}

func TestQuestServiceValidation(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateBlueprint(f.ctx, f.guildID, f.officer, CreateBlueprintRequest{Title: "   "})
	assert.Equal(t, domainagg.CodeValidation, domainagg.CodeOf(err))
	assert.Contains(t, err.Error(), "title is required")

	_, err = f.svc.CreateBlueprint(f.ctx, f.guildID, f.officer, CreateBlueprintRequest{Title: "ok", Visibility: "public"})
	assert.Equal(t, domainagg.CodeValidation, domainagg.CodeOf(err))

	bp := f.createBlueprint(t, f.officer, "")
	_, err = f.svc.StartAssignment(f.ctx, f.guildID, bp.ID, f.member, uuid.Nil)
	assert.Equal(t, domainagg.CodeValidation, domainagg.CodeOf(err))

	_, err = f.svc.StartAssignment(f.ctx, f.guildID, bp.ID, f.member, uuid.New())
	assert.Equal(t, domainagg.CodeNotFound, domainagg.CodeOf(err))

	big := make([]progress.Update, 501)
	for i := range big {
		big[i] = progress.Update{NodeID: "A"}
	}
	_, err = f.svc.ApplyAssignmentProgressUpdates(f.ctx, f.guildID, uuid.New(), f.member, big, false)
	assert.Equal(t, domainagg.CodeValidation, domainagg.CodeOf(err))
}

func TestQuestNotifierSwallowsFailures(t *testing.T) {
	f := newServiceFixture(t)
	f.bus.Err = errors.New("redis down")
	f.mirror.err = errors.New("neo4j down")

	bp := f.createBlueprint(t, f.officer, "")
	_, err := f.svc.UpsertBlueprintGraph(f.ctx, f.guildID, bp.ID, f.officer, crypt())
	require.NoError(t, err)
	assert.Empty(t, f.bus.Events())
}

func TestListMyCharacters(t *testing.T) {
	f := newServiceFixture(t)
	chars, err := f.svc.ListMyCharacters(f.ctx, f.guildID, f.member)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "Aria", chars[0].Name)

	chars, err = f.svc.ListMyCharacters(f.ctx, f.guildID, f.officer)
	require.NoError(t, err)
	assert.Empty(t, chars)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/guildops-backend/internal/data/repos"
	types "github.com/yungbote/guildops-backend/internal/domain"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/modules/quest/graph"
	"github.com/yungbote/guildops-backend/internal/modules/quest/progress"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

const summaryLoadLimit = 4

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID      uuid.UUID
	DisplayName string
}

type QuestService interface {
	ListBlueprintSummaries(ctx context.Context, guildID uuid.UUID, viewer Actor) ([]BlueprintSummary, error)
	CreateBlueprint(ctx context.Context, guildID uuid.UUID, creator Actor, in CreateBlueprintRequest) (*quest.Blueprint, error)
	UpdateBlueprintMetadata(ctx context.Context, guildID, blueprintID uuid.UUID, actor Actor, patch domainagg.BlueprintMetadataPatch) (*quest.Blueprint, error)
	GetBlueprintDetail(ctx context.Context, guildID, blueprintID uuid.UUID, viewer Actor, includeGuildAssignments bool) (*BlueprintDetail, error)
	UpsertBlueprintGraph(ctx context.Context, guildID, blueprintID uuid.UUID, actor Actor, in GraphInput) (*GraphResult, error)
	StartAssignment(ctx context.Context, guildID, blueprintID uuid.UUID, actor Actor, characterID uuid.UUID) (*AssignmentView, error)
	UpdateAssignmentStatus(ctx context.Context, guildID, assignmentID uuid.UUID, actor Actor, next string, allowManagerOverride bool) (*AssignmentView, error)
	ApplyAssignmentProgressUpdates(ctx context.Context, guildID, assignmentID uuid.UUID, actor Actor, updates []progress.Update, allowManagerOverride bool) (*ProgressResult, error)
	ListMyCharacters(ctx context.Context, guildID uuid.UUID, viewer Actor) ([]*types.Character, error)
}

type CreateBlueprintRequest struct {
	Title      string  `json:"title" validate:"not_blank,trimmed_max=200"`
	Summary    *string `json:"summary,omitempty" validate:"omitempty,trimmed_max=4000"`
	Visibility string  `json:"visibility,omitempty" validate:"omitempty,oneof=GUILD PRIVATE"`
}

type GraphInput struct {
	Nodes []*quest.BlueprintNode `json:"nodes" validate:"max=1000"`
	Links []*quest.BlueprintLink `json:"links" validate:"max=4000"`
}

type progressBatch struct {
	Updates []progress.Update `validate:"max=500"`
}

type AssignmentBrief struct {
	ID        uuid.UUID             `json:"id"`
	Status    string                `json:"status"`
	StartedAt time.Time             `json:"startedAt"`
	Summary   quest.ProgressSummary `json:"summary"`
}

type BlueprintSummary struct {
	Blueprint    *quest.Blueprint `json:"blueprint"`
	NodeCount    int              `json:"nodeCount"`
	TotalSteps   int              `json:"totalSteps"`
	MyAssignment *AssignmentBrief `json:"myAssignment,omitempty"`
}

type LinkView struct {
	*quest.BlueprintLink
	Kind quest.EdgeKind `json:"kind"`
}

type AssignmentView struct {
	Assignment *quest.Assignment     `json:"assignment"`
	OwnerName  string                `json:"ownerName,omitempty"`
	Progress   []*quest.NodeProgress `json:"progress"`
}

type BlueprintDetail struct {
	Blueprint   *quest.Blueprint       `json:"blueprint"`
	Nodes       []*quest.BlueprintNode `json:"nodes"`
	Links       []LinkView             `json:"links"`
	TotalSteps  int                    `json:"totalSteps"`
	CanEdit     bool                   `json:"canEdit"`
	Assignments []AssignmentView       `json:"assignments"`
}

type GraphResult struct {
	Blueprint        *quest.Blueprint       `json:"blueprint"`
	Nodes            []*quest.BlueprintNode `json:"nodes"`
	Links            []LinkView             `json:"links"`
	TotalSteps       int                    `json:"totalSteps"`
	InsertedNodeIDs  []string               `json:"insertedNodeIds"`
	UpdatedNodeIDs   []string               `json:"updatedNodeIds"`
	DeletedNodeIDs   []string               `json:"deletedNodeIds"`
	ResyncedProgress int                    `json:"resyncedAssignments"`
}

type ProgressResult struct {
	AssignmentView
	AppliedNodeIDs []string `json:"appliedNodeIds"`
	AutoCompleted  bool     `json:"autoCompleted"`
}

type QuestServiceDeps struct {
	Repos       repos.Set
	Blueprints  domainagg.BlueprintAggregate
	Assignments domainagg.AssignmentAggregate
	Roles       RoleResolver
	Characters  CharacterDirectory
	Notifier    QuestNotifier
}

type questService struct {
	log  *logger.Logger
	deps QuestServiceDeps
}

func NewQuestService(log *logger.Logger, deps QuestServiceDeps) QuestService {
	if deps.Notifier == nil {
		deps.Notifier = NoopNotifier{}
	}
	return &questService{log: log.With("service", "QuestService"), deps: deps}
}

func (s *questService) ListBlueprintSummaries(ctx context.Context, guildID uuid.UUID, viewer Actor) ([]BlueprintSummary, error) {
	const op = "Quest.ListBlueprintSummaries"
	member, err := s.requireMember(ctx, op, guildID, viewer)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	all, err := s.deps.Repos.Blueprint.ListByGuild(dbc, guildID, false)
	if err != nil {
		return nil, err
	}
	visible := make([]*quest.Blueprint, 0, len(all))
	ids := make([]uuid.UUID, 0, len(all))
	for _, bp := range all {
		if canView(bp, viewer.UserID, member.CanManage()) {
			visible = append(visible, bp)
			ids = append(ids, bp.ID)
		}
	}

	links, err := s.deps.Repos.Link.ListByBlueprintIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	linksByBP := map[uuid.UUID][]*quest.BlueprintLink{}
	for _, l := range links {
		linksByBP[l.BlueprintID] = append(linksByBP[l.BlueprintID], l)
	}
	latest, err := s.deps.Repos.Assignment.LatestByUserForBlueprints(dbc, viewer.UserID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]BlueprintSummary, len(visible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryLoadLimit)
	for i, bp := range visible {
		g.Go(func() error {
			nodes, err := s.deps.Repos.Node.ListByBlueprint(dbctx.Context{Ctx: gctx}, bp.ID)
			if err != nil {
				return fmt.Errorf("load nodes of %s: %w", bp.ID, err)
			}
			sum := BlueprintSummary{
				Blueprint:  bp,
				NodeCount:  len(nodes),
				TotalSteps: graph.NewAnalyzerFromLinks(nodes, linksByBP[bp.ID]).StepCount(),
			}
			if as := latest[bp.ID]; as != nil {
				sum.MyAssignment = &AssignmentBrief{ID: as.ID, Status: as.Status, StartedAt: as.StartedAt, Summary: as.Summary.Data()}
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *questService) CreateBlueprint(ctx context.Context, guildID uuid.UUID, creator Actor, in CreateBlueprintRequest) (*quest.Blueprint, error) {
	const op = "Quest.CreateBlueprint"
	in.Visibility = strings.ToUpper(strings.TrimSpace(in.Visibility))
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, op, guildID, creator); err != nil {
		return nil, err
	}
	return s.deps.Blueprints.Create(ctx, domainagg.CreateBlueprintInput{
		GuildID:    guildID,
		Creator:    editorOf(creator),
		Title:      in.Title,
		Summary:    in.Summary,
		Visibility: in.Visibility,
	})
}

func (s *questService) UpdateBlueprintMetadata(ctx context.Context, guildID, blueprintID uuid.UUID, actor Actor, patch domainagg.BlueprintMetadataPatch) (*quest.Blueprint, error) {
	const op = "Quest.UpdateBlueprintMetadata"
	if patch.Visibility != nil {
		v := strings.ToUpper(strings.TrimSpace(*patch.Visibility))
		patch.Visibility = &v
	}
	if err := validateInput(op, patch); err != nil {
		return nil, err
	}
	if _, err := s.requireEditor(ctx, op, guildID, blueprintID, actor); err != nil {
		return nil, err
	}
	return s.deps.Blueprints.UpdateMetadata(ctx, domainagg.UpdateBlueprintMetadataInput{
		BlueprintID: blueprintID,
		GuildID:     guildID,
		Editor:      editorOf(actor),
		Patch:       patch,
	})
}

func (s *questService) GetBlueprintDetail(ctx context.Context, guildID, blueprintID uuid.UUID, viewer Actor, includeGuildAssignments bool) (*BlueprintDetail, error) {
	const op = "Quest.GetBlueprintDetail"
	member, err := s.requireMember(ctx, op, guildID, viewer)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	bp, err := s.deps.Repos.Blueprint.GetByID(dbc, blueprintID)
	if err != nil {
		return nil, err
	}
	if bp == nil || bp.GuildID != guildID || !canView(bp, viewer.UserID, member.CanManage()) {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("blueprint not found: %s", blueprintID), nil)
	}

	var (
		nodes       []*quest.BlueprintNode
		links       []*quest.BlueprintLink
		assignments []*quest.Assignment
		members     []*types.GuildMember
	)
	allAssignments := includeGuildAssignments && member.CanManage()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodes, err = s.deps.Repos.Node.ListByBlueprint(dbctx.Context{Ctx: gctx}, bp.ID)
		return err
	})
	g.Go(func() (err error) {
		links, err = s.deps.Repos.Link.ListByBlueprint(dbctx.Context{Ctx: gctx}, bp.ID)
		return err
	})
	g.Go(func() (err error) {
		if allAssignments {
			assignments, err = s.deps.Repos.Assignment.ListByBlueprint(dbctx.Context{Ctx: gctx}, bp.ID)
			return err
		}
		assignments, err = s.deps.Repos.Assignment.ListByBlueprintAndUser(dbctx.Context{Ctx: gctx}, bp.ID, viewer.UserID)
		return err
	})
	if allAssignments {
		g.Go(func() (err error) {
			members, err = s.deps.Repos.Member.ListByGuild(dbctx.Context{Ctx: gctx}, guildID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(assignments))
	for _, as := range assignments {
		ids = append(ids, as.ID)
	}
	rows, err := s.deps.Repos.NodeProgress.ListByAssignmentIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byAssignment := map[uuid.UUID][]*quest.NodeProgress{}
	for _, r := range rows {
		byAssignment[r.AssignmentID] = append(byAssignment[r.AssignmentID], r)
	}
	names := map[uuid.UUID]string{}
	for _, m := range members {
		names[m.UserID] = m.DisplayName
	}
	names[viewer.UserID] = firstNonEmpty(names[viewer.UserID], member.DisplayName, viewer.DisplayName)

	out := &BlueprintDetail{
		Blueprint:   bp,
		Nodes:       nodes,
		Links:       linkViews(links),
		TotalSteps:  graph.NewAnalyzerFromLinks(nodes, links).StepCount(),
		CanEdit:     member.CanManage() || bp.CreatorID == viewer.UserID,
		Assignments: make([]AssignmentView, 0, len(assignments)),
	}
	for _, as := range assignments {
		progressRows := byAssignment[as.ID]
		if progressRows == nil {
			progressRows = []*quest.NodeProgress{}
		}
		out.Assignments = append(out.Assignments, AssignmentView{Assignment: as, OwnerName: names[as.UserID], Progress: progressRows})
	}
	return out, nil
}

func (s *questService) UpsertBlueprintGraph(ctx context.Context, guildID, blueprintID uuid.UUID, actor Actor, in GraphInput) (*GraphResult, error) {
	const op = "Quest.UpsertBlueprintGraph"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	if _, err := s.requireEditor(ctx, op, guildID, blueprintID, actor); err != nil {
		return nil, err
	}
	res, err := s.deps.Blueprints.UpsertGraph(ctx, domainagg.UpsertGraphInput{
		BlueprintID: blueprintID,
		GuildID:     guildID,
		Editor:      editorOf(actor),
		Nodes:       in.Nodes,
		Links:       in.Links,
	})
	if err != nil {
		return nil, err
	}
	s.deps.Notifier.GraphUpdated(ctx, actor.UserID, res)
	return &GraphResult{
		Blueprint:        res.Blueprint,
		Nodes:            res.Nodes,
		Links:            linkViews(res.Links),
		TotalSteps:       graph.NewAnalyzerFromLinks(res.Nodes, res.Links).StepCount(),
		InsertedNodeIDs:  nonNil(res.InsertedNodeIDs),
		UpdatedNodeIDs:   nonNil(res.UpdatedNodeIDs),
		DeletedNodeIDs:   nonNil(res.DeletedNodeIDs),
		ResyncedProgress: len(res.Assignments),
	}, nil
}

func (s *questService) StartAssignment(ctx context.Context, guildID, blueprintID uuid.UUID, actor Actor, characterID uuid.UUID) (*AssignmentView, error) {
	const op = "Quest.StartAssignment"
	if characterID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "characterId is required", nil)
	}
	member, err := s.requireMember(ctx, op, guildID, actor)
	if err != nil {
		return nil, err
	}
	st, err := s.deps.Assignments.Start(ctx, domainagg.StartAssignmentInput{
		BlueprintID: blueprintID,
		GuildID:     guildID,
		UserID:      actor.UserID,
		CharacterID: characterID,
	})
	if err != nil {
		return nil, err
	}
	s.deps.Notifier.AssignmentStarted(ctx, actor.UserID, st)
	return &AssignmentView{Assignment: st.Assignment, OwnerName: firstNonEmpty(member.DisplayName, actor.DisplayName), Progress: st.Progress}, nil
}

func (s *questService) UpdateAssignmentStatus(ctx context.Context, guildID, assignmentID uuid.UUID, actor Actor, next string, allowManagerOverride bool) (*AssignmentView, error) {
	const op = "Quest.UpdateAssignmentStatus"
	override, err := s.managerOverride(ctx, op, guildID, actor, allowManagerOverride)
	if err != nil {
		return nil, err
	}
	st, err := s.deps.Assignments.Transition(ctx, domainagg.TransitionAssignmentInput{
		AssignmentID:    assignmentID,
		GuildID:         guildID,
		ActorID:         actor.UserID,
		Next:            next,
		ManagerOverride: override,
	})
	if err != nil {
		return nil, err
	}
	if st.Changed {
		s.deps.Notifier.AssignmentStatusChanged(ctx, actor.UserID, st)
	}
	return &AssignmentView{Assignment: st.Assignment, Progress: st.Progress}, nil
}

func (s *questService) ApplyAssignmentProgressUpdates(ctx context.Context, guildID, assignmentID uuid.UUID, actor Actor, updates []progress.Update, allowManagerOverride bool) (*ProgressResult, error) {
	const op = "Quest.ApplyAssignmentProgressUpdates"
	if err := validateInput(op, progressBatch{Updates: updates}); err != nil {
		return nil, err
	}
	override, err := s.managerOverride(ctx, op, guildID, actor, allowManagerOverride)
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Assignments.ApplyProgress(ctx, domainagg.ApplyProgressInput{
		AssignmentID:    assignmentID,
		GuildID:         guildID,
		ActorID:         actor.UserID,
		ManagerOverride: override,
		Updates:         updates,
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.deps.Notifier.ProgressApplied(ctx, actor.UserID, res)
	}
	return &ProgressResult{
		AssignmentView: AssignmentView{Assignment: res.Assignment, Progress: res.Progress},
		AppliedNodeIDs: nonNil(res.AppliedNodeIDs),
		AutoCompleted:  res.AutoCompleted,
	}, nil
}

func (s *questService) ListMyCharacters(ctx context.Context, guildID uuid.UUID, viewer Actor) ([]*types.Character, error) {
	const op = "Quest.ListMyCharacters"
	if _, err := s.requireMember(ctx, op, guildID, viewer); err != nil {
		return nil, err
	}
	return s.deps.Characters.ListForUser(ctx, guildID, viewer.UserID)
}

func (s *questService) requireMember(ctx context.Context, op string, guildID uuid.UUID, actor Actor) (*types.GuildMember, error) {
	if actor.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodePermissionDenied, op, "unauthenticated", nil)
	}
	m, err := s.deps.Roles.Member(ctx, guildID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domainagg.NewError(domainagg.CodePermissionDenied, op, "not a member of this guild", nil)
	}
	return m, nil
}

// requireEditor loads the blueprint and checks that actor may edit it.
func (s *questService) requireEditor(ctx context.Context, op string, guildID, blueprintID uuid.UUID, actor Actor) (*quest.Blueprint, error) {
	if _, err := s.requireMember(ctx, op, guildID, actor); err != nil {
		return nil, err
	}
	bp, err := s.deps.Repos.Blueprint.GetByID(dbctx.Context{Ctx: ctx}, blueprintID)
	if err != nil {
		return nil, err
	}
	if bp == nil || bp.GuildID != guildID {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("blueprint not found: %s", blueprintID), nil)
	}
	ok, err := s.deps.Roles.CanEdit(ctx, bp, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainagg.NewError(domainagg.CodePermissionDenied, op, "only the creator or a guild manager may edit this blueprint", nil)
	}
	return bp, nil
}

func (s *questService) managerOverride(ctx context.Context, op string, guildID uuid.UUID, actor Actor, requested bool) (bool, error) {
	if _, err := s.requireMember(ctx, op, guildID, actor); err != nil {
		return false, err
	}
	if !requested {
		return false, nil
	}
	return s.deps.Roles.CanManage(ctx, guildID, actor.UserID)
}

func canView(bp *quest.Blueprint, viewerID uuid.UUID, canManage bool) bool {
	return bp.Visibility != quest.VisibilityPrivate || bp.CreatorID == viewerID || canManage
}

func editorOf(a Actor) domainagg.Editor {
	return domainagg.Editor{UserID: a.UserID, DisplayName: a.DisplayName}
}

func linkViews(links []*quest.BlueprintLink) []LinkView {
	out := make([]LinkView, 0, len(links))
	for _, l := range links {
		out = append(out, LinkView{BlueprintLink: l, Kind: l.Kind()})
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package aggregates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/guildops-backend/internal/data/repos"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/modules/quest/graph"
	"github.com/yungbote/guildops-backend/internal/modules/quest/progress"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

const (
	maxBlueprintTitleRunes   = 200
	maxBlueprintSummaryRunes = 4000
)

type BlueprintAggregateDeps struct {
	Base BaseDeps

	Blueprints  repos.BlueprintRepo
	Nodes       repos.BlueprintNodeRepo
	Links       repos.BlueprintLinkRepo
	Assignments repos.AssignmentRepo
	Progress    repos.NodeProgressRepo
}

type blueprintAggregate struct {
	deps BlueprintAggregateDeps
}

func NewBlueprintAggregate(deps BlueprintAggregateDeps) domainagg.BlueprintAggregate {
	deps.Base = deps.Base.withDefaults()
	return &blueprintAggregate{deps: deps}
}

func (a *blueprintAggregate) Contract() domainagg.Contract {
	return domainagg.BlueprintAggregateContract
}

func (a *blueprintAggregate) configured() bool {
	return a.deps.Blueprints != nil && a.deps.Nodes != nil && a.deps.Links != nil &&
		a.deps.Assignments != nil && a.deps.Progress != nil
}

func (a *blueprintAggregate) Create(ctx context.Context, in domainagg.CreateBlueprintInput) (*quest.Blueprint, error) {
	const op = domainagg.OpBlueprintCreate
	if in.GuildID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing guild_id", nil)
	}
	if in.Creator.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing creator", nil)
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
	}
	visibility, err := normalizeVisibility(in.Visibility)
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
	}
	summary, err := normalizeSummary(in.Summary)
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
	}
	if a.deps.Blueprints == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "blueprint aggregate repos not configured", nil)
	}

	now := a.deps.Base.now(in.Now)
	editorID := in.Creator.UserID
	bp := &quest.Blueprint{
		ID:             uuid.New(),
		GuildID:        in.GuildID,
		CreatorID:      in.Creator.UserID,
		Title:          title,
		Summary:        summary,
		Visibility:     visibility,
		LastEditorID:   &editorID,
		LastEditorName: strings.TrimSpace(in.Creator.DisplayName),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		return a.deps.Blueprints.Create(dbc, bp)
	})
	if err != nil {
		return nil, err
	}
	return bp, nil
}

func (a *blueprintAggregate) UpdateMetadata(ctx context.Context, in domainagg.UpdateBlueprintMetadataInput) (*quest.Blueprint, error) {
	const op = domainagg.OpBlueprintUpdateMetadata
	if in.BlueprintID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing blueprint_id", nil)
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "blueprint aggregate repos not configured", nil)
	}

	updates := map[string]interface{}{}
	if in.Patch.Title != nil {
		title, err := normalizeTitle(*in.Patch.Title)
		if err != nil {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
		}
		updates["title"] = title
	}
	if in.Patch.Summary != nil {
		summary, err := normalizeSummary(in.Patch.Summary)
		if err != nil {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
		}
		updates["summary"] = summary
	}
	if in.Patch.Visibility != nil {
		visibility, err := normalizeVisibility(*in.Patch.Visibility)
		if err != nil {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
		}
		updates["visibility"] = visibility
	}
	if in.Patch.Archived != nil {
		updates["archived"] = *in.Patch.Archived
	}

	now := a.deps.Base.now(in.Now)
	var out *quest.Blueprint
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		bp, err := a.deps.Blueprints.LockByID(dbc, in.BlueprintID)
		if err != nil {
			return err
		}
		if bp == nil || bp.GuildID != in.GuildID {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("blueprint not found: %s", in.BlueprintID), nil)
		}
		stampEditor(updates, in.Editor, now)
		if err := a.deps.Blueprints.UpdateFields(dbc, bp.ID, updates); err != nil {
			return err
		}
		fresh, err := a.deps.Blueprints.GetByID(dbc, bp.ID)
		if err != nil {
			return err
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *blueprintAggregate) UpsertGraph(ctx context.Context, in domainagg.UpsertGraphInput) (domainagg.UpsertGraphResult, error) {
	const op = domainagg.OpBlueprintUpsertGraph
	var out domainagg.UpsertGraphResult
	if in.BlueprintID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing blueprint_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "blueprint aggregate repos not configured", nil)
	}
	if err := graph.Validate(in.Nodes, in.Links); err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}

	now := a.deps.Base.now(in.Now)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.UpsertGraphResult{}

		bp, err := a.deps.Blueprints.LockByID(dbc, in.BlueprintID)
		if err != nil {
			return err
		}
		if bp == nil || bp.GuildID != in.GuildID {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("blueprint not found: %s", in.BlueprintID), nil)
		}
		if bp.Archived {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op, "blueprint is archived", nil)
		}

		stored, err := a.deps.Nodes.ListByBlueprint(dbc, bp.ID)
		if err != nil {
			return err
		}
		storedByID := make(map[string]*quest.BlueprintNode, len(stored))
		for _, n := range stored {
			storedByID[n.ID] = n
		}
		proposed := make(map[string]struct{}, len(in.Nodes))
		for _, n := range in.Nodes {
			proposed[n.ID] = struct{}{}
		}

		assignments, err := a.deps.Assignments.ListByBlueprint(dbc, bp.ID)
		if err != nil {
			return err
		}
		assignmentIDs := make([]uuid.UUID, 0, len(assignments))
		for _, as := range assignments {
			assignmentIDs = append(assignmentIDs, as.ID)
		}

		for _, n := range stored {
			if _, keep := proposed[n.ID]; !keep {
				out.DeletedNodeIDs = append(out.DeletedNodeIDs, n.ID)
			}
		}
		if len(out.DeletedNodeIDs) > 0 {
			if err := a.deps.Progress.FullDeleteByNodeIDs(dbc, assignmentIDs, out.DeletedNodeIDs); err != nil {
				return err
			}
			if err := a.deps.Nodes.FullDeleteByIDs(dbc, bp.ID, out.DeletedNodeIDs); err != nil {
				return err
			}
		}

		var inserts []*quest.BlueprintNode
		for _, n := range in.Nodes {
			n.BlueprintID = bp.ID
			n.UpdatedAt = now
			if prev, ok := storedByID[n.ID]; ok {
				n.CreatedAt = prev.CreatedAt
				if err := a.deps.Nodes.Update(dbc, n); err != nil {
					return err
				}
				out.UpdatedNodeIDs = append(out.UpdatedNodeIDs, n.ID)
				continue
			}
			n.CreatedAt = now
			inserts = append(inserts, n)
			out.InsertedNodeIDs = append(out.InsertedNodeIDs, n.ID)
		}
		if err := a.deps.Nodes.Create(dbc, inserts); err != nil {
			return err
		}

		links := make([]*quest.BlueprintLink, 0, len(in.Links))
		for _, l := range in.Links {
			links = append(links, &quest.BlueprintLink{
				ID:           strings.TrimSpace(l.ID),
				ParentNodeID: l.ParentNodeID,
				ChildNodeID:  l.ChildNodeID,
				Conditions:   l.Conditions,
			})
		}
		if err := a.deps.Links.ReplaceAll(dbc, bp.ID, links); err != nil {
			return err
		}

		var backfill []*quest.NodeProgress
		for _, as := range assignments {
			for _, n := range inserts {
				backfill = append(backfill, quest.NewNodeProgress(as.ID, n, now))
			}
		}
		if err := a.deps.Progress.Create(dbc, backfill); err != nil {
			return err
		}

		nodes, err := a.deps.Nodes.ListByBlueprint(dbc, bp.ID)
		if err != nil {
			return err
		}
		analyzer := graph.NewAnalyzerFromLinks(nodes, links)
		if err := resyncAssignments(dbc, a.deps.Assignments, a.deps.Progress, analyzer, assignments, now); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		stampEditor(updates, in.Editor, now)
		if err := a.deps.Blueprints.UpdateFields(dbc, bp.ID, updates); err != nil {
			return err
		}
		bp.LastEditorID = editorID(in.Editor)
		bp.LastEditorName = strings.TrimSpace(in.Editor.DisplayName)
		bp.UpdatedAt = now

		storedLinks, err := a.deps.Links.ListByBlueprint(dbc, bp.ID)
		if err != nil {
			return err
		}
		out.Blueprint = bp
		out.Nodes = nodes
		out.Links = storedLinks
		out.Assignments = assignments
		return nil
	})
	if err != nil {
		return domainagg.UpsertGraphResult{}, err
	}
	return out, nil
}

// resyncAssignments refreshes leaf targets, group rows and the cached summary
// of every given assignment against the analyzer's node set.
func resyncAssignments(
	dbc dbctx.Context,
	assignments repos.AssignmentRepo,
	progressRepo repos.NodeProgressRepo,
	analyzer *graph.Analyzer,
	rows []*quest.Assignment,
	now time.Time,
) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, as := range rows {
		ids = append(ids, as.ID)
	}
	all, err := progressRepo.ListByAssignmentIDs(dbc, ids)
	if err != nil {
		return err
	}
	byAssignment := map[uuid.UUID][]*quest.NodeProgress{}
	for _, r := range all {
		byAssignment[r.AssignmentID] = append(byAssignment[r.AssignmentID], r)
	}

	for _, as := range rows {
		list := byAssignment[as.ID]
		byNode := make(map[string]*quest.NodeProgress, len(list))
		for _, r := range list {
			byNode[r.NodeID] = r
		}
		changed := syncLeafTargets(analyzer, byNode, now)
		changed = append(changed, progress.DeriveGroups(analyzer, byNode, now)...)
		sort.Slice(changed, func(i, j int) bool { return changed[i].NodeID < changed[j].NodeID })
		if err := progressRepo.Save(dbc, changed); err != nil {
			return err
		}
		summary := progress.BuildSummary(list)
		if err := assignments.SaveSummary(dbc, as.ID, summary, now); err != nil {
			return err
		}
		as.Summary = datatypes.NewJSONType(summary)
		t := now
		as.LastProgressAt = &t
		as.UpdatedAt = now
	}
	return nil
}

// syncLeafTargets copies requirements.count onto leaf rows whose target drifted.
func syncLeafTargets(analyzer *graph.Analyzer, rows map[string]*quest.NodeProgress, now time.Time) []*quest.NodeProgress {
	var changed []*quest.NodeProgress
	for _, n := range analyzer.Nodes() {
		if n.IsGroup() {
			continue
		}
		row := rows[n.ID]
		if row == nil || row.TargetCount == n.Requirements.Count {
			continue
		}
		row.TargetCount = n.Requirements.Count
		row.UpdatedAt = now
		changed = append(changed, row)
	}
	return changed
}

func stampEditor(updates map[string]interface{}, editor domainagg.Editor, now time.Time) {
	updates["last_editor_id"] = editorID(editor)
	updates["last_editor_name"] = strings.TrimSpace(editor.DisplayName)
	updates["updated_at"] = now
}

func editorID(editor domainagg.Editor) *uuid.UUID {
	if editor.UserID == uuid.Nil {
		return nil
	}
	id := editor.UserID
	return &id
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("title is required")
	}
	if len([]rune(title)) > maxBlueprintTitleRunes {
		return "", fmt.Errorf("title exceeds %d characters", maxBlueprintTitleRunes)
	}
	return title, nil
}

func normalizeSummary(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	if len([]rune(s)) > maxBlueprintSummaryRunes {
		return nil, fmt.Errorf("summary exceeds %d characters", maxBlueprintSummaryRunes)
	}
	return &s, nil
}

func normalizeVisibility(raw string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch v {
	case "":
		return quest.VisibilityGuild, nil
	case quest.VisibilityGuild, quest.VisibilityPrivate:
		return v, nil
	}
	return "", fmt.Errorf("unknown visibility %q", raw)
}

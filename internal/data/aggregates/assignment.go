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

const assignmentTable = "quest_assignment"

type AssignmentAggregateDeps struct {
	Base BaseDeps

	Blueprints  repos.BlueprintRepo
	Nodes       repos.BlueprintNodeRepo
	Links       repos.BlueprintLinkRepo
	Assignments repos.AssignmentRepo
	Progress    repos.NodeProgressRepo
	Characters  repos.CharacterRepo
}

type assignmentAggregate struct {
	deps AssignmentAggregateDeps
}

func NewAssignmentAggregate(deps AssignmentAggregateDeps) domainagg.AssignmentAggregate {
	deps.Base = deps.Base.withDefaults()
	return &assignmentAggregate{deps: deps}
}

func (a *assignmentAggregate) Contract() domainagg.Contract {
	return domainagg.AssignmentAggregateContract
}

func (a *assignmentAggregate) configured() bool {
	return a.deps.Blueprints != nil && a.deps.Nodes != nil && a.deps.Links != nil &&
		a.deps.Assignments != nil && a.deps.Progress != nil && a.deps.Characters != nil
}

func (a *assignmentAggregate) Start(ctx context.Context, in domainagg.StartAssignmentInput) (domainagg.AssignmentState, error) {
	const op = domainagg.OpAssignmentStart
	var out domainagg.AssignmentState
	if in.BlueprintID == uuid.Nil || in.UserID == uuid.Nil || in.CharacterID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "blueprint_id, user_id and character_id are required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "assignment aggregate repos not configured", nil)
	}

	now := a.deps.Base.now(in.Now)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		// Serializes with UpsertGraph on the blueprint row.
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

		ch, err := a.deps.Characters.GetByID(dbc, in.CharacterID)
		if err != nil {
			return err
		}
		if ch == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("character not found: %s", in.CharacterID), nil)
		}
		if ch.UserID != in.UserID {
			return PermissionError("character does not belong to user")
		}
		if ch.GuildID != bp.GuildID {
			return PermissionError("character does not belong to the blueprint's guild")
		}

		open, err := a.deps.Assignments.FindNonTerminal(dbc, bp.ID, in.UserID, in.CharacterID, uuid.Nil)
		if err != nil {
			return err
		}
		if open != nil {
			return ConflictError(fmt.Sprintf("assignment %s is still %s for this character", open.ID, strings.ToLower(open.Status)))
		}

		nodes, err := a.deps.Nodes.ListByBlueprint(dbc, bp.ID)
		if err != nil {
			return err
		}
		links, err := a.deps.Links.ListByBlueprint(dbc, bp.ID)
		if err != nil {
			return err
		}

		as := &quest.Assignment{
			ID:          uuid.New(),
			BlueprintID: bp.ID,
			GuildID:     bp.GuildID,
			UserID:      in.UserID,
			CharacterID: in.CharacterID,
			Status:      quest.AssignmentActive,
			StartedAt:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		rows := make([]*quest.NodeProgress, 0, len(nodes))
		byNode := make(map[string]*quest.NodeProgress, len(nodes))
		for _, n := range nodes {
			r := quest.NewNodeProgress(as.ID, n, now)
			rows = append(rows, r)
			byNode[n.ID] = r
		}
		progress.DeriveGroups(graph.NewAnalyzerFromLinks(nodes, links), byNode, now)

		t := now
		as.Summary = datatypes.NewJSONType(progress.BuildSummary(rows))
		as.LastProgressAt = &t
		if err := a.deps.Assignments.Create(dbc, as); err != nil {
			return err
		}
		if err := a.deps.Progress.Create(dbc, rows); err != nil {
			return err
		}

		sortProgress(rows)
		out = domainagg.AssignmentState{Assignment: as, Progress: rows, Changed: true}
		return nil
	})
	if err != nil {
		return domainagg.AssignmentState{}, err
	}
	return out, nil
}

func (a *assignmentAggregate) Transition(ctx context.Context, in domainagg.TransitionAssignmentInput) (domainagg.AssignmentState, error) {
	const op = domainagg.OpAssignmentTransition
	var out domainagg.AssignmentState
	if in.AssignmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assignment_id", nil)
	}
	next, ok := quest.NormalizeAssignmentStatus(in.Next)
	if !ok {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown assignment status %q", in.Next), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "assignment aggregate repos not configured", nil)
	}

	now := a.deps.Base.now(in.Now)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		as, err := a.lockOwned(dbc, op, in.AssignmentID, in.GuildID, in.ActorID, in.ManagerOverride)
		if err != nil {
			return err
		}
		if as.Status != next {
			if err := a.moveTo(dbc, as, next, now); err != nil {
				return err
			}
			out.Changed = true
		}
		rows, err := a.deps.Progress.ListByAssignment(dbc, as.ID)
		if err != nil {
			return err
		}
		out.Assignment = as
		out.Progress = rows
		return nil
	})
	if err != nil {
		return domainagg.AssignmentState{}, err
	}
	return out, nil
}

func (a *assignmentAggregate) ApplyProgress(ctx context.Context, in domainagg.ApplyProgressInput) (domainagg.ApplyProgressResult, error) {
	const op = domainagg.OpAssignmentApplyProgress
	var out domainagg.ApplyProgressResult
	if in.AssignmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assignment_id", nil)
	}
	updates := make([]progress.Update, 0, len(in.Updates))
	for i, u := range in.Updates {
		nu, err := u.Normalize()
		if err != nil {
			return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("update %d: %v", i, err), err)
		}
		updates = append(updates, nu)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "assignment aggregate repos not configured", nil)
	}

	now := a.deps.Base.now(in.Now)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.ApplyProgressResult{}

		as, err := a.lockOwned(dbc, op, in.AssignmentID, in.GuildID, in.ActorID, in.ManagerOverride)
		if err != nil {
			return err
		}
		rows, err := a.deps.Progress.ListByAssignment(dbc, as.ID)
		if err != nil {
			return err
		}
		byNode := make(map[string]*quest.NodeProgress, len(rows))
		for _, r := range rows {
			byNode[r.NodeID] = r
		}

		var unknown []string
		for _, u := range updates {
			if byNode[u.NodeID] == nil {
				unknown = append(unknown, u.NodeID)
			}
		}
		if len(unknown) > 0 {
			return domainagg.NewError(
				domainagg.CodeUnknownReference,
				op,
				fmt.Sprintf("unknown node ids: %s", strings.Join(unknown, ", ")),
				graph.ErrUnknownNode,
			)
		}

		nodes, err := a.deps.Nodes.ListByBlueprint(dbc, as.BlueprintID)
		if err != nil {
			return err
		}
		links, err := a.deps.Links.ListByBlueprint(dbc, as.BlueprintID)
		if err != nil {
			return err
		}
		nodeByID := make(map[string]*quest.BlueprintNode, len(nodes))
		for _, n := range nodes {
			nodeByID[n.ID] = n
		}

		changed := map[string]*quest.NodeProgress{}
		for _, u := range updates {
			row := byNode[u.NodeID]
			n := nodeByID[u.NodeID]
			isGroup := n != nil && n.IsGroup()
			if progress.ApplyUpdate(row, isGroup, u, now) {
				if _, seen := changed[row.NodeID]; !seen {
					out.AppliedNodeIDs = append(out.AppliedNodeIDs, row.NodeID)
				}
				changed[row.NodeID] = row
			}
		}
		for _, g := range progress.DeriveGroups(graph.NewAnalyzerFromLinks(nodes, links), byNode, now) {
			changed[g.NodeID] = g
		}
		dirty := make([]*quest.NodeProgress, 0, len(changed))
		for _, r := range changed {
			dirty = append(dirty, r)
		}
		sortProgress(dirty)
		if err := a.deps.Progress.Save(dbc, dirty); err != nil {
			return err
		}

		summary := progress.BuildSummary(rows)
		if err := a.deps.Assignments.SaveSummary(dbc, as.ID, summary, now); err != nil {
			return err
		}
		t := now
		as.Summary = datatypes.NewJSONType(summary)
		as.LastProgressAt = &t
		as.UpdatedAt = now

		if progress.ShouldAutoComplete(as.Status, nodes, byNode) {
			if err := a.moveTo(dbc, as, quest.AssignmentCompleted, now); err != nil {
				return err
			}
			out.AutoCompleted = true
		}

		out.Assignment = as
		out.Progress = rows
		out.Changed = len(dirty) > 0 || out.AutoCompleted
		return nil
	})
	if err != nil {
		return domainagg.ApplyProgressResult{}, err
	}
	return out, nil
}

// lockOwned locks the assignment and checks guild scope and actor rights.
func (a *assignmentAggregate) lockOwned(dbc dbctx.Context, op string, id, guildID, actorID uuid.UUID, override bool) (*quest.Assignment, error) {
	as, err := a.deps.Assignments.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if as == nil || as.GuildID != guildID {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("assignment not found: %s", id), nil)
	}
	if as.UserID != actorID && !override {
		return nil, PermissionError("only the assignment owner or a guild manager may change this assignment")
	}
	return as, nil
}

// moveTo writes a status change guarded by the status the row was read with.
func (a *assignmentAggregate) moveTo(dbc dbctx.Context, as *quest.Assignment, next string, now time.Time) error {
	if quest.IsTerminalAssignmentStatus(as.Status) && !quest.IsTerminalAssignmentStatus(next) {
		open, err := a.deps.Assignments.FindNonTerminal(dbc, as.BlueprintID, as.UserID, as.CharacterID, as.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return ConflictError(fmt.Sprintf("assignment %s already holds this blueprint for the character", open.ID))
		}
	}

	var completedAt, cancelledAt *time.Time
	t := now
	switch next {
	case quest.AssignmentCompleted:
		completedAt = &t
	case quest.AssignmentCancelled:
		cancelledAt = &t
	}
	ok, err := a.deps.Base.CASGuard.TransitionStatus(dbc, assignmentTable, as.ID, as.Status, map[string]any{
		"status":       next,
		"completed_at": completedAt,
		"cancelled_at": cancelledAt,
		"updated_at":   now,
	})
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(ok, "assignment status changed concurrently"); err != nil {
		return err
	}
	as.Status = next
	as.CompletedAt = completedAt
	as.CancelledAt = cancelledAt
	as.UpdatedAt = now
	return nil
}

func sortProgress(rows []*quest.NodeProgress) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].NodeID < rows[j].NodeID })
}

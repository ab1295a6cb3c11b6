package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/modules/quest/progress"
)

var AssignmentAggregateContract = Contract{
	Name:       "Quest.AssignmentAggregate",
	Operations: []string{OpAssignmentStart, OpAssignmentTransition, OpAssignmentApplyProgress},
	Tables:     []string{"quest_assignment", "quest_node_progress"},
	Notes:      "Owns assignment lifecycle and per-node progress, group derivation, summary cache and auto-completion.",
}

// AssignmentAggregate owns assignment lifecycle and progress invariants.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodePermissionDenied, CodeConflict,
// CodeUnknownReference, CodePreconditionFailed, CodeRetryable, CodeInternal.
type AssignmentAggregate interface {
	Aggregate

	// Start creates an ACTIVE assignment and seeds one progress row per node.
	Start(ctx context.Context, in StartAssignmentInput) (AssignmentState, error)

	// Transition moves an assignment to another lifecycle status.
	Transition(ctx context.Context, in TransitionAssignmentInput) (AssignmentState, error)

	// ApplyProgress applies a batch of node updates as one unit.
	ApplyProgress(ctx context.Context, in ApplyProgressInput) (ApplyProgressResult, error)
}

// AssignmentState is an assignment hydrated with its progress rows.
type AssignmentState struct {
	Assignment *quest.Assignment
	Progress   []*quest.NodeProgress
	// Changed is false when the call was a no-op.
	Changed bool
}

type StartAssignmentInput struct {
	BlueprintID uuid.UUID
	GuildID     uuid.UUID
	UserID      uuid.UUID
	CharacterID uuid.UUID
	Now         time.Time
}

type TransitionAssignmentInput struct {
	AssignmentID uuid.UUID
	GuildID      uuid.UUID
	ActorID      uuid.UUID
	Next         string
	// ManagerOverride lets a non-owner act; callers resolve it against the role collaborator.
	ManagerOverride bool
	Now             time.Time
}

type ApplyProgressInput struct {
	AssignmentID    uuid.UUID
	GuildID         uuid.UUID
	ActorID         uuid.UUID
	ManagerOverride bool
	Updates         []progress.Update
	Now             time.Time
}

type ApplyProgressResult struct {
	AssignmentState
	AppliedNodeIDs []string
	AutoCompleted  bool
}

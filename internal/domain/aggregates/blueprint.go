package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

var BlueprintAggregateContract = Contract{
	Name:       "Quest.BlueprintAggregate",
	Operations: []string{OpBlueprintCreate, OpBlueprintUpdateMetadata, OpBlueprintUpsertGraph},
	Tables:     []string{"quest_blueprint", "quest_blueprint_node", "quest_blueprint_link", "quest_assignment", "quest_node_progress"},
	Notes:      "Owns blueprint metadata and the node/link graph, including progress backfill and resync of every assignment.",
}

// BlueprintAggregate owns blueprint graph invariants.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodePreconditionFailed, CodeConflict, CodeRetryable, CodeInternal.
type BlueprintAggregate interface {
	Aggregate

	// Create persists a new blueprint with an empty graph.
	Create(ctx context.Context, in CreateBlueprintInput) (*quest.Blueprint, error)

	// UpdateMetadata applies a metadata patch and stamps the editor.
	UpdateMetadata(ctx context.Context, in UpdateBlueprintMetadataInput) (*quest.Blueprint, error)

	// UpsertGraph replaces the blueprint graph, backfills progress rows for new
	// nodes and resyncs group status and summaries of every assignment.
	UpsertGraph(ctx context.Context, in UpsertGraphInput) (UpsertGraphResult, error)
}

// Editor identifies who last changed a blueprint.
type Editor struct {
	UserID      uuid.UUID
	DisplayName string
}

type CreateBlueprintInput struct {
	GuildID    uuid.UUID
	Creator    Editor
	Title      string
	Summary    *string
	Visibility string
	Now        time.Time
}

// BlueprintMetadataPatch fields are optional; nil means unchanged.
type BlueprintMetadataPatch struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Summary    *string `json:"summary,omitempty" validate:"omitempty,max=4000"`
	Visibility *string `json:"visibility,omitempty" validate:"omitempty,oneof=GUILD PRIVATE"`
	Archived   *bool   `json:"archived,omitempty"`
}

type UpdateBlueprintMetadataInput struct {
	BlueprintID uuid.UUID
	GuildID     uuid.UUID
	Editor      Editor
	Patch       BlueprintMetadataPatch
	Now         time.Time
}

type UpsertGraphInput struct {
	BlueprintID uuid.UUID
	GuildID     uuid.UUID
	Editor      Editor
	Nodes       []*quest.BlueprintNode
	Links       []*quest.BlueprintLink
	Now         time.Time
}

type UpsertGraphResult struct {
	Blueprint       *quest.Blueprint
	Nodes           []*quest.BlueprintNode
	Links           []*quest.BlueprintLink
	InsertedNodeIDs []string
	UpdatedNodeIDs  []string
	DeletedNodeIDs  []string
	Assignments     []*quest.Assignment
}

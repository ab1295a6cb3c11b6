package graph

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

func TestBuildBlueprintGraph(t *testing.T) {
	bp := &types.Blueprint{ID: uuid.New(), GuildID: uuid.New(), Title: "Ashen Crypt", Visibility: quest.VisibilityGuild}
	nodes := []*types.BlueprintNode{
		{BlueprintID: bp.ID, ID: "C", Title: "Boss", Metadata: quest.NewNodeMeta(false, true), Requirements: quest.NewRequirements(1)},
		{BlueprintID: bp.ID, ID: "A", Title: "Gate", Requirements: quest.NewRequirements(1)},
		{BlueprintID: bp.ID, ID: "G", Title: "Wing", Metadata: quest.NewNodeMeta(true, false)},
	}
	links := []*types.BlueprintLink{
		{ID: "l1", ParentNodeID: "G", ChildNodeID: "C"},
		{ID: "l2", ParentNodeID: "A", ChildNodeID: "C", Conditions: quest.NewLinkConditions(true)},
		{ID: "l3", ParentNodeID: "A", ChildNodeID: "Z"},
	}

	g := BuildBlueprintGraph(bp, nodes, links, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "A", g.Nodes[0]["id"])
	assert.Equal(t, bp.ID.String()+":C", g.Nodes[1]["key"])
	assert.Equal(t, true, g.Nodes[1]["is_final"])
	assert.Equal(t, true, g.Nodes[2]["is_group"])
	assert.Equal(t, "Ashen Crypt", g.Blueprint["title"])
	assert.Equal(t, "2026-01-02T03:04:05Z", g.Blueprint["synced_at"])

	require.Len(t, g.Edges[relDependsOn], 1)
	assert.Equal(t, "l1", g.Edges[relDependsOn][0]["id"])
	require.Len(t, g.Edges[relSequencedBefore], 1)
	assert.Equal(t, bp.ID.String()+":A", g.Edges[relSequencedBefore][0]["parent"])
}

func TestSyncBlueprintGraphWithoutClientIsNoop(t *testing.T) {
	err := SyncBlueprintGraph(context.Background(), nil, &types.Blueprint{ID: uuid.New()}, nil, nil)
	assert.NoError(t, err)
}

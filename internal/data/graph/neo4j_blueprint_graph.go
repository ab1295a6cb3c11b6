package graph

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/platform/neo4jdb"
)

const (
	relDependsOn       = "DEPENDS_ON"
	relSequencedBefore = "SEQUENCED_BEFORE"
)

// BlueprintGraph is the mirror payload of one blueprint's node/link set.
type BlueprintGraph struct {
	Blueprint map[string]any
	Nodes     []map[string]any
	Edges     map[string][]map[string]any
}

// BuildBlueprintGraph converts stored rows into mirror rows. Links whose
// endpoints are not in nodes are dropped.
func BuildBlueprintGraph(bp *types.Blueprint, nodes []*types.BlueprintNode, links []*types.BlueprintLink, now time.Time) BlueprintGraph {
	syncedAt := now.UTC().Format(time.RFC3339Nano)
	out := BlueprintGraph{
		Blueprint: map[string]any{
			"id":         bp.ID.String(),
			"guild_id":   bp.GuildID.String(),
			"title":      bp.Title,
			"visibility": bp.Visibility,
			"archived":   bp.Archived,
			"updated_at": bp.UpdatedAt.UTC().Format(time.RFC3339Nano),
			"synced_at":  syncedAt,
		},
		Edges: map[string][]map[string]any{},
	}

	known := map[string]bool{}
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			continue
		}
		known[n.ID] = true
		out.Nodes = append(out.Nodes, map[string]any{
			"key":          nodeKey(bp.ID, n.ID),
			"blueprint_id": bp.ID.String(),
			"id":           n.ID,
			"title":        n.Title,
			"node_type":    n.NodeType,
			"sort_order":   n.SortOrder,
			"is_group":     n.IsGroup(),
			"is_final":     n.IsFinal(),
			"count":        n.Requirements.Count,
			"synced_at":    syncedAt,
		})
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i]["id"].(string) < out.Nodes[j]["id"].(string) })

	for _, l := range links {
		if l == nil || !known[l.ParentNodeID] || !known[l.ChildNodeID] {
			continue
		}
		rel := relDependsOn
		if l.Kind() == quest.EdgeSequencing {
			rel = relSequencedBefore
		}
		out.Edges[rel] = append(out.Edges[rel], map[string]any{
			"id":        l.ID,
			"parent":    nodeKey(bp.ID, l.ParentNodeID),
			"child":     nodeKey(bp.ID, l.ChildNodeID),
			"synced_at": syncedAt,
		})
	}
	return out
}

func nodeKey(blueprintID uuid.UUID, nodeID string) string {
	return blueprintID.String() + ":" + nodeID
}

var mirrorSchema = []string{
	`CREATE CONSTRAINT quest_blueprint_id_unique IF NOT EXISTS FOR (b:QuestBlueprint) REQUIRE b.id IS UNIQUE`,
	`CREATE CONSTRAINT quest_node_key_unique IF NOT EXISTS FOR (n:QuestNode) REQUIRE n.key IS UNIQUE`,
}

// SyncBlueprintGraph replaces the mirrored graph of one blueprint.
func SyncBlueprintGraph(ctx context.Context, client *neo4jdb.Client, bp *types.Blueprint, nodes []*types.BlueprintNode, links []*types.BlueprintLink) error {
	if client == nil || bp == nil || bp.ID == uuid.Nil {
		return nil
	}
	g := BuildBlueprintGraph(bp, nodes, links, time.Now())
	bpID := bp.ID.String()

	return client.Write(ctx, mirrorSchema, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		if err := neo4jdb.Exec(ctx, tx, `
MERGE (b:QuestBlueprint {id: $bp.id})
SET b += $bp
`, map[string]any{"bp": g.Blueprint}); err != nil {
			return err
		}

		// Nodes gone from the blueprint take their edges with them.
		if err := neo4jdb.Exec(ctx, tx, `
MATCH (n:QuestNode {blueprint_id: $blueprint_id})
WHERE NOT n.key IN $keys
DETACH DELETE n
`, map[string]any{"blueprint_id": bpID, "keys": nodeKeys(g.Nodes)}); err != nil {
			return err
		}

		if len(g.Nodes) > 0 {
			if err := neo4jdb.Exec(ctx, tx, `
UNWIND $nodes AS n
MERGE (q:QuestNode {key: n.key})
SET q += n
WITH q
MATCH (b:QuestBlueprint {id: q.blueprint_id})
MERGE (b)-[:HAS_NODE]->(q)
`, map[string]any{"nodes": g.Nodes}); err != nil {
				return err
			}
		}

		if err := neo4jdb.Exec(ctx, tx, `
MATCH (:QuestNode {blueprint_id: $blueprint_id})-[r:DEPENDS_ON|SEQUENCED_BEFORE]->(:QuestNode)
DELETE r
`, map[string]any{"blueprint_id": bpID}); err != nil {
			return err
		}

		for _, rel := range []string{relDependsOn, relSequencedBefore} {
			rows := g.Edges[rel]
			if len(rows) == 0 {
				continue
			}
			// Relationship types cannot be parameterized.
			if err := neo4jdb.Exec(ctx, tx, `
UNWIND $edges AS e
MATCH (p:QuestNode {key: e.parent})
MATCH (c:QuestNode {key: e.child})
MERGE (p)-[r:`+rel+` {id: e.id}]->(c)
SET r.synced_at = e.synced_at
`, map[string]any{"edges": rows}); err != nil {
				return err
			}
		}
		return nil
	})
}

func nodeKeys(nodes []map[string]any) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n["key"].(string))
	}
	return out
}

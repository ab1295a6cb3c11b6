package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/services"
)

// ParseGraphYAML reads a blueprint graph document. Keys follow the JSON API
// (nodes[].id, links[].parent_node_id, ...), so the YAML tree is re-encoded as
// JSON to reuse the node and link decoders.
func ParseGraphYAML(r io.Reader) (services.GraphInput, error) {
	var doc struct {
		Nodes []map[string]any `yaml:"nodes"`
		Links []map[string]any `yaml:"links"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return services.GraphInput{}, fmt.Errorf("decode graph yaml: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return services.GraphInput{}, fmt.Errorf("re-encode graph: %w", err)
	}
	var in services.GraphInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return services.GraphInput{}, fmt.Errorf("decode graph: %w", err)
	}
	return in, nil
}

// ImportBlueprintGraph replaces the graph of an existing blueprint with the
// document read from r, acting as actorID.
func (a *App) ImportBlueprintGraph(ctx context.Context, guildID, blueprintID, actorID uuid.UUID, r io.Reader) (*services.GraphResult, error) {
	in, err := ParseGraphYAML(r)
	if err != nil {
		return nil, err
	}
	actor := services.Actor{UserID: actorID}
	if m, err := a.Repos.Member.Get(dbctx.Context{Ctx: ctx}, guildID, actorID); err == nil && m != nil {
		actor.DisplayName = m.DisplayName
	}
	return a.Services.Quest.UpsertBlueprintGraph(ctx, guildID, blueprintID, actor, in)
}

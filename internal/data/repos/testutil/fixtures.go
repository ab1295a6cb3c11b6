package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/guild"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, guildID, userID uuid.UUID, role string) *types.GuildMember {
	tb.Helper()
	if role == "" {
		role = guild.RoleMember
	}
	m := &types.GuildMember{
		GuildID:     guildID,
		UserID:      userID,
		Role:        role,
		DisplayName: "member-" + userID.String()[:8],
		JoinedAt:    time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
	return m
}

func SeedCharacter(tb testing.TB, ctx context.Context, tx *gorm.DB, guildID, userID uuid.UUID, name string) *types.Character {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Character{
		ID:        uuid.New(),
		UserID:    userID,
		GuildID:   guildID,
		Name:      name,
		Class:     "ranger",
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed character: %v", err)
	}
	return c
}

func SeedBlueprint(tb testing.TB, ctx context.Context, tx *gorm.DB, guildID, creatorID uuid.UUID, title string) *types.Blueprint {
	tb.Helper()
	now := time.Now().UTC()
	bp := &types.Blueprint{
		ID:         uuid.New(),
		GuildID:    guildID,
		CreatorID:  creatorID,
		Title:      title,
		Visibility: quest.VisibilityGuild,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(bp).Error; err != nil {
		tb.Fatalf("seed blueprint: %v", err)
	}
	return bp
}

// Node builds an unsaved node with the given flags and requirement count.
func Node(id string, sortOrder int, isGroup, isFinal bool, count int) types.BlueprintNode {
	return types.BlueprintNode{
		ID:           id,
		Title:        "step " + id,
		SortOrder:    sortOrder,
		Requirements: quest.NewRequirements(count),
		Metadata:     quest.NewNodeMeta(isGroup, isFinal),
	}
}

func Link(parent, child string) types.BlueprintLink {
	return types.BlueprintLink{ParentNodeID: parent, ChildNodeID: child}
}

func SequenceLink(parent, child string) types.BlueprintLink {
	return types.BlueprintLink{
		ParentNodeID: parent,
		ChildNodeID:  child,
		Conditions:   quest.NewLinkConditions(true),
	}
}

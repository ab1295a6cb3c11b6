package domain

import (
	"github.com/yungbote/guildops-backend/internal/domain/guild"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

type Blueprint = quest.Blueprint
type BlueprintNode = quest.BlueprintNode
type BlueprintLink = quest.BlueprintLink
type Assignment = quest.Assignment
type NodeProgress = quest.NodeProgress
type ProgressSummary = quest.ProgressSummary

type Requirements = quest.Requirements
type NodeMeta = quest.NodeMeta
type LinkConditions = quest.LinkConditions
type EdgeKind = quest.EdgeKind

type GuildMember = guild.Member
type Character = guild.Character

// Models lists every persisted table in migration order.
func Models() []any {
	return []any{
		&GuildMember{},
		&Character{},
		&Blueprint{},
		&BlueprintNode{},
		&BlueprintLink{},
		&Assignment{},
		&NodeProgress{},
	}
}

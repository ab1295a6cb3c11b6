package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/guildops-backend/internal/data/repos/guild"
	"github.com/yungbote/guildops-backend/internal/data/repos/quest"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type BlueprintRepo = quest.BlueprintRepo
type BlueprintNodeRepo = quest.BlueprintNodeRepo
type BlueprintLinkRepo = quest.BlueprintLinkRepo
type AssignmentRepo = quest.AssignmentRepo
type NodeProgressRepo = quest.NodeProgressRepo

type GuildMemberRepo = guild.MemberRepo
type CharacterRepo = guild.CharacterRepo

// Set bundles every repository over one *gorm.DB.
type Set struct {
	Blueprint    BlueprintRepo
	Node         BlueprintNodeRepo
	Link         BlueprintLinkRepo
	Assignment   AssignmentRepo
	NodeProgress NodeProgressRepo
	Member       GuildMemberRepo
	Character    CharacterRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Blueprint:    quest.NewBlueprintRepo(db, log),
		Node:         quest.NewBlueprintNodeRepo(db, log),
		Link:         quest.NewBlueprintLinkRepo(db, log),
		Assignment:   quest.NewAssignmentRepo(db, log),
		NodeProgress: quest.NewNodeProgressRepo(db, log),
		Member:       guild.NewMemberRepo(db, log),
		Character:    guild.NewCharacterRepo(db, log),
	}
}

package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/guildops-backend/internal/data/repos"
	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

// RoleResolver answers guild membership and permission questions.
type RoleResolver interface {
	Member(ctx context.Context, guildID, userID uuid.UUID) (*types.GuildMember, error)
	IsMember(ctx context.Context, guildID, userID uuid.UUID) (bool, error)
	CanManage(ctx context.Context, guildID, userID uuid.UUID) (bool, error)
	CanEdit(ctx context.Context, bp *quest.Blueprint, userID uuid.UUID) (bool, error)
}

type memberRoleResolver struct {
	log     *logger.Logger
	members repos.GuildMemberRepo
}

func NewRoleResolver(log *logger.Logger, members repos.GuildMemberRepo) RoleResolver {
	return &memberRoleResolver{log: log.With("service", "RoleResolver"), members: members}
}

func (r *memberRoleResolver) Member(ctx context.Context, guildID, userID uuid.UUID) (*types.GuildMember, error) {
	if guildID == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	return r.members.Get(dbctx.Context{Ctx: ctx}, guildID, userID)
}

func (r *memberRoleResolver) IsMember(ctx context.Context, guildID, userID uuid.UUID) (bool, error) {
	m, err := r.Member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

func (r *memberRoleResolver) CanManage(ctx context.Context, guildID, userID uuid.UUID) (bool, error) {
	m, err := r.Member(ctx, guildID, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.CanManage(), nil
}

func (r *memberRoleResolver) CanEdit(ctx context.Context, bp *quest.Blueprint, userID uuid.UUID) (bool, error) {
	if bp == nil {
		return false, nil
	}
	m, err := r.Member(ctx, bp.GuildID, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.CanManage() || bp.CreatorID == userID, nil
}

// CharacterDirectory resolves characters for assignment checks.
type CharacterDirectory interface {
	GetCharacter(ctx context.Context, id uuid.UUID) (*types.Character, error)
	ListForUser(ctx context.Context, guildID, userID uuid.UUID) ([]*types.Character, error)
}

type characterDirectory struct {
	characters repos.CharacterRepo
}

func NewCharacterDirectory(characters repos.CharacterRepo) CharacterDirectory {
	return &characterDirectory{characters: characters}
}

func (d *characterDirectory) GetCharacter(ctx context.Context, id uuid.UUID) (*types.Character, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return d.characters.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (d *characterDirectory) ListForUser(ctx context.Context, guildID, userID uuid.UUID) ([]*types.Character, error) {
	rows, err := d.characters.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Character, 0, len(rows))
	for _, c := range rows {
		if c.GuildID == guildID {
			out = append(out, c)
		}
	}
	return out, nil
}

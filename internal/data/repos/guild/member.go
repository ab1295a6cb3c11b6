package guild

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type MemberRepo interface {
	Get(dbc dbctx.Context, guildID, userID uuid.UUID) (*types.GuildMember, error)
	Upsert(dbc dbctx.Context, row *types.GuildMember) error
	ListByGuild(dbc dbctx.Context, guildID uuid.UUID) ([]*types.GuildMember, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) Get(dbc dbctx.Context, guildID, userID uuid.UUID) (*types.GuildMember, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if guildID == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var row types.GuildMember
	if err := t.WithContext(dbc.Ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.UserID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *memberRepo) Upsert(dbc dbctx.Context, row *types.GuildMember) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.JoinedAt.IsZero() {
		row.JoinedAt = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "display_name"}),
		}).
		Create(row).Error
}

func (r *memberRepo) ListByGuild(dbc dbctx.Context, guildID uuid.UUID) ([]*types.GuildMember, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.GuildMember
	if guildID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("guild_id = ?", guildID).
		Order("joined_at ASC, user_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package quest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type BlueprintRepo interface {
	Create(dbc dbctx.Context, row *types.Blueprint) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Blueprint, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Blueprint, error)
	ListByGuild(dbc dbctx.Context, guildID uuid.UUID, includeArchived bool) ([]*types.Blueprint, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type blueprintRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlueprintRepo(db *gorm.DB, baseLog *logger.Logger) BlueprintRepo {
	return &blueprintRepo{db: db, log: baseLog.With("repo", "BlueprintRepo")}
}

func (r *blueprintRepo) Create(dbc dbctx.Context, row *types.Blueprint) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *blueprintRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Blueprint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Blueprint
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// LockByID loads a blueprint with a row-level write lock; requires a transaction.
func (r *blueprintRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Blueprint, error) {
	if dbc.Tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Blueprint
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *blueprintRepo) ListByGuild(dbc dbctx.Context, guildID uuid.UUID, includeArchived bool) ([]*types.Blueprint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Blueprint
	if guildID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).Where("guild_id = ?", guildID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	if err := q.Order("updated_at DESC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blueprintRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Blueprint{}).
		Where("id = ?", id).
		Updates(updates).Error
}

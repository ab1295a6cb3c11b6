package guild

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type CharacterRepo interface {
	Create(dbc dbctx.Context, row *types.Character) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Character, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Character, error)
}

type characterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharacterRepo(db *gorm.DB, baseLog *logger.Logger) CharacterRepo {
	return &characterRepo{db: db, log: baseLog.With("repo", "CharacterRepo")}
}

func (r *characterRepo) Create(dbc dbctx.Context, row *types.Character) error {
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

func (r *characterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Character, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Character
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *characterRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Character, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Character
	if userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package quest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type BlueprintNodeRepo interface {
	Create(dbc dbctx.Context, rows []*types.BlueprintNode) error
	ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintNode, error)
	Update(dbc dbctx.Context, row *types.BlueprintNode) error
	FullDeleteByIDs(dbc dbctx.Context, blueprintID uuid.UUID, ids []string) error
	CountByBlueprintIDs(dbc dbctx.Context, blueprintIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type blueprintNodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlueprintNodeRepo(db *gorm.DB, baseLog *logger.Logger) BlueprintNodeRepo {
	return &blueprintNodeRepo{db: db, log: baseLog.With("repo", "BlueprintNodeRepo")}
}

func (r *blueprintNodeRepo) Create(dbc dbctx.Context, rows []*types.BlueprintNode) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = row.CreatedAt
		}
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *blueprintNodeRepo) ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintNode, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BlueprintNode
	if blueprintID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("blueprint_id = ?", blueprintID).
		Order("sort_order ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites every editable column of an existing node.
func (r *blueprintNodeRepo) Update(dbc dbctx.Context, row *types.BlueprintNode) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.BlueprintNode{}).
		Where("blueprint_id = ? AND id = ?", row.BlueprintID, row.ID).
		Select("title", "description", "node_type", "pos_x", "pos_y", "sort_order", "requirements", "metadata", "updated_at").
		Updates(row).Error
}

func (r *blueprintNodeRepo) FullDeleteByIDs(dbc dbctx.Context, blueprintID uuid.UUID, ids []string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if blueprintID == uuid.Nil || len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("blueprint_id = ? AND id IN ?", blueprintID, ids).
		Delete(&types.BlueprintNode{}).Error
}

func (r *blueprintNodeRepo) CountByBlueprintIDs(dbc dbctx.Context, blueprintIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := map[uuid.UUID]int{}
	if len(blueprintIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		BlueprintID uuid.UUID
		N           int
	}
	if err := t.WithContext(dbc.Ctx).
		Model(&types.BlueprintNode{}).
		Select("blueprint_id, COUNT(*) AS n").
		Where("blueprint_id IN ?", blueprintIDs).
		Group("blueprint_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BlueprintID] = row.N
	}
	return out, nil
}

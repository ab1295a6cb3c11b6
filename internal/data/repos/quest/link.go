package quest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type BlueprintLinkRepo interface {
	ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintLink, error)
	ListByBlueprintIDs(dbc dbctx.Context, blueprintIDs []uuid.UUID) ([]*types.BlueprintLink, error)
	ReplaceAll(dbc dbctx.Context, blueprintID uuid.UUID, rows []*types.BlueprintLink) error
}

type blueprintLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlueprintLinkRepo(db *gorm.DB, baseLog *logger.Logger) BlueprintLinkRepo {
	return &blueprintLinkRepo{db: db, log: baseLog.With("repo", "BlueprintLinkRepo")}
}

func (r *blueprintLinkRepo) ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintLink, error) {
	if blueprintID == uuid.Nil {
		return []*types.BlueprintLink{}, nil
	}
	return r.ListByBlueprintIDs(dbc, []uuid.UUID{blueprintID})
}

func (r *blueprintLinkRepo) ListByBlueprintIDs(dbc dbctx.Context, blueprintIDs []uuid.UUID) ([]*types.BlueprintLink, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BlueprintLink
	if len(blueprintIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("blueprint_id IN ?", blueprintIDs).
		Order("blueprint_id ASC, created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceAll hard-deletes every link of the blueprint and inserts rows.
// Links without an id get a generated one.
func (r *blueprintLinkRepo) ReplaceAll(dbc dbctx.Context, blueprintID uuid.UUID, rows []*types.BlueprintLink) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if blueprintID == uuid.Nil {
		return nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("blueprint_id = ?", blueprintID).
		Delete(&types.BlueprintLink{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i, row := range rows {
		row.BlueprintID = blueprintID
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			// keeps submission order stable for ListByBlueprint
			row.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

package quest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type AssignmentRepo interface {
	Create(dbc dbctx.Context, row *types.Assignment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error)
	ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.Assignment, error)
	ListByBlueprintAndUser(dbc dbctx.Context, blueprintID, userID uuid.UUID) ([]*types.Assignment, error)
	LatestByUserForBlueprints(dbc dbctx.Context, userID uuid.UUID, blueprintIDs []uuid.UUID) (map[uuid.UUID]*types.Assignment, error)
	FindNonTerminal(dbc dbctx.Context, blueprintID, userID, characterID uuid.UUID, excludeID uuid.UUID) (*types.Assignment, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SaveSummary(dbc dbctx.Context, id uuid.UUID, summary types.ProgressSummary, at time.Time) error
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) Create(dbc dbctx.Context, row *types.Assignment) error {
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

func (r *assignmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Assignment
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// LockByID loads an assignment with a row-level write lock; requires a transaction.
func (r *assignmentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error) {
	if dbc.Tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Assignment
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

func (r *assignmentRepo) ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.Assignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Assignment
	if blueprintID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("blueprint_id = ?", blueprintID).
		Order("started_at DESC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assignmentRepo) ListByBlueprintAndUser(dbc dbctx.Context, blueprintID, userID uuid.UUID) ([]*types.Assignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Assignment
	if blueprintID == uuid.Nil || userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("blueprint_id = ? AND user_id = ?", blueprintID, userID).
		Order("started_at DESC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LatestByUserForBlueprints returns the most recently started assignment of
// userID for each blueprint that has one.
func (r *assignmentRepo) LatestByUserForBlueprints(dbc dbctx.Context, userID uuid.UUID, blueprintIDs []uuid.UUID) (map[uuid.UUID]*types.Assignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := map[uuid.UUID]*types.Assignment{}
	if userID == uuid.Nil || len(blueprintIDs) == 0 {
		return out, nil
	}
	var rows []*types.Assignment
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND blueprint_id IN ?", userID, blueprintIDs).
		Order("started_at DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, seen := out[row.BlueprintID]; !seen {
			out[row.BlueprintID] = row
		}
	}
	return out, nil
}

func (r *assignmentRepo) FindNonTerminal(dbc dbctx.Context, blueprintID, userID, characterID uuid.UUID, excludeID uuid.UUID) (*types.Assignment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).
		Where("blueprint_id = ? AND user_id = ? AND character_id = ?", blueprintID, userID, characterID).
		Where("status IN ?", quest.NonTerminalAssignmentStatuses)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var row types.Assignment
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *assignmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Assignment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *assignmentRepo) SaveSummary(dbc dbctx.Context, id uuid.UUID, summary types.ProgressSummary, at time.Time) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"summary":          datatypesSummary(summary),
		"last_progress_at": at,
		"updated_at":       at,
	})
}

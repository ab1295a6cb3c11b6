package quest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type NodeProgressRepo interface {
	Create(dbc dbctx.Context, rows []*types.NodeProgress) error
	ListByAssignment(dbc dbctx.Context, assignmentID uuid.UUID) ([]*types.NodeProgress, error)
	ListByAssignmentIDs(dbc dbctx.Context, assignmentIDs []uuid.UUID) ([]*types.NodeProgress, error)
	Save(dbc dbctx.Context, rows []*types.NodeProgress) error
	FullDeleteByNodeIDs(dbc dbctx.Context, assignmentIDs []uuid.UUID, nodeIDs []string) error
}

type nodeProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNodeProgressRepo(db *gorm.DB, baseLog *logger.Logger) NodeProgressRepo {
	return &nodeProgressRepo{db: db, log: baseLog.With("repo", "NodeProgressRepo")}
}

func (r *nodeProgressRepo) Create(dbc dbctx.Context, rows []*types.NodeProgress) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
	}
	return t.WithContext(dbc.Ctx).CreateInBatches(&rows, 500).Error
}

func (r *nodeProgressRepo) ListByAssignment(dbc dbctx.Context, assignmentID uuid.UUID) ([]*types.NodeProgress, error) {
	if assignmentID == uuid.Nil {
		return []*types.NodeProgress{}, nil
	}
	return r.ListByAssignmentIDs(dbc, []uuid.UUID{assignmentID})
}

func (r *nodeProgressRepo) ListByAssignmentIDs(dbc dbctx.Context, assignmentIDs []uuid.UUID) ([]*types.NodeProgress, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.NodeProgress
	if len(assignmentIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("assignment_id IN ?", assignmentIDs).
		Order("assignment_id ASC, node_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes the mutable columns of each row, zero values included.
func (r *nodeProgressRepo) Save(dbc dbctx.Context, rows []*types.NodeProgress) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	for _, row := range rows {
		if row == nil || row.ID == uuid.Nil {
			continue
		}
		if err := t.WithContext(dbc.Ctx).
			Model(&types.NodeProgress{}).
			Where("id = ?", row.ID).
			Select("status", "progress_count", "target_count", "notes", "is_disabled", "started_at", "completed_at", "updated_at").
			Updates(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *nodeProgressRepo) FullDeleteByNodeIDs(dbc dbctx.Context, assignmentIDs []uuid.UUID, nodeIDs []string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(assignmentIDs) == 0 || len(nodeIDs) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("assignment_id IN ? AND node_id IN ?", assignmentIDs, nodeIDs).
		Delete(&types.NodeProgress{}).Error
}

func datatypesSummary(s types.ProgressSummary) datatypes.JSONType[types.ProgressSummary] {
	return datatypes.NewJSONType(s)
}

package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

// CASGuard performs status compare-and-set writes so two concurrent
// transitions of the same row cannot both win.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) conn(dbc dbctx.Context) (*gorm.DB, error) {
	switch {
	case dbc.Tx != nil:
		return dbc.Tx.WithContext(dbc.Ctx), nil
	case g.db != nil:
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("status guard has no db")
}

// TransitionStatus applies updates to the row only while its status is still from.
// It reports whether the row was updated.
func (g CASGuard) TransitionStatus(dbc dbctx.Context, table string, id uuid.UUID, from string, updates map[string]any) (bool, error) {
	db, err := g.conn(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil || strings.TrimSpace(from) == "" {
		return false, ValidationError("status transition needs table, id and current status")
	}
	if _, ok := updates["status"]; !ok {
		return false, ValidationError(fmt.Sprintf("status transition on %s without a status column", table))
	}
	res := db.Table(table).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess turns a lost compare-and-set into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

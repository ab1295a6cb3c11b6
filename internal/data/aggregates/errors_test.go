package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
)

func TestMapErrorClassifies(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("bad input"), domainagg.CodeValidation},
		{"conflict", ConflictError("open assignment exists"), domainagg.CodeConflict},
		{"permission", PermissionError("not the owner"), domainagg.CodePermissionDenied},
		{"wrapped coded", fmt.Errorf("seed rows: %w", ConflictError("dup")), domainagg.CodeConflict},
		{"not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"cancelled", context.Canceled, domainagg.CodeRetryable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg fk", &pgconn.PgError{Code: "23503"}, domainagg.CodePreconditionFailed},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeRetryable},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, domainagg.CodeRetryable},
		{"pg other", &pgconn.PgError{Code: "22001"}, domainagg.CodeInternal},
		{"sqlite unique", errors.New("UNIQUE constraint failed: quest_assignment.blueprint_id"), domainagg.CodeConflict},
		{"sqlite busy", errors.New("database is locked"), domainagg.CodeRetryable},
		{"other", errors.New("disk on fire"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domainagg.CodeOf(MapError("op", tc.err)))
		})
	}
}

func TestMapErrorKeepsMessageAndCause(t *testing.T) {
	cause := PermissionError("only the owner or a manager may update progress")
	err := MapError(domainagg.OpAssignmentApplyProgress, cause)

	var aggErr *domainagg.Error
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "only the owner or a manager may update progress", aggErr.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Quest.Assignment.ApplyProgress: only the owner or a manager may update progress [permission_denied]", err.Error())
}

func TestMapErrorPassesAggregateErrorsThrough(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	assert.Same(t, in, MapError("other", in))
	assert.Nil(t, MapError("op", nil))
}

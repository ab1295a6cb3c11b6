package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

func runWrite(t *testing.T, op string, fn func(dbctx.Context) error) (*spyHooks, error) {
	t.Helper()
	hooks := &spyHooks{}
	err := executeWrite(context.Background(), BaseDeps{Runner: spyTxRunner{}, Hooks: hooks}, op, fn)
	require.Len(t, hooks.ops, 1)
	assert.Equal(t, op, hooks.ops[0].name)
	return hooks, err
}

func TestExecuteWriteReportsSuccess(t *testing.T) {
	hooks, err := runWrite(t, domainagg.OpBlueprintCreate, func(dbctx.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "success", hooks.ops[0].status)
	assert.Empty(t, hooks.conflicts)
	assert.Empty(t, hooks.retries)
}

func TestExecuteWriteCountsConflictsAndRetries(t *testing.T) {
	hooks, err := runWrite(t, domainagg.OpAssignmentStart, func(dbctx.Context) error {
		return ConflictError("an open assignment already exists")
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeConflict))
	assert.Equal(t, []string{domainagg.OpAssignmentStart}, hooks.conflicts)
	assert.Empty(t, hooks.retries)
	assert.Equal(t, string(domainagg.CodeConflict), hooks.ops[0].status)

	hooks, err = runWrite(t, domainagg.OpAssignmentApplyProgress, func(dbctx.Context) error {
		return RetryableError("lock wait timeout")
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRetryable))
	assert.Equal(t, []string{domainagg.OpAssignmentApplyProgress}, hooks.retries)
	assert.Empty(t, hooks.conflicts)
}

func TestExecuteWriteKeepsTypedAggregateErrors(t *testing.T) {
	hooks, err := runWrite(t, domainagg.OpAssignmentApplyProgress, func(dbctx.Context) error {
		return domainagg.NewError(domainagg.CodeUnknownReference, domainagg.OpAssignmentApplyProgress, "unknown node ids: z", nil)
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeUnknownReference))
	assert.Equal(t, string(domainagg.CodeUnknownReference), hooks.ops[0].status)
}

func TestExecuteWriteTagsUncodedErrorsInternal(t *testing.T) {
	hooks, err := runWrite(t, domainagg.OpBlueprintUpsertGraph, func(dbctx.Context) error {
		return errors.New("disk full")
	})
	var aggErr *domainagg.Error
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, domainagg.CodeInternal, aggErr.Code)
	assert.Equal(t, domainagg.OpBlueprintUpsertGraph, aggErr.Op)
	assert.Equal(t, string(domainagg.CodeInternal), hooks.ops[0].status)
}

func TestAggregateErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ValidationError("x"), string(domainagg.CodeValidation)},
		{PermissionError("x"), string(domainagg.CodePermissionDenied)},
		{context.DeadlineExceeded, string(domainagg.CodeRetryable)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, aggregateErrorStatus(tc.err), "%v", tc.err)
	}
}

func TestBaseDepsNowPrefersExplicitTime(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deps := BaseDeps{Clock: func() time.Time { return fixed }}.withDefaults()
	assert.True(t, deps.now(time.Time{}).Equal(fixed))
	explicit := fixed.Add(time.Hour)
	assert.True(t, deps.now(explicit).Equal(explicit))
}

func TestContractsCoverEmittedOps(t *testing.T) {
	var b blueprintAggregate
	var a assignmentAggregate
	for _, op := range []string{domainagg.OpBlueprintCreate, domainagg.OpBlueprintUpdateMetadata, domainagg.OpBlueprintUpsertGraph} {
		assert.True(t, b.Contract().Writes(op), op)
		assert.False(t, a.Contract().Writes(op), op)
	}
	for _, op := range []string{domainagg.OpAssignmentStart, domainagg.OpAssignmentTransition, domainagg.OpAssignmentApplyProgress} {
		assert.True(t, a.Contract().Writes(op), op)
	}
	assert.True(t, a.Contract().Owns(assignmentTable))
	assert.True(t, b.Contract().Owns(assignmentTable))
	assert.False(t, a.Contract().Owns("quest_blueprint_node"))
}

type spyTxRunner struct{}

func (spyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

type spyOp struct{ name, status string }

type spyHooks struct {
	ops       []spyOp
	conflicts []string
	retries   []string
}

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.ops = append(h.ops, spyOp{name, status})
}

func (h *spyHooks) IncConflict(name string) { h.conflicts = append(h.conflicts, name) }

func (h *spyHooks) IncRetry(name string) { h.retries = append(h.retries, name) }

package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repotest "github.com/yungbote/guildops-backend/internal/data/repos/testutil"
	types "github.com/yungbote/guildops-backend/internal/domain"
	"github.com/yungbote/guildops-backend/internal/domain/guild"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

func TestFaultyTxRunnerCommitFailureRollsBack(t *testing.T) {
	db := repotest.DB(t)
	commitErr := errors.New("commit failed")
	r := &FaultyTxRunner{DB: db, FailCommit: commitErr}
	err := r.InTx(context.Background(), func(dbc dbctx.Context) error {
		require.NotNil(t, dbc.Tx)
		repotest.SeedMember(t, dbc.Ctx, dbc.Tx, uuid.New(), uuid.New(), guild.RoleMember)
		return nil
	})
	assert.ErrorIs(t, err, commitErr)

	var n int64
	require.NoError(t, db.Model(&types.GuildMember{}).Count(&n).Error)
	assert.Zero(t, n)

	begins, commits, rollbacks := r.Counts()
	assert.Equal(t, [3]int{1, 0, 1}, [3]int{begins, commits, rollbacks})
}

func TestFaultyTxRunnerCommitsAndFailsBegin(t *testing.T) {
	r := &FaultyTxRunner{}
	called := false
	require.NoError(t, r.InTx(context.Background(), func(dbc dbctx.Context) error {
		called = dbc.Tx == nil
		return nil
	}))
	assert.True(t, called)

	beginErr := errors.New("could not serialize access")
	r.FailBegin = beginErr
	assert.ErrorIs(t, r.InTx(context.Background(), func(dbctx.Context) error {
		t.Fatal("body must not run")
		return nil
	}), beginErr)

	begins, commits, rollbacks := r.Counts()
	assert.Equal(t, [3]int{2, 1, 0}, [3]int{begins, commits, rollbacks})
}

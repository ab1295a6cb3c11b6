package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/guildops-backend/internal/data/aggregates"
	repotest "github.com/yungbote/guildops-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

func TestTransitionStatusOnlyWinsFromExpectedStatus(t *testing.T) {
	ctx := context.Background()
	db := repotest.DB(t)
	as := &quest.Assignment{
		ID: uuid.New(), BlueprintID: uuid.New(), GuildID: uuid.New(), UserID: uuid.New(), CharacterID: uuid.New(),
		Status: quest.AssignmentActive, StartedAt: time.Now().UTC(),
	}
	require.NoError(t, db.WithContext(ctx).Create(as).Error)

	guard := aggregates.NewCASGuard(db)
	dbc := dbctx.Context{Ctx: ctx}

	ok, err := guard.TransitionStatus(dbc, "quest_assignment", as.ID, quest.AssignmentActive, map[string]any{"status": quest.AssignmentPaused})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.TransitionStatus(dbc, "quest_assignment", as.ID, quest.AssignmentActive, map[string]any{"status": quest.AssignmentCancelled})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, domainagg.IsCode(aggregates.RequireCASSuccess(ok, "lost race"), domainagg.CodeConflict))

	var got quest.Assignment
	require.NoError(t, db.First(&got, "id = ?", as.ID).Error)
	assert.Equal(t, quest.AssignmentPaused, got.Status)
}

func TestTransitionStatusRejectsIncompleteInput(t *testing.T) {
	guard := aggregates.NewCASGuard(repotest.DB(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	_, err := guard.TransitionStatus(dbc, "", uuid.New(), quest.AssignmentActive, map[string]any{"status": "X"})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	_, err = guard.TransitionStatus(dbc, "quest_assignment", uuid.New(), quest.AssignmentActive, map[string]any{"notes": "x"})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))

	_, err = aggregates.CASGuard{}.TransitionStatus(dbc, "quest_assignment", uuid.New(), quest.AssignmentActive, map[string]any{"status": "X"})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	assert.NoError(t, aggregates.RequireCASSuccess(true, "fine"))
}

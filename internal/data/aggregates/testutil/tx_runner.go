package testutil

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/guildops-backend/internal/data/aggregates"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

// FaultyTxRunner runs writes in real transactions on DB and can fail them
// before they begin or right before commit. A commit failure rolls back
// everything the write did. Without DB the write runs with no transaction.
type FaultyTxRunner struct {
	DB *gorm.DB

	mu         sync.Mutex
	FailBegin  error
	FailCommit error

	begins, commits, rollbacks int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.begins++
	failBegin, failCommit := r.FailBegin, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return failCommit
	}
	var err error
	if r.DB == nil {
		err = body(dbctx.Context{Ctx: ctx})
	} else {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return body(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.rollbacks++
	} else {
		r.commits++
	}
	return err
}

// Counts returns how many writes began, committed and rolled back.
func (r *FaultyTxRunner) Counts() (begins, commits, rollbacks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins, r.commits, r.rollbacks
}

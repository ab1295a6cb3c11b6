package aggregates

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/platform/dbctx"
)

const serializationBackoff = 20 * time.Millisecond

// TxRunner owns the transaction of one aggregate write.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db       *gorm.DB
	attempts int
}

// NewGormTxRunner runs each write once.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return NewRetryingTxRunner(db, 1)
}

// NewRetryingTxRunner re-runs a write whose transaction postgres aborted as a
// serialization failure or deadlock, up to attempts times in total. fn must
// rebuild its results from scratch on each call.
func NewRetryingTxRunner(db *gorm.DB, attempts int) TxRunner {
	if attempts < 1 {
		attempts = 1
	}
	return &gormTxRunner{db: db, attempts: attempts}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
		if err == nil || attempt == r.attempts || !isSerializationFailure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * serializationBackoff):
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

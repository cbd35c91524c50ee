package aggregates

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

// TxRunner opens the single transaction every family write runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type TxOption func(*gormTxRunner)

// WithIsolation pins the isolation level of every transaction. Postgres runs
// family writes at read committed; the root-row lock does the serialising.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(r *gormTxRunner) {
		r.opts = &sql.TxOptions{Isolation: level}
	}
}

type gormTxRunner struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

func NewGormTxRunner(db *gorm.DB, opts ...TxOption) TxRunner {
	r := &gormTxRunner{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// InTx commits when fn returns nil. Errors and panics roll back; a panic is
// reported as an internal error instead of unwinding the caller.
func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) (err error) {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	defer func() {
		if p := recover(); p != nil {
			err = domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", fmt.Sprintf("panic in transaction: %v", p), nil)
		}
	}()
	body := func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}
	if r.opts != nil {
		return r.db.WithContext(ctx).Transaction(body, r.opts)
	}
	return r.db.WithContext(ctx).Transaction(body)
}

package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/promptchain-backend/internal/data/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

// InjectedTxRunner wraps another runner (or none) and injects failures at
// begin, before the body, or at commit. FailTimes limits how many calls fail;
// zero means every call.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner aggregates.TxRunner

	FailBegin      error
	FailBeforeBody error
	FailCommit     error
	FailTimes      int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	inject := r.FailTimes == 0 || r.BeginCalls <= r.FailTimes
	var failBegin, failBeforeBody, failCommit error
	if inject {
		failBegin, failBeforeBody, failCommit = r.FailBegin, r.FailBeforeBody, r.FailCommit
	}
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.rollback()
		return failBeforeBody
	}
	body := fn
	if failCommit != nil {
		body = func(dbc dbctx.Context) error {
			if fn != nil {
				if err := fn(dbc); err != nil {
					return err
				}
			}
			return failCommit
		}
	}
	var err error
	switch {
	case body == nil:
	case r.Inner != nil:
		err = r.Inner.InTx(ctx, body)
	default:
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err != nil {
		r.rollback()
		return err
	}
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
	return nil
}

func (r *InjectedTxRunner) rollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}

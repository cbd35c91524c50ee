package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

func TestInjectedTxRunner_CommitsOnSuccess(t *testing.T) {
	r := &InjectedTxRunner{}
	called := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called {
		t.Fatalf("expected callback to run")
	}
	if r.BeginCalls != 1 || r.CommitCalls != 1 || r.RollbackCalls != 0 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunner_FailCommitRunsBodyThenRollsBack(t *testing.T) {
	commitErr := errors.New("commit failed")
	r := &InjectedTxRunner{FailCommit: commitErr}
	called := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, commitErr) || !called {
		t.Fatalf("expected body to run and commit err, got called=%v err=%v", called, err)
	}
	if r.CommitCalls != 0 || r.RollbackCalls != 1 {
		t.Fatalf("unexpected counters commit=%d rollback=%d", r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunner_FailTimesLimitsInjection(t *testing.T) {
	beginErr := errors.New("begin failed")
	r := &InjectedTxRunner{FailBegin: beginErr, FailTimes: 1}
	noop := func(_ dbctx.Context) error { return nil }

	if err := r.InTx(context.Background(), noop); !errors.Is(err, beginErr) {
		t.Fatalf("first call: expected begin err, got %v", err)
	}
	if err := r.InTx(context.Background(), noop); err != nil {
		t.Fatalf("second call: unexpected err %v", err)
	}
	if r.BeginCalls != 2 || r.CommitCalls != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d", r.BeginCalls, r.CommitCalls)
	}
}

func TestCapturingRecorder(t *testing.T) {
	rec := &CapturingRecorder{Err: errors.New("sink down")}
	if err := rec.Record(context.Background(), eventFixture()); err == nil {
		t.Fatalf("expected configured error")
	}
	if len(rec.Events()) != 1 {
		t.Fatalf("event should be captured even when failing")
	}
	rec.Reset()
	if _, ok := rec.Last(); ok {
		t.Fatalf("expected no events after reset")
	}
}

func eventFixture() activity.Event {
	return activity.Event{Kind: activity.KindUpdated, Action: activity.ActionSetActive, Version: 1}
}

package aggregates

import (
	"context"
	"testing"

	"github.com/yungbote/promptchain-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestRequireSingleActive(t *testing.T) {
	if err := RequireSingleActive(1); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, n := range []int64{0, 2} {
		err := MapError("op", RequireSingleActive(n))
		if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
			t.Fatalf("active=%d: expected invariant violation, got %v", n, err)
		}
	}
}

func TestCASGuardUpdateByFlag(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	proj := testutil.SeedProject(t, ctx, db)
	chain := testutil.SeedChain(t, ctx, db, proj.ID, "cas", 1, 1)

	guard := NewCASGuard(db)
	dbc := dbctx.New(ctx)

	ok, err := guard.UpdateByFlag(dbc, "prompt_version", chain[0].ID, "is_active", false, map[string]any{"is_active": true})
	if err != nil {
		t.Fatalf("UpdateByFlag: %v", err)
	}
	if ok {
		t.Fatalf("expected no row when flag does not match")
	}
	ok, err = guard.UpdateByFlag(dbc, "prompt_version", chain[0].ID, "is_active", true, map[string]any{"is_active": false})
	if err != nil || !ok {
		t.Fatalf("UpdateByFlag matching: ok=%v err=%v", ok, err)
	}
	if _, err := guard.UpdateByFlag(dbc, "", chain[0].ID, "is_active", true, map[string]any{"x": 1}); err == nil {
		t.Fatalf("expected validation error for empty table")
	}
}

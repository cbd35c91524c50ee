package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/yungbote/promptchain-backend/internal/data/repos/testutil"
	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

func TestPromptVersionRepoLookups(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewPromptVersionRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	proj := testutil.SeedProject(t, ctx, db)
	chain := testutil.SeedChain(t, ctx, db, proj.ID, "greeting", 3, 3)

	got, err := repo.GetByID(dbc, chain[1].ID)
	if err != nil || got == nil || got.Version != 2 {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: got=%+v err=%v", missing, err)
	}

	byKey, err := repo.GetByProjectKey(dbc, proj.ID, "greeting-v3")
	if err != nil || byKey == nil || byKey.ID != chain[2].ID {
		t.Fatalf("GetByProjectKey: got=%+v err=%v", byKey, err)
	}
	if other, err := repo.GetByProjectKey(dbc, uuid.New(), "greeting"); err != nil || other != nil {
		t.Fatalf("GetByProjectKey other project: got=%+v err=%v", other, err)
	}

	exists, err := repo.KeyExists(dbc, proj.ID, "greeting-v2")
	if err != nil || !exists {
		t.Fatalf("KeyExists: exists=%v err=%v", exists, err)
	}
	exists, err = repo.KeyExists(dbc, proj.ID, "greeting-v9")
	if err != nil || exists {
		t.Fatalf("KeyExists unused: exists=%v err=%v", exists, err)
	}

	children, err := repo.ListByParentIDs(dbc, []uuid.UUID{chain[0].ID, chain[1].ID})
	if err != nil || len(children) != 2 {
		t.Fatalf("ListByParentIDs: len=%d err=%v", len(children), err)
	}
	if children[0].Version != 2 || children[1].Version != 3 {
		t.Fatalf("ListByParentIDs order: %d,%d", children[0].Version, children[1].Version)
	}

	rows, err := repo.GetByIDs(dbc, types.PromptVersionIDs(chain))
	if err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: len=%d err=%v", len(rows), err)
	}
}

func TestPromptVersionRepoActivation(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewPromptVersionRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	proj := testutil.SeedProject(t, ctx, db)
	chain := testutil.SeedChain(t, ctx, db, proj.ID, "summary", 2, 2)
	ids := types.PromptVersionIDs(chain)

	if n, err := repo.CountActive(dbc, ids); err != nil || n != 1 {
		t.Fatalf("CountActive: n=%d err=%v", n, err)
	}

	actor := uuid.New()
	n, err := repo.DeactivateIDs(dbc, ids, &actor)
	if err != nil || n != 1 {
		t.Fatalf("DeactivateIDs: n=%d err=%v", n, err)
	}
	if n, err := repo.CountActive(dbc, ids); err != nil || n != 0 {
		t.Fatalf("CountActive after deactivate: n=%d err=%v", n, err)
	}
	got, _ := repo.GetByID(dbc, chain[1].ID)
	if got.UpdatedBy == nil || *got.UpdatedBy != actor {
		t.Fatalf("DeactivateIDs should stamp updated_by")
	}

	if err := repo.UpdateFields(dbc, chain[0].ID, map[string]interface{}{"is_active": true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	active, err := repo.ListActiveByProject(dbc, proj.ID, 10, 0)
	if err != nil || len(active) != 1 || active[0].ID != chain[0].ID {
		t.Fatalf("ListActiveByProject: %+v err=%v", active, err)
	}
	if n, err := repo.CountActiveByProject(dbc, proj.ID); err != nil || n != 1 {
		t.Fatalf("CountActiveByProject: n=%d err=%v", n, err)
	}
}

func TestPromptVersionRepoLockRequiresTx(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewPromptVersionRepo(db, testutil.Logger(t))

	if _, err := repo.LockByID(dbctx.New(ctx), uuid.New()); err == nil {
		t.Fatalf("expected LockByID without tx to fail")
	}

	proj := testutil.SeedProject(t, ctx, db)
	chain := testutil.SeedChain(t, ctx, db, proj.ID, "locked", 1, 1)

	tx := testutil.Tx(t, db)
	got, err := repo.LockByID(dbctx.Context{Ctx: ctx, Tx: tx}, chain[0].ID)
	if err != nil || got.ID != chain[0].ID {
		t.Fatalf("LockByID: got=%+v err=%v", got, err)
	}
}

func TestPromptVersionRepoSearchAndDelete(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewPromptVersionRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	proj := testutil.SeedProject(t, ctx, db)
	testutil.SeedChain(t, ctx, db, proj.ID, "welcome_email", 2, 2)
	other := testutil.SeedChain(t, ctx, db, proj.ID, "refund", 1, 1)

	hits, err := repo.SearchActive(dbc, proj.ID, "WELCOME", 10)
	if err != nil || len(hits) != 1 || hits[0].Version != 2 {
		t.Fatalf("SearchActive: %+v err=%v", hits, err)
	}
	// '%' is matched literally.
	if hits, err := repo.SearchActive(dbc, proj.ID, "e%l", 10); err != nil || len(hits) != 0 {
		t.Fatalf("SearchActive wildcard escape: %+v err=%v", hits, err)
	}

	n, err := repo.DeleteByIDs(dbc, types.PromptVersionIDs(other))
	if err != nil || n != 1 {
		t.Fatalf("DeleteByIDs: n=%d err=%v", n, err)
	}
	n, err = repo.DeleteByProject(dbc, proj.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByProject: n=%d err=%v", n, err)
	}
}

func TestPromptVersionRepoCreateAssignsIDAndRejectsDuplicateKey(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewPromptVersionRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)
	proj := testutil.SeedProject(t, ctx, db)

	v, err := repo.Create(dbc, &types.PromptVersion{
		ProjectID: proj.ID,
		Key:       "alpha",
		Name:      "Alpha",
		UserText:  "hi",
		Version:   1,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.ID == uuid.Nil || v.CreatedAt.IsZero() {
		t.Fatalf("Create should assign id and timestamps: %+v", v)
	}

	_, err = repo.Create(dbc, &types.PromptVersion{
		ProjectID: proj.ID,
		Key:       "alpha",
		Name:      "Alpha again",
		UserText:  "hi",
		Version:   1,
		IsActive:  true,
	})
	if err == nil {
		t.Fatalf("expected unique violation on duplicate key")
	}
}

func TestPromptVersionRepoCreateEnforcesForeignKeys(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewPromptVersionRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)
	proj := testutil.SeedProject(t, ctx, db)

	isFKViolation := func(err error) bool {
		var liteErr sqlite3.Error
		return errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}

	_, err := repo.Create(dbc, &types.PromptVersion{
		ProjectID: uuid.New(),
		Key:       "stray",
		Name:      "Stray",
		UserText:  "hi",
		Version:   1,
	})
	if !isFKViolation(err) {
		t.Fatalf("unknown project: want foreign key violation, got %v", err)
	}

	_, err = repo.Create(dbc, &types.PromptVersion{
		ProjectID: proj.ID,
		Key:       "stray-v2",
		Name:      "Stray",
		UserText:  "hi",
		Version:   2,
		ParentID:  testutil.PtrUUID(uuid.New()),
	})
	if !isFKViolation(err) {
		t.Fatalf("unknown parent: want foreign key violation, got %v", err)
	}

	if n, err := repo.CountActiveByProject(dbc, proj.ID); err != nil || n != 0 {
		t.Fatalf("rejected rows must not persist: n=%d err=%v", n, err)
	}
}

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/promptchain-backend/internal/domain"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.Project {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Project{
		ID:        uuid.New(),
		Key:       "proj-" + uuid.NewString()[:8],
		Name:      "project",
		OwnerID:   uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

// SeedChain inserts a linear family v1..vN under projectID with only the
// member at activeVersion active. Keys follow the derived form.
func SeedChain(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, rootKey string, n, activeVersion int) []*types.PromptVersion {
	tb.Helper()
	out := make([]*types.PromptVersion, 0, n)
	base := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	var parent *types.PromptVersion
	for i := 1; i <= n; i++ {
		key := rootKey
		if i > 1 {
			key = fmt.Sprintf("%s-v%d", rootKey, i)
		}
		v := &types.PromptVersion{
			ID:        uuid.New(),
			ProjectID: projectID,
			Key:       key,
			Name:      fmt.Sprintf("prompt v%d", i),
			UserText:  fmt.Sprintf("text v%d", i),
			Version:   i,
			IsActive:  i == activeVersion,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if parent != nil {
			pid := parent.ID
			v.ParentID = &pid
		}
		if err := tx.WithContext(ctx).Create(v).Error; err != nil {
			tb.Fatalf("seed prompt version %d: %v", i, err)
		}
		out = append(out, v)
		parent = v
	}
	return out
}

// SeedVersion inserts a single row as given, assigning an ID when missing.
func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, v *types.PromptVersion) *types.PromptVersion {
	tb.Helper()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = now
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed prompt version: %v", err)
	}
	return v
}

func PtrUUID(id uuid.UUID) *uuid.UUID { return &id }

// WithoutForeignKeys runs fn with SQLite foreign key enforcement off so fn
// can seed rows the schema rejects, such as a dangling parent. db must not be
// inside a transaction, where the pragma is ignored.
func WithoutForeignKeys(tb testing.TB, db *gorm.DB, fn func()) {
	tb.Helper()
	if err := db.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
		tb.Fatalf("disable foreign keys: %v", err)
	}
	defer func() {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			tb.Errorf("enable foreign keys: %v", err)
		}
	}()
	fn()
}

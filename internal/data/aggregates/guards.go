package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

// CASGuard provides optimistic/concurrency guard helpers for aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Conn(nil), nil
	}
	if g.db != nil {
		return dbc.Conn(g.db), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByFlag updates a row only when id matches and the boolean column
// still holds expected. It is the compare-and-set used for activation.
func (g CASGuard) UpdateByFlag(dbc dbctx.Context, table string, id uuid.UUID, column string, expected bool, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	column = strings.TrimSpace(column)
	if table == "" || column == "" || id == uuid.Nil {
		return false, ValidationError("table, column and id are required for UpdateByFlag")
	}
	if len(updates) == 0 {
		return false, ValidationError("updates must not be empty")
	}
	res := db.Table(table).
		Where(fmt.Sprintf("id = ? AND %s = ?", column), id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireSingleActive checks the family active-count invariant after a write.
func RequireSingleActive(active int64) error {
	if active == 1 {
		return nil
	}
	return InvariantError(fmt.Sprintf("family has %d active versions after write, want 1", active))
}

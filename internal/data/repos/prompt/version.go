package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

type PromptVersionRepo interface {
	Create(dbc dbctx.Context, v *types.PromptVersion) (*types.PromptVersion, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PromptVersion, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.PromptVersion, error)
	GetByProjectKey(dbc dbctx.Context, projectID uuid.UUID, key string) (*types.PromptVersion, error)
	KeyExists(dbc dbctx.Context, projectID uuid.UUID, key string) (bool, error)
	ListByParentIDs(dbc dbctx.Context, parentIDs []uuid.UUID) ([]*types.PromptVersion, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PromptVersion, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeactivateIDs(dbc dbctx.Context, ids []uuid.UUID, actor *uuid.UUID) (int64, error)
	CountActive(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	ListActiveByProject(dbc dbctx.Context, projectID uuid.UUID, limit, offset int) ([]*types.PromptVersion, error)
	CountActiveByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
	SearchActive(dbc dbctx.Context, projectID uuid.UUID, query string, limit int) ([]*types.PromptVersion, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
}

type promptVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptVersionRepo(db *gorm.DB, baseLog *logger.Logger) PromptVersionRepo {
	return &promptVersionRepo{
		db:  db,
		log: baseLog.With("repo", "PromptVersionRepo"),
	}
}

func (r *promptVersionRepo) Create(dbc dbctx.Context, v *types.PromptVersion) (*types.PromptVersion, error) {
	if v == nil {
		return nil, fmt.Errorf("missing prompt version")
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	if err := dbc.Conn(r.db).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

func (r *promptVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PromptVersion, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.PromptVersion
	if err := dbc.Conn(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *promptVersionRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.PromptVersion, error) {
	var out []*types.PromptVersion
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("id IN ?", ids).
		Order("version ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *promptVersionRepo) GetByProjectKey(dbc dbctx.Context, projectID uuid.UUID, key string) (*types.PromptVersion, error) {
	key = strings.TrimSpace(key)
	if projectID == uuid.Nil || key == "" {
		return nil, nil
	}
	var out types.PromptVersion
	if err := dbc.Conn(r.db).
		Where(map[string]interface{}{"project_id": projectID, "key": key}).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *promptVersionRepo) KeyExists(dbc dbctx.Context, projectID uuid.UUID, key string) (bool, error) {
	var n int64
	if err := dbc.Conn(r.db).
		Model(&types.PromptVersion{}).
		Where(map[string]interface{}{"project_id": projectID, "key": key}).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *promptVersionRepo) ListByParentIDs(dbc dbctx.Context, parentIDs []uuid.UUID) ([]*types.PromptVersion, error) {
	var out []*types.PromptVersion
	if len(parentIDs) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("parent_id IN ?", parentIDs).
		Order("version ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockByID takes a row lock held until the surrounding transaction ends.
// SQLite has no row locks; its single writer gives the same ordering.
func (r *promptVersionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PromptVersion, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID required dbc.Tx")
	}
	var out types.PromptVersion
	if err := dbc.Conn(nil).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *promptVersionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.Conn(r.db).
		Model(&types.PromptVersion{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeactivateIDs clears is_active on the given rows that are currently
// active and returns how many changed.
func (r *promptVersionRepo) DeactivateIDs(dbc dbctx.Context, ids []uuid.UUID, actor *uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	}
	if actor != nil && *actor != uuid.Nil {
		updates["updated_by"] = *actor
	}
	res := dbc.Conn(r.db).
		Model(&types.PromptVersion{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *promptVersionRepo) CountActive(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	if err := dbc.Conn(r.db).
		Model(&types.PromptVersion{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *promptVersionRepo) ListActiveByProject(dbc dbctx.Context, projectID uuid.UUID, limit, offset int) ([]*types.PromptVersion, error) {
	var out []*types.PromptVersion
	if projectID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("updated_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *promptVersionRepo) CountActiveByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).
		Model(&types.PromptVersion{}).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// SearchActive matches active versions whose name, key, description or user
// text contains query, case-insensitively.
func (r *promptVersionRepo) SearchActive(dbc dbctx.Context, projectID uuid.UUID, query string, limit int) ([]*types.PromptVersion, error) {
	var out []*types.PromptVersion
	query = strings.ToLower(strings.TrimSpace(query))
	if projectID == uuid.Nil || query == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	if err := dbc.Conn(r.db).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Where(
			r.db.Where(`LOWER(name) LIKE ? ESCAPE '\'`, like).
				Or(`LOWER("key") LIKE ? ESCAPE '\'`, like).
				Or(`LOWER(description) LIKE ? ESCAPE '\'`, like).
				Or(`LOWER(user_text) LIKE ? ESCAPE '\'`, like),
		).
		Order("updated_at DESC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *promptVersionRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.Conn(r.db).
		Where("id IN ?", ids).
		Delete(&types.PromptVersion{})
	return res.RowsAffected, res.Error
}

func (r *promptVersionRepo) DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	if projectID == uuid.Nil {
		return 0, nil
	}
	res := dbc.Conn(r.db).
		Where("project_id = ?", projectID).
		Delete(&types.PromptVersion{})
	return res.RowsAffected, res.Error
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

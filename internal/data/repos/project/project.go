package project

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

type ProjectRepo interface {
	Create(dbc dbctx.Context, p *types.Project) (*types.Project, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	GetByKey(dbc dbctx.Context, key string) (*types.Project, error)
	List(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.Project, error)
	LockShared(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{
		db:  db,
		log: baseLog.With("repo", "ProjectRepo"),
	}
}

func (r *projectRepo) Create(dbc dbctx.Context, p *types.Project) (*types.Project, error) {
	if p == nil {
		return nil, fmt.Errorf("missing project")
	}
	p.Key = strings.ToLower(strings.TrimSpace(p.Key))
	if p.Key == "" {
		return nil, fmt.Errorf("missing project key")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if err := dbc.Conn(r.db).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Project
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

func (r *projectRepo) GetByKey(dbc dbctx.Context, key string) (*types.Project, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil, nil
	}
	var out types.Project
	if err := dbc.Conn(r.db).
		Where(map[string]interface{}{"key": key}).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *projectRepo) List(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.Project, error) {
	var out []*types.Project
	q := dbc.Conn(r.db).Order("created_at ASC")
	if ownerID != uuid.Nil {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockShared reads the project under FOR SHARE, which conflicts with the
// FOR UPDATE taken by Delete. Returns nil, nil when the project does not
// exist.
func (r *projectRepo) LockShared(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockShared required dbc.Tx")
	}
	return r.lock(dbc.Conn(nil), id, "SHARE")
}

func (r *projectRepo) lock(tx *gorm.DB, id uuid.UUID, strength string) (*types.Project, error) {
	var out types.Project
	if err := tx.
		Clauses(clause.Locking{Strength: strength}).
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

func (r *projectRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.Conn(r.db).Model(&types.Project{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete locks the project row, then removes every prompt version it owns and
// the project itself. It returns the number of versions removed. Without
// dbc.Tx it opens its own transaction.
func (r *projectRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	if id == uuid.Nil {
		return 0, fmt.Errorf("missing id")
	}
	var removed int64
	run := func(tx *gorm.DB) error {
		p, err := r.lock(tx, id, "UPDATE")
		if err != nil {
			return err
		}
		if p == nil {
			return gorm.ErrRecordNotFound
		}
		res := tx.Where("project_id = ?", id).Delete(&types.PromptVersion{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Where("id = ?", id).Delete(&types.Project{}).Error
	}
	var err error
	if dbc.Tx != nil {
		err = run(dbc.Conn(nil))
	} else {
		err = dbc.Conn(r.db).Transaction(run)
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

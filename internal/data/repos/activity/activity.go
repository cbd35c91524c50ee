package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

type ActivityRepo interface {
	Create(dbc dbctx.Context, a *types.Activity) (*types.Activity, error)
	CreateFromEvent(dbc dbctx.Context, ev types.ActivityEvent) (*types.Activity, error)
	ListByFamilyRoot(dbc dbctx.Context, rootID uuid.UUID, limit int) ([]*types.Activity, error)
	ListByActor(dbc dbctx.Context, actorID uuid.UUID, limit int) ([]*types.Activity, error)
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	return &activityRepo{
		db:  db,
		log: baseLog.With("repo", "ActivityRepo"),
	}
}

func (r *activityRepo) Create(dbc dbctx.Context, a *types.Activity) (*types.Activity, error) {
	if a == nil {
		return nil, fmt.Errorf("missing activity")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := dbc.Conn(r.db).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

type activityDetails struct {
	Key           string     `json:"key,omitempty"`
	PreviousID    *uuid.UUID `json:"previous_id,omitempty"`
	ChangedFields []string   `json:"changed_fields,omitempty"`
}

// CreateFromEvent persists an audit event. Event IDs are reused as row IDs so
// a replayed event is rejected by the primary key.
func (r *activityRepo) CreateFromEvent(dbc dbctx.Context, ev types.ActivityEvent) (*types.Activity, error) {
	details, err := json.Marshal(activityDetails{
		Key:           ev.Key,
		PreviousID:    ev.PreviousID,
		ChangedFields: ev.ChangedFields,
	})
	if err != nil {
		return nil, err
	}
	return r.Create(dbc, &types.Activity{
		ID:           ev.ID,
		ActorID:      ev.Actor,
		ActivityType: string(ev.Kind),
		Action:       ev.Action,
		SubjectID:    ev.SubjectID,
		FamilyRootID: ev.FamilyRootID,
		ProjectID:    ev.ProjectID,
		Version:      ev.Version,
		Details:      datatypes.JSON(details),
		CreatedAt:    ev.OccurredAt,
	})
}

func (r *activityRepo) ListByFamilyRoot(dbc dbctx.Context, rootID uuid.UUID, limit int) ([]*types.Activity, error) {
	var out []*types.Activity
	if rootID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).
		Where("family_root_id = ?", rootID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRepo) ListByActor(dbc dbctx.Context, actorID uuid.UUID, limit int) ([]*types.Activity, error) {
	var out []*types.Activity
	if actorID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).
		Where("actor_id = ?", actorID).
		Order("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

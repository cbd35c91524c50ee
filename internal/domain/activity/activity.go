package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Kind is the audit event kind emitted by the version engine.
type Kind string

const (
	KindVersionCreated Kind = "version_created"
	KindUpdated        Kind = "updated"
	KindDeleted        Kind = "deleted"

	// Project events carry no family; FamilyRootID is uuid.Nil.
	KindProjectCreated Kind = "project_created"
	KindProjectUpdated Kind = "project_updated"
	KindProjectDeleted Kind = "project_deleted"
)

// Action narrows a Kind to the operation that produced it.
const (
	ActionCreate        = "create_prompt"
	ActionUpdate        = "update_prompt"
	ActionCreateVersion = "create_prompt_version"
	ActionSetActive     = "set_active"
	ActionDelete        = "delete_prompt"

	ActionCreateProject = "create_project"
	ActionUpdateProject = "update_project"
	ActionDeleteProject = "delete_project"
)

// Event is the message handed to a Recorder once per successful mutation.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	Actor         uuid.UUID  `json:"actor"`
	Kind          Kind       `json:"kind"`
	Action        string     `json:"action"`
	SubjectID     uuid.UUID  `json:"subject_id"`
	FamilyRootID  uuid.UUID  `json:"family_root_id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	Version       int        `json:"version"`
	PreviousID    *uuid.UUID `json:"previous_id,omitempty"`
	Key           string     `json:"key,omitempty"`
	ChangedFields []string   `json:"changed_fields,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_recorder.go -package=mocks github.com/yungbote/promptchain-backend/internal/domain/activity Recorder

// Recorder receives audit events. A failing Recorder never undoes the
// mutation that produced the event.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, ev Event) error

func (f RecorderFunc) Record(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Activity is the persisted form of an Event.
type Activity struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID      uuid.UUID      `gorm:"type:uuid;column:actor_id;not null;index:idx_activity_actor" json:"actor_id"`
	ActivityType string         `gorm:"column:activity_type;type:varchar(40);not null" json:"activity_type"`
	Action       string         `gorm:"column:action;type:varchar(40);not null" json:"action"`
	SubjectID    uuid.UUID      `gorm:"type:uuid;column:subject_id;not null" json:"subject_id"`
	FamilyRootID uuid.UUID      `gorm:"type:uuid;column:family_root_id;not null;index:idx_activity_family_root" json:"family_root_id"`
	ProjectID    uuid.UUID      `gorm:"type:uuid;column:project_id;not null" json:"project_id"`
	Version      int            `gorm:"column:version;not null" json:"version"`
	Details      datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_activity_created_at" json:"created_at"`
}

func (Activity) TableName() string { return "activity" }

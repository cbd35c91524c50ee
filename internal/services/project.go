package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/promptchain-backend/internal/data/repos"
	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/domain/prompt"
	"github.com/yungbote/promptchain-backend/internal/pkg/ctxutil"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

const maxProjectKeyLength = 50

type ProjectService interface {
	Create(ctx context.Context, key, name, description string, owner uuid.UUID) (*types.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Project, error)
	GetByKey(ctx context.Context, key string) (*types.Project, error)
	List(ctx context.Context, owner uuid.UUID) ([]*types.Project, error)
	Update(ctx context.Context, in UpdateProjectInput) (*types.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UpdateProjectInput edits a project's name or description. Nil fields are
// left unchanged; the key is immutable.
type UpdateProjectInput struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Actor       uuid.UUID
}

type projectService struct {
	db       *gorm.DB
	log      *logger.Logger
	projects repos.ProjectRepo
	recorder activity.Recorder
}

// NewProjectService builds the project service. recorder may be nil, in which
// case project mutations are not audited.
func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projects repos.ProjectRepo, recorder activity.Recorder) ProjectService {
	return &projectService{
		db:       db,
		log:      baseLog.With("service", "ProjectService"),
		projects: projects,
		recorder: recorder,
	}
}

func (s *projectService) Create(ctx context.Context, key, name, description string, owner uuid.UUID) (*types.Project, error) {
	const op = "Project.Create"
	owner = ctxutil.ActorOr(ctx, owner)
	key = prompt.NormalizeKey(key)
	if err := prompt.ValidateKey(key); err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if len(key) > maxProjectKeyLength {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("project key longer than %d characters", maxProjectKeyLength), nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "name is required", nil)
	}
	if owner == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "owner is required", nil)
	}

	var out *types.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := s.projects.GetByKey(inner, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainagg.NewError(domainagg.CodeDuplicateKey, op, fmt.Sprintf("project key %q already exists", key), nil)
		}
		out, err = s.projects.Create(inner, &types.Project{
			Key:         key,
			Name:        name,
			Description: strings.TrimSpace(description),
			OwnerID:     owner,
		})
		return err
	})
	if err != nil {
		if domainagg.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	s.log.Info("Project created", "id", out.ID, "key", out.Key, "owner", owner)
	s.emit(ctx, op, activity.Event{
		Actor:     owner,
		Kind:      activity.KindProjectCreated,
		Action:    activity.ActionCreateProject,
		SubjectID: out.ID,
		ProjectID: out.ID,
		Key:       out.Key,
	})
	return out, nil
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	const op = "Project.Get"
	p, err := s.projects.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if p == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %s", id), nil)
	}
	return p, nil
}

func (s *projectService) GetByKey(ctx context.Context, key string) (*types.Project, error) {
	const op = "Project.GetByKey"
	p, err := s.projects.GetByKey(dbctx.New(ctx), prompt.NormalizeKey(key))
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if p == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %q", key), nil)
	}
	return p, nil
}

func (s *projectService) List(ctx context.Context, owner uuid.UUID) ([]*types.Project, error) {
	out, err := s.projects.List(dbctx.New(ctx), owner)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "Project.List", err)
	}
	return out, nil
}

func (s *projectService) Update(ctx context.Context, in UpdateProjectInput) (*types.Project, error) {
	const op = "Project.Update"
	actor := ctxutil.ActorOr(ctx, in.Actor)
	updates := map[string]interface{}{}
	var changed []string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, "name cannot be empty", nil)
		}
		if len(name) > prompt.MaxNameLength {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("name longer than %d characters", prompt.MaxNameLength), nil)
		}
		updates["name"] = name
		changed = append(changed, "name")
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if len(desc) > prompt.MaxDescriptionLength {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("description longer than %d characters", prompt.MaxDescriptionLength), nil)
		}
		updates["description"] = desc
		changed = append(changed, "description")
	}

	var out *types.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.projects.UpdateFields(inner, in.ID, updates); err != nil {
			return err
		}
		var err error
		out, err = s.projects.GetByID(inner, in.ID)
		if err == nil && out == nil {
			err = gorm.ErrRecordNotFound
		}
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %s", in.ID), err)
	}
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if len(changed) == 0 {
		return out, nil
	}
	s.log.Info("Project updated", "id", out.ID, "fields", changed)
	s.emit(ctx, op, activity.Event{
		Actor:         actor,
		Kind:          activity.KindProjectUpdated,
		Action:        activity.ActionUpdateProject,
		SubjectID:     out.ID,
		ProjectID:     out.ID,
		Key:           out.Key,
		ChangedFields: changed,
	})
	return out, nil
}

// Delete removes the project and every prompt version it owns. The project
// row is locked first, so in-flight prompt writes finish before the delete
// and later ones find no project.
func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "Project.Delete"
	var key string
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := s.projects.GetByID(inner, id)
		if err != nil {
			return err
		}
		if p == nil {
			return gorm.ErrRecordNotFound
		}
		key = p.Key
		removed, err = s.projects.Delete(inner, id)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %s", id), err)
	}
	if err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	s.log.Info("Project deleted", "id", id, "versions_removed", removed)
	s.emit(ctx, op, activity.Event{
		Actor:     ctxutil.ActorOr(ctx, uuid.Nil),
		Kind:      activity.KindProjectDeleted,
		Action:    activity.ActionDeleteProject,
		SubjectID: id,
		ProjectID: id,
		Key:       key,
	})
	return nil
}

// emit records ev after commit. A recorder failure is logged and never undoes
// the mutation.
func (s *projectService) emit(ctx context.Context, op string, ev activity.Event) {
	if s.recorder == nil {
		return
	}
	ev.ID = uuid.New()
	ev.OccurredAt = time.Now().UTC()
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.log.WithContext(ctx).Warn("Activity emission failed",
			"op", op,
			"subject_id", ev.SubjectID,
			"action", ev.Action,
			"error", err,
		)
	}
}

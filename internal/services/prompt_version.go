package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/data/family"
	"github.com/yungbote/promptchain-backend/internal/data/repos"
	types "github.com/yungbote/promptchain-backend/internal/domain"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/domain/prompt"
	"github.com/yungbote/promptchain-backend/internal/pkg/ctxutil"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

const (
	defaultListLimit     = 50
	maxListLimit         = 500
	defaultActivityLimit = 100
)

// VersionWithFamily is a version plus its whole family sorted by version.
type VersionWithFamily struct {
	Version *types.PromptVersion   `json:"version"`
	Root    *types.PromptVersion   `json:"root"`
	Family  []*types.PromptVersion `json:"family"`
}

// PromptHistory is the version list of a family plus its audit trail.
type PromptHistory struct {
	Root     *types.PromptVersion   `json:"root"`
	Current  *types.PromptVersion   `json:"current,omitempty"`
	Versions []*types.PromptVersion `json:"versions"`
	Activity []*types.Activity      `json:"activity"`
}

type PromptVersionService interface {
	Create(ctx context.Context, in domainagg.CreatePromptInput) (domainagg.MutationResult, error)
	Update(ctx context.Context, in domainagg.UpdatePromptInput) (domainagg.MutationResult, error)
	SetActive(ctx context.Context, in domainagg.SetActiveInput) (domainagg.MutationResult, error)
	DeleteFamily(ctx context.Context, in domainagg.DeleteFamilyInput) (domainagg.DeleteFamilyResult, error)

	Get(ctx context.Context, id uuid.UUID) (*types.PromptVersion, error)
	GetWithFamily(ctx context.Context, id uuid.UUID) (VersionWithFamily, error)
	GetByKey(ctx context.Context, projectID uuid.UUID, key string) (*types.PromptVersion, error)
	GetCurrentByKey(ctx context.Context, projectID uuid.UUID, key string) (*types.PromptVersion, error)
	ResolveCurrent(ctx context.Context, id uuid.UUID) (*types.PromptVersion, error)
	History(ctx context.Context, id uuid.UUID, activityLimit int) (PromptHistory, error)
	ListProjectPrompts(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*types.PromptVersion, error)
	Search(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*types.PromptVersion, error)
	CountProjectPrompts(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type promptVersionService struct {
	log        *logger.Logger
	repos      repos.Set
	family     *family.Traverser
	aggregate  domainagg.PromptFamilyAggregate
	authorizer Authorizer
}

func NewPromptVersionService(
	baseLog *logger.Logger,
	set repos.Set,
	traverser *family.Traverser,
	aggregate domainagg.PromptFamilyAggregate,
	authorizer Authorizer,
) PromptVersionService {
	if authorizer == nil {
		authorizer = AllowAll{}
	}
	return &promptVersionService{
		log:        baseLog.With("service", "PromptVersionService"),
		repos:      set,
		family:     traverser,
		aggregate:  aggregate,
		authorizer: authorizer,
	}
}

func (s *promptVersionService) Create(ctx context.Context, in domainagg.CreatePromptInput) (domainagg.MutationResult, error) {
	in.Actor = ctxutil.ActorOr(ctx, in.Actor)
	if err := s.authorizer.AuthorizeProject(ctx, in.Actor, in.ProjectID); err != nil {
		return domainagg.MutationResult{}, err
	}
	res, err := s.aggregate.Create(ctx, in)
	if err != nil {
		return res, err
	}
	s.log.Info("Prompt created", "id", res.Version.ID, "key", res.Version.Key, "actor", in.Actor)
	return res, nil
}

func (s *promptVersionService) Update(ctx context.Context, in domainagg.UpdatePromptInput) (domainagg.MutationResult, error) {
	in.Actor = ctxutil.ActorOr(ctx, in.Actor)
	if err := s.authorizeVersion(ctx, "Prompt.Update", in.Actor, in.ID); err != nil {
		return domainagg.MutationResult{}, err
	}
	res, err := s.aggregate.Update(ctx, in)
	if err != nil {
		return res, err
	}
	if in.CreateNewVersion {
		s.log.Info("Prompt version created",
			"id", res.Version.ID,
			"version", res.Version.Version,
			"previous_id", in.ID,
			"actor", in.Actor,
		)
	}
	return res, nil
}

func (s *promptVersionService) SetActive(ctx context.Context, in domainagg.SetActiveInput) (domainagg.MutationResult, error) {
	in.Actor = ctxutil.ActorOr(ctx, in.Actor)
	if err := s.authorizeVersion(ctx, "Prompt.SetActive", in.Actor, in.ID); err != nil {
		return domainagg.MutationResult{}, err
	}
	return s.aggregate.SetActive(ctx, in)
}

func (s *promptVersionService) DeleteFamily(ctx context.Context, in domainagg.DeleteFamilyInput) (domainagg.DeleteFamilyResult, error) {
	in.Actor = ctxutil.ActorOr(ctx, in.Actor)
	if err := s.authorizeVersion(ctx, "Prompt.Delete", in.Actor, in.ID); err != nil {
		return domainagg.DeleteFamilyResult{}, err
	}
	res, err := s.aggregate.DeleteFamily(ctx, in)
	if err != nil {
		return res, err
	}
	s.log.Info("Prompt family deleted", "root_id", res.FamilyRootID, "versions", len(res.DeletedIDs), "actor", in.Actor)
	return res, nil
}

func (s *promptVersionService) authorizeVersion(ctx context.Context, op string, actor, id uuid.UUID) error {
	if _, ok := s.authorizer.(AllowAll); ok {
		return nil
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizer.AuthorizeProject(ctx, actor, v.ProjectID); err != nil {
		return err
	}
	return nil
}

func (s *promptVersionService) Get(ctx context.Context, id uuid.UUID) (*types.PromptVersion, error) {
	const op = "Prompt.Get"
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing id", nil)
	}
	v, err := s.repos.Versions.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if v == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("prompt version not found: %s", id), nil)
	}
	return v, nil
}

func (s *promptVersionService) GetWithFamily(ctx context.Context, id uuid.UUID) (VersionWithFamily, error) {
	lin, err := s.lineage(ctx, "Prompt.GetWithFamily", id)
	if err != nil {
		return VersionWithFamily{}, err
	}
	return VersionWithFamily{
		Version: lin.Member(id),
		Root:    lin.Root,
		Family:  lin.Sorted(),
	}, nil
}

func (s *promptVersionService) GetByKey(ctx context.Context, projectID uuid.UUID, key string) (*types.PromptVersion, error) {
	const op = "Prompt.GetByKey"
	key = prompt.NormalizeKey(key)
	if projectID == uuid.Nil || key == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "project_id and key are required", nil)
	}
	v, err := s.repos.Versions.GetByProjectKey(dbctx.New(ctx), projectID, key)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if v == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no prompt with key %q", key), nil)
	}
	return v, nil
}

func (s *promptVersionService) GetCurrentByKey(ctx context.Context, projectID uuid.UUID, key string) (*types.PromptVersion, error) {
	v, err := s.GetByKey(ctx, projectID, key)
	if err != nil {
		return nil, err
	}
	return s.ResolveCurrent(ctx, v.ID)
}

// ResolveCurrent returns the active member of id's family. A family with more
// than one active member resolves to the highest version.
func (s *promptVersionService) ResolveCurrent(ctx context.Context, id uuid.UUID) (*types.PromptVersion, error) {
	const op = "Prompt.ResolveCurrent"
	lin, err := s.lineage(ctx, op, id)
	if err != nil {
		return nil, err
	}
	return s.current(op, lin)
}

func (s *promptVersionService) current(op string, lin family.Lineage) (*types.PromptVersion, error) {
	active := lin.Active()
	switch len(active) {
	case 0:
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no active version in family %s", lin.Root.ID), nil)
	case 1:
		return active[0], nil
	}
	best := active[0]
	for _, v := range active[1:] {
		if v.Version > best.Version {
			best = v
		}
	}
	s.log.Error("Family has more than one active version",
		"family_root_id", lin.Root.ID,
		"active", len(active),
		"resolved_id", best.ID,
	)
	return best, nil
}

func (s *promptVersionService) History(ctx context.Context, id uuid.UUID, activityLimit int) (PromptHistory, error) {
	const op = "Prompt.History"
	lin, err := s.lineage(ctx, op, id)
	if err != nil {
		return PromptHistory{}, err
	}
	if activityLimit <= 0 {
		activityLimit = defaultActivityLimit
	}
	trail, err := s.repos.Activities.ListByFamilyRoot(dbctx.New(ctx), lin.Root.ID, activityLimit)
	if err != nil {
		return PromptHistory{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	out := PromptHistory{
		Root:     lin.Root,
		Versions: lin.Sorted(),
		Activity: trail,
	}
	if cur, err := s.current(op, lin); err == nil {
		out.Current = cur
	}
	return out, nil
}

func (s *promptVersionService) ListProjectPrompts(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*types.PromptVersion, error) {
	const op = "Prompt.ListProjectPrompts"
	if err := s.requireProject(ctx, op, projectID); err != nil {
		return nil, err
	}
	out, err := s.repos.Versions.ListActiveByProject(dbctx.New(ctx), projectID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return out, nil
}

func (s *promptVersionService) Search(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*types.PromptVersion, error) {
	const op = "Prompt.Search"
	if err := s.requireProject(ctx, op, projectID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "query is required", nil)
	}
	out, err := s.repos.Versions.SearchActive(dbctx.New(ctx), projectID, query, clampLimit(limit))
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return out, nil
}

func (s *promptVersionService) CountProjectPrompts(ctx context.Context, projectID uuid.UUID) (int64, error) {
	const op = "Prompt.CountProjectPrompts"
	if err := s.requireProject(ctx, op, projectID); err != nil {
		return 0, err
	}
	n, err := s.repos.Versions.CountActiveByProject(dbctx.New(ctx), projectID)
	if err != nil {
		return 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return n, nil
}

func (s *promptVersionService) lineage(ctx context.Context, op string, id uuid.UUID) (family.Lineage, error) {
	if id == uuid.Nil {
		return family.Lineage{}, domainagg.NewError(domainagg.CodeValidation, op, "missing id", nil)
	}
	lin, err := s.family.Family(dbctx.New(ctx), id)
	if err != nil {
		if domainagg.CodeOf(err) != "" {
			return family.Lineage{}, err
		}
		return family.Lineage{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return lin, nil
}

func (s *promptVersionService) requireProject(ctx context.Context, op string, projectID uuid.UUID) error {
	if projectID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing project_id", nil)
	}
	p, err := s.repos.Projects.GetByID(dbctx.New(ctx), projectID)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if p == nil {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %s", projectID), nil)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

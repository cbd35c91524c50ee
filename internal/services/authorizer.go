package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/data/repos"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
)

// Authorizer decides whether actor may mutate prompts in a project. Its
// errors are returned to the caller unchanged.
type Authorizer interface {
	AuthorizeProject(ctx context.Context, actor, projectID uuid.UUID) error
}

// AllowAll performs no checks; the surrounding layer already authorized.
type AllowAll struct{}

func (AllowAll) AuthorizeProject(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// OwnerAuthorizer only lets a project's owner mutate its prompts.
type OwnerAuthorizer struct {
	Projects repos.ProjectRepo
}

func (a OwnerAuthorizer) AuthorizeProject(ctx context.Context, actor, projectID uuid.UUID) error {
	const op = "Prompt.Authorize"
	if actor == uuid.Nil {
		return domainagg.NotAuthorized(op, "actor required")
	}
	p, err := a.Projects.GetByID(dbctx.New(ctx), projectID)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if p == nil {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %s", projectID), nil)
	}
	if p.OwnerID != actor {
		return domainagg.NotAuthorized(op, "actor does not own project")
	}
	return nil
}

package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
)

var PromptFamilyAggregateContract = Contract{
	Name:      "Prompt.FamilyAggregate",
	TxOwner:   TxOwnedByAggregate,
	LockScope: "project row (FOR SHARE), then prompt_version root row (FOR UPDATE)",
	Invariants: []string{
		"exactly one active member per family",
		"child version = parent version + 1",
		"(project_id, key) unique",
	},
	Emits: []string{
		activity.ActionCreate,
		activity.ActionUpdate,
		activity.ActionCreateVersion,
		activity.ActionSetActive,
		activity.ActionDelete,
	},
}

// PromptFamilyAggregate owns the prompt version-chain invariants.
//
// Write failures are *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeDuplicateKey, CodeInvalidVersion,
// CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type PromptFamilyAggregate interface {
	Aggregate

	// Create starts a new family with an active version 1.
	Create(ctx context.Context, in CreatePromptInput) (MutationResult, error)

	// Update edits the active version in place, or appends a new active
	// version when in.CreateNewVersion is set.
	//
	// Only the active member of a family accepts an in-place edit. Superseded
	// versions are read-only history; targeting one without CreateNewVersion
	// fails with CodeConflict and leaves the family unchanged.
	Update(ctx context.Context, in UpdatePromptInput) (MutationResult, error)

	// SetActive makes the target the only active member of its family.
	SetActive(ctx context.Context, in SetActiveInput) (MutationResult, error)

	// DeleteFamily removes every member of the target's family.
	DeleteFamily(ctx context.Context, in DeleteFamilyInput) (DeleteFamilyResult, error)
}

type CreatePromptInput struct {
	ProjectID   uuid.UUID
	Key         string
	Name        string
	Description string
	SystemText  string
	UserText    string
	Actor       uuid.UUID
}

type UpdatePromptInput struct {
	ID               uuid.UUID
	Patch            types.PromptPatch
	CreateNewVersion bool
	// BranchFromInactive allows a new version to descend from a member that
	// is no longer active. Without it such a source is treated as stale and
	// the write fails with CodeConflict.
	BranchFromInactive bool
	Actor              uuid.UUID
}

type SetActiveInput struct {
	ID    uuid.UUID
	Actor uuid.UUID
}

type DeleteFamilyInput struct {
	ID    uuid.UUID
	Actor uuid.UUID
}

// MutationResult is returned by every successful write. Warnings carries
// non-fatal problems, such as a failed audit emission, that happened after
// the write committed.
type MutationResult struct {
	Version       *types.PromptVersion
	Previous      *types.PromptVersion
	FamilyRootID  uuid.UUID
	ChangedFields []string
	Warnings      []string
}

type DeleteFamilyResult struct {
	FamilyRootID uuid.UUID
	DeletedIDs   []uuid.UUID
	Warnings     []string
}

package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/data/family"
	"github.com/yungbote/promptchain-backend/internal/data/repos"
	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/domain/prompt"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

const (
	promptVersionTable = "prompt_version"
	// maxKeyAttempts bounds the suffix search for a free derived key.
	maxKeyAttempts = 50
)

type PromptFamilyAggregateDeps struct {
	Base BaseDeps

	Versions repos.PromptVersionRepo
	Projects repos.ProjectRepo
	Family   *family.Traverser
	Recorder activity.Recorder

	// Now is overridable in tests.
	Now func() time.Time
}

type promptFamilyAggregate struct {
	deps PromptFamilyAggregateDeps
	log  *logger.Logger
}

func NewPromptFamilyAggregate(deps PromptFamilyAggregateDeps) domainagg.PromptFamilyAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Family == nil && deps.Versions != nil {
		deps.Family = family.NewTraverser(deps.Versions, deps.Base.Log)
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &promptFamilyAggregate{
		deps: deps,
		log:  deps.Base.Log.With("aggregate", "PromptFamilyAggregate"),
	}
}

func (a *promptFamilyAggregate) Contract() domainagg.Contract {
	return domainagg.PromptFamilyAggregateContract
}

func (a *promptFamilyAggregate) configured(op string) error {
	if a.deps.Versions == nil || a.deps.Projects == nil || a.deps.Family == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "prompt family aggregate repos not configured", nil)
	}
	return nil
}

func (a *promptFamilyAggregate) Create(ctx context.Context, in domainagg.CreatePromptInput) (domainagg.MutationResult, error) {
	const op = "Prompt.Family.Create"
	var out domainagg.MutationResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.ProjectID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing project_id", nil)
	}
	key := prompt.NormalizeKey(in.Key)
	if err := prompt.ValidateKey(key); err != nil {
		return out, MapError(op, err)
	}
	name := strings.TrimSpace(in.Name)
	if err := (prompt.Patch{Name: &name, Description: &in.Description, UserText: &in.UserText}).Validate(); err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if err := prompt.ValidateSuccessor(nil, 1); err != nil {
		return out, MapError(op, err)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.lockProject(dbc, op, in.ProjectID); err != nil {
			return err
		}
		taken, err := a.deps.Versions.KeyExists(dbc, in.ProjectID, key)
		if err != nil {
			return err
		}
		if taken {
			return domainagg.NewError(domainagg.CodeDuplicateKey, op, fmt.Sprintf("key %q already exists in project", key), nil)
		}

		now := a.deps.Now()
		v, err := a.deps.Versions.Create(dbc, &types.PromptVersion{
			ProjectID:   in.ProjectID,
			Key:         key,
			Name:        name,
			Description: in.Description,
			SystemText:  in.SystemText,
			UserText:    in.UserText,
			Version:     1,
			IsActive:    true,
			CreatedBy:   actorPtr(in.Actor),
			UpdatedBy:   actorPtr(in.Actor),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		out = domainagg.MutationResult{Version: v, FamilyRootID: v.ID}
		return nil
	})
	if err != nil {
		return domainagg.MutationResult{}, err
	}

	out.Warnings = a.emit(ctx, op, activity.Event{
		Actor:        in.Actor,
		Kind:         activity.KindVersionCreated,
		Action:       activity.ActionCreate,
		SubjectID:    out.Version.ID,
		FamilyRootID: out.FamilyRootID,
		ProjectID:    out.Version.ProjectID,
		Version:      out.Version.Version,
		Key:          out.Version.Key,
	})
	return out, nil
}

func (a *promptFamilyAggregate) Update(ctx context.Context, in domainagg.UpdatePromptInput) (domainagg.MutationResult, error) {
	if in.CreateNewVersion {
		return a.createVersion(ctx, in)
	}
	return a.updateInPlace(ctx, in)
}

func (a *promptFamilyAggregate) updateInPlace(ctx context.Context, in domainagg.UpdatePromptInput) (domainagg.MutationResult, error) {
	const op = "Prompt.Family.Update"
	var out domainagg.MutationResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.ID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing id", nil)
	}
	if err := in.Patch.Validate(); err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		target, root, err := a.lockFamilyOf(dbc, op, in.ID)
		if err != nil {
			return err
		}
		// History is immutable. An inactive target also means a concurrent
		// version superseded the one the caller was editing.
		if !target.IsActive {
			return ConflictError(fmt.Sprintf("version %d is not the active version; create a new version instead", target.Version))
		}

		updates, changed := in.Patch.Diff(target)
		if actor := actorPtr(in.Actor); actor != nil {
			updates["updated_by"] = *actor
		}
		if err := a.deps.Versions.UpdateFields(dbc, target.ID, updates); err != nil {
			return err
		}
		fresh, err := a.deps.Versions.GetByID(dbc, target.ID)
		if err != nil {
			return err
		}
		out = domainagg.MutationResult{
			Version:       fresh,
			FamilyRootID:  root.ID,
			ChangedFields: changed,
		}
		return nil
	})
	if err != nil {
		return domainagg.MutationResult{}, err
	}

	out.Warnings = a.emit(ctx, op, activity.Event{
		Actor:         in.Actor,
		Kind:          activity.KindUpdated,
		Action:        activity.ActionUpdate,
		SubjectID:     out.Version.ID,
		FamilyRootID:  out.FamilyRootID,
		ProjectID:     out.Version.ProjectID,
		Version:       out.Version.Version,
		Key:           out.Version.Key,
		ChangedFields: out.ChangedFields,
	})
	return out, nil
}

func (a *promptFamilyAggregate) createVersion(ctx context.Context, in domainagg.UpdatePromptInput) (domainagg.MutationResult, error) {
	const op = "Prompt.Family.CreateVersion"
	var out domainagg.MutationResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.ID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing id", nil)
	}
	if err := in.Patch.Validate(); err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		source, root, err := a.lockFamilyOf(dbc, op, in.ID)
		if err != nil {
			return err
		}
		members, err := a.deps.Family.CollectFamily(dbc, root)
		if err != nil {
			return err
		}
		if !source.IsActive && !in.BranchFromInactive {
			return ConflictError(fmt.Sprintf("version %d was superseded by a concurrent write", source.Version))
		}

		nextVersion := source.Version + 1
		if err := prompt.ValidateSuccessor(source, nextVersion); err != nil {
			return err
		}
		key, err := a.freeVersionKey(dbc, source.ProjectID, root.Key, nextVersion)
		if err != nil {
			return err
		}

		_, changed := in.Patch.Diff(source)
		next := in.Patch.Apply(*source)
		now := a.deps.Now()
		parentID := source.ID
		next.ID = uuid.Nil
		next.Key = key
		next.Version = nextVersion
		next.ParentID = &parentID
		next.IsActive = true
		next.CreatedBy = actorPtr(in.Actor)
		next.UpdatedBy = actorPtr(in.Actor)
		next.CreatedAt = now
		next.UpdatedAt = now

		// The sweep must land before the insert so the active-child index
		// never sees two active rows.
		if _, err := a.deps.Versions.DeactivateIDs(dbc, prompt.IDs(members), actorPtr(in.Actor)); err != nil {
			return err
		}
		created, err := a.deps.Versions.Create(dbc, &next)
		if err != nil {
			return err
		}
		active, err := a.deps.Versions.CountActive(dbc, append(prompt.IDs(members), created.ID))
		if err != nil {
			return err
		}
		if err := RequireSingleActive(active); err != nil {
			return err
		}

		prev, err := a.deps.Versions.GetByID(dbc, source.ID)
		if err != nil {
			return err
		}
		out = domainagg.MutationResult{
			Version:       created,
			Previous:      prev,
			FamilyRootID:  root.ID,
			ChangedFields: changed,
		}
		return nil
	})
	if err != nil {
		return domainagg.MutationResult{}, err
	}

	prevID := out.Previous.ID
	out.Warnings = a.emit(ctx, op, activity.Event{
		Actor:         in.Actor,
		Kind:          activity.KindVersionCreated,
		Action:        activity.ActionCreateVersion,
		SubjectID:     out.Version.ID,
		FamilyRootID:  out.FamilyRootID,
		ProjectID:     out.Version.ProjectID,
		Version:       out.Version.Version,
		PreviousID:    &prevID,
		Key:           out.Version.Key,
		ChangedFields: out.ChangedFields,
	})
	return out, nil
}

func (a *promptFamilyAggregate) SetActive(ctx context.Context, in domainagg.SetActiveInput) (domainagg.MutationResult, error) {
	const op = "Prompt.Family.SetActive"
	var out domainagg.MutationResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.ID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		target, root, err := a.lockFamilyOf(dbc, op, in.ID)
		if err != nil {
			return err
		}
		members, err := a.deps.Family.CollectFamily(dbc, root)
		if err != nil {
			return err
		}

		var previous *types.PromptVersion
		others := make([]uuid.UUID, 0, 1)
		for _, m := range prompt.ActiveMembers(members) {
			if m.ID == target.ID {
				continue
			}
			if previous == nil || m.Version > previous.Version {
				previous = m
			}
			others = append(others, m.ID)
		}
		if _, err := a.deps.Versions.DeactivateIDs(dbc, others, actorPtr(in.Actor)); err != nil {
			return err
		}
		if !target.IsActive {
			updates := map[string]any{
				"is_active":  true,
				"updated_at": a.deps.Now(),
			}
			if actor := actorPtr(in.Actor); actor != nil {
				updates["updated_by"] = *actor
			}
			ok, err := a.deps.Base.CASGuard.UpdateByFlag(dbc, promptVersionTable, target.ID, "is_active", false, updates)
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "prompt version changed while activating"); err != nil {
				return err
			}
		}
		active, err := a.deps.Versions.CountActive(dbc, prompt.IDs(members))
		if err != nil {
			return err
		}
		if err := RequireSingleActive(active); err != nil {
			return err
		}

		fresh, err := a.deps.Versions.GetByID(dbc, target.ID)
		if err != nil {
			return err
		}
		out = domainagg.MutationResult{
			Version:      fresh,
			Previous:     previous,
			FamilyRootID: root.ID,
		}
		return nil
	})
	if err != nil {
		return domainagg.MutationResult{}, err
	}

	ev := activity.Event{
		Actor:        in.Actor,
		Kind:         activity.KindUpdated,
		Action:       activity.ActionSetActive,
		SubjectID:    out.Version.ID,
		FamilyRootID: out.FamilyRootID,
		ProjectID:    out.Version.ProjectID,
		Version:      out.Version.Version,
		Key:          out.Version.Key,
	}
	if out.Previous != nil {
		prevID := out.Previous.ID
		ev.PreviousID = &prevID
	}
	out.Warnings = a.emit(ctx, op, ev)
	return out, nil
}

func (a *promptFamilyAggregate) DeleteFamily(ctx context.Context, in domainagg.DeleteFamilyInput) (domainagg.DeleteFamilyResult, error) {
	const op = "Prompt.Family.Delete"
	var out domainagg.DeleteFamilyResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.ID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing id", nil)
	}

	var root *types.PromptVersion
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		_, r, err := a.lockFamilyOf(dbc, op, in.ID)
		if err != nil {
			return err
		}
		members, err := a.deps.Family.CollectFamily(dbc, r)
		if err != nil {
			return err
		}
		ids := prompt.IDs(members)
		n, err := a.deps.Versions.DeleteByIDs(dbc, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return ConflictError(fmt.Sprintf("deleted %d of %d family members", n, len(ids)))
		}
		root = r
		out = domainagg.DeleteFamilyResult{FamilyRootID: r.ID, DeletedIDs: ids}
		return nil
	})
	if err != nil {
		return domainagg.DeleteFamilyResult{}, err
	}

	out.Warnings = a.emit(ctx, op, activity.Event{
		Actor:        in.Actor,
		Kind:         activity.KindDeleted,
		Action:       activity.ActionDelete,
		SubjectID:    root.ID,
		FamilyRootID: root.ID,
		ProjectID:    root.ProjectID,
		Version:      root.Version,
		Key:          root.Key,
	})
	return out, nil
}

// lockProject takes the shared project lock every family write holds. Project
// deletion takes the same row exclusively, so the two never interleave.
func (a *promptFamilyAggregate) lockProject(dbc dbctx.Context, op string, id uuid.UUID) error {
	proj, err := a.deps.Projects.LockShared(dbc, id)
	if err != nil {
		return err
	}
	if proj == nil {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("project not found: %s", id), nil)
	}
	return nil
}

// lockFamilyOf resolves the family root of id, locks the owning project
// (shared) and the root row (exclusive) in that order, and then re-reads id so
// the caller sees state committed before the locks.
func (a *promptFamilyAggregate) lockFamilyOf(dbc dbctx.Context, op string, id uuid.UUID) (*types.PromptVersion, *types.PromptVersion, error) {
	root, err := a.deps.Family.FindRoot(dbc, id)
	if err != nil {
		return nil, nil, err
	}
	if err := a.lockProject(dbc, op, root.ProjectID); err != nil {
		return nil, nil, err
	}
	root, err = a.deps.Versions.LockByID(dbc, root.ID)
	if err != nil {
		return nil, nil, err
	}
	target := root
	if id != root.ID {
		target, err = a.deps.Versions.GetByID(dbc, id)
		if err != nil {
			return nil, nil, err
		}
		if target == nil {
			return nil, nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("prompt version not found: %s", id), nil)
		}
	}
	return target, root, nil
}

// freeVersionKey returns the first unused derived key for version.
func (a *promptFamilyAggregate) freeVersionKey(dbc dbctx.Context, projectID uuid.UUID, rootKey string, version int) (string, error) {
	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		key := prompt.VersionKey(rootKey, version, attempt)
		taken, err := a.deps.Versions.KeyExists(dbc, projectID, key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
	}
	return "", domainagg.NewError(domainagg.CodeDuplicateKey, "Prompt.Family.CreateVersion", fmt.Sprintf("no free key for %s v%d", rootKey, version), nil)
}

// emit hands ev to the recorder after commit. Failures are logged and
// returned as warnings; the write stays committed.
func (a *promptFamilyAggregate) emit(ctx context.Context, op string, ev activity.Event) []string {
	if a.deps.Recorder == nil {
		return nil
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = a.deps.Now()
	}
	if err := a.deps.Recorder.Record(ctx, ev); err != nil {
		a.deps.Base.Hooks.ObserveEmission(op, "failure")
		a.log.WithContext(ctx).Warn("Activity emission failed",
			"op", op,
			"subject_id", ev.SubjectID,
			"family_root_id", ev.FamilyRootID,
			"actor", ev.Actor,
			"error", err,
		)
		return []string{fmt.Sprintf("activity not recorded: %v", err)}
	}
	a.deps.Base.Hooks.ObserveEmission(op, "success")
	return nil
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

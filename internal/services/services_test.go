package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/promptchain-backend/internal/data/activitysink"
	"github.com/yungbote/promptchain-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/promptchain-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/promptchain-backend/internal/data/family"
	"github.com/yungbote/promptchain-backend/internal/data/repos"
	repotest "github.com/yungbote/promptchain-backend/internal/data/repos/testutil"
	types "github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/ctxutil"
	"github.com/yungbote/promptchain-backend/internal/pkg/pointers"
)

type fixture struct {
	db            *gorm.DB
	set           repos.Set
	prompts       PromptVersionService
	projects      ProjectService
	projectEvents *aggtest.CapturingRecorder
	project       *types.Project
}

func newFixture(t *testing.T, authorizer Authorizer) *fixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	tr := family.NewTraverser(set.Versions, log)
	agg := aggregates.NewPromptFamilyAggregate(aggregates.PromptFamilyAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log},
		Versions: set.Versions,
		Projects: set.Projects,
		Family:   tr,
		Recorder: activitysink.NewDBRecorder(set.Activities, log),
	})
	projectEvents := &aggtest.CapturingRecorder{}
	return &fixture{
		db:            db,
		set:           set,
		prompts:       NewPromptVersionService(log, set, tr, agg, authorizer),
		projects:      NewProjectService(db, log, set.Projects, projectEvents),
		projectEvents: projectEvents,
		project:       repotest.SeedProject(t, context.Background(), db),
	}
}

func (f *fixture) create(t *testing.T, ctx context.Context, key string) *types.PromptVersion {
	t.Helper()
	res, err := f.prompts.Create(ctx, domainagg.CreatePromptInput{
		ProjectID: f.project.ID,
		Key:       key,
		Name:      key,
		UserText:  "text for " + key,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", key, err)
	}
	return res.Version
}

func (f *fixture) newVersion(t *testing.T, ctx context.Context, id uuid.UUID) *types.PromptVersion {
	t.Helper()
	res, err := f.prompts.Update(ctx, domainagg.UpdatePromptInput{
		ID:               id,
		Patch:            types.PromptPatch{UserText: pointers.String("next " + id.String())},
		CreateNewVersion: true,
	})
	if err != nil {
		t.Fatalf("new version from %s: %v", id, err)
	}
	return res.Version
}

func TestGetAndGetWithFamily(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	v1 := f.create(t, ctx, "greeting")
	v2 := f.newVersion(t, ctx, v1.ID)
	v3 := f.newVersion(t, ctx, v2.ID)

	got, err := f.prompts.Get(ctx, v2.ID)
	if err != nil || got.ID != v2.ID {
		t.Fatalf("Get: v=%v err=%v", got, err)
	}
	if _, err := f.prompts.Get(ctx, uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if _, err := f.prompts.Get(ctx, uuid.Nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("Get nil id: %v", err)
	}

	vf, err := f.prompts.GetWithFamily(ctx, v3.ID)
	if err != nil {
		t.Fatalf("GetWithFamily: %v", err)
	}
	if vf.Version.ID != v3.ID || vf.Root.ID != v1.ID || len(vf.Family) != 3 {
		t.Fatalf("unexpected family view: %+v", vf)
	}
	for i, m := range vf.Family {
		if m.Version != i+1 {
			t.Fatalf("family not sorted by version: %d at %d", m.Version, i)
		}
	}
	if _, err := f.prompts.GetWithFamily(ctx, uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("GetWithFamily missing: %v", err)
	}
}

func TestGetByKeyAndCurrent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	v1 := f.create(t, ctx, "greeting")
	v2 := f.newVersion(t, ctx, v1.ID)

	got, err := f.prompts.GetByKey(ctx, f.project.ID, " Greeting ")
	if err != nil || got.ID != v1.ID {
		t.Fatalf("GetByKey exact record: v=%v err=%v", got, err)
	}
	cur, err := f.prompts.GetCurrentByKey(ctx, f.project.ID, "greeting")
	if err != nil || cur.ID != v2.ID {
		t.Fatalf("GetCurrentByKey: v=%v err=%v", cur, err)
	}
	if _, err := f.prompts.GetByKey(ctx, f.project.ID, "nope"); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("GetByKey missing: %v", err)
	}

	if _, err := f.prompts.SetActive(ctx, domainagg.SetActiveInput{ID: v1.ID}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	for _, id := range []uuid.UUID{v1.ID, v2.ID} {
		cur, err := f.prompts.ResolveCurrent(ctx, id)
		if err != nil || cur.ID != v1.ID {
			t.Fatalf("ResolveCurrent(%s): v=%v err=%v", id, cur, err)
		}
	}
}

func TestResolveCurrentAnomalies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	none := repotest.SeedChain(t, ctx, f.db, f.project.ID, "dormant", 2, 0)
	if _, err := f.prompts.ResolveCurrent(ctx, none[1].ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("family without active member: %v", err)
	}

	two := repotest.SeedChain(t, ctx, f.db, f.project.ID, "doubled", 3, 3)
	if err := f.db.Model(&types.PromptVersion{}).Where("id = ?", two[0].ID).Update("is_active", true).Error; err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	cur, err := f.prompts.ResolveCurrent(ctx, two[0].ID)
	if err != nil || cur.ID != two[2].ID {
		t.Fatalf("expected highest active version, got v=%v err=%v", cur, err)
	}
}

func TestHistoryIncludesActivityTrail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	v1 := f.create(t, ctx, "greeting")
	v2 := f.newVersion(t, ctx, v1.ID)
	if _, err := f.prompts.SetActive(ctx, domainagg.SetActiveInput{ID: v1.ID}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	h, err := f.prompts.History(ctx, v2.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h.Root.ID != v1.ID || h.Current == nil || h.Current.ID != v1.ID || len(h.Versions) != 2 {
		t.Fatalf("unexpected history: %+v", h)
	}
	if len(h.Activity) != 3 {
		t.Fatalf("expected 3 activity rows, got %d", len(h.Activity))
	}
	if h.Activity[0].Action != "create_prompt" || h.Activity[2].Action != "set_active" {
		t.Fatalf("activity order: %s .. %s", h.Activity[0].Action, h.Activity[2].Action)
	}
}

func TestProjectListingSearchAndCount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, ctx, "welcome_email")
	f.newVersion(t, ctx, a.ID)
	f.create(t, ctx, "farewell")

	list, err := f.prompts.ListProjectPrompts(ctx, f.project.ID, 0, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListProjectPrompts: n=%d err=%v", len(list), err)
	}
	for _, v := range list {
		if !v.IsActive {
			t.Fatalf("listing should only contain active versions")
		}
	}
	n, err := f.prompts.CountProjectPrompts(ctx, f.project.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountProjectPrompts: n=%d err=%v", n, err)
	}

	hits, err := f.prompts.Search(ctx, f.project.ID, "WELCOME", 10)
	if err != nil || len(hits) != 1 || hits[0].Version != 2 {
		t.Fatalf("Search: hits=%v err=%v", hits, err)
	}
	if _, err := f.prompts.Search(ctx, f.project.ID, "  ", 10); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("blank search: %v", err)
	}
	if _, err := f.prompts.ListProjectPrompts(ctx, uuid.New(), 10, 0); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown project: %v", err)
	}
}

func TestActorComesFromContext(t *testing.T) {
	f := newFixture(t, nil)
	actor := uuid.New()
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{Actor: actor})
	v := f.create(t, ctx, "greeting")
	if v.CreatedBy == nil || *v.CreatedBy != actor {
		t.Fatalf("created_by should come from context, got %v", v.CreatedBy)
	}
}

func TestOwnerAuthorizer(t *testing.T) {
	f := newFixture(t, nil)
	auth := OwnerAuthorizer{Projects: f.set.Projects}
	f.prompts = NewPromptVersionService(repotest.Logger(t), f.set,
		family.NewTraverser(f.set.Versions, repotest.Logger(t)),
		aggregates.NewPromptFamilyAggregate(aggregates.PromptFamilyAggregateDeps{
			Base:     aggregates.BaseDeps{DB: f.db},
			Versions: f.set.Versions,
			Projects: f.set.Projects,
		}),
		auth,
	)
	ctx := context.Background()
	owner := f.project.OwnerID

	res, err := f.prompts.Create(ctx, domainagg.CreatePromptInput{
		ProjectID: f.project.ID, Key: "greeting", Name: "g", UserText: "t", Actor: owner,
	})
	if err != nil {
		t.Fatalf("owner create: %v", err)
	}

	stranger := uuid.New()
	_, err = f.prompts.Update(ctx, domainagg.UpdatePromptInput{
		ID: res.Version.ID, Patch: types.PromptPatch{Name: pointers.String("x")}, Actor: stranger,
	})
	if !domainagg.IsCode(err, domainagg.CodeNotAuthorized) {
		t.Fatalf("stranger update: %v", err)
	}
	if _, err := f.prompts.SetActive(ctx, domainagg.SetActiveInput{ID: res.Version.ID}); !domainagg.IsCode(err, domainagg.CodeNotAuthorized) {
		t.Fatalf("anonymous set active: %v", err)
	}
	if _, err := f.prompts.DeleteFamily(ctx, domainagg.DeleteFamilyInput{ID: res.Version.ID, Actor: owner}); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestProjectService(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	p, err := f.projects.Create(ctx, " Marketing ", "Marketing", "emails", owner)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Key != "marketing" || p.OwnerID != owner {
		t.Fatalf("unexpected project: %+v", p)
	}
	if ev, ok := f.projectEvents.Last(); !ok || ev.Action != activity.ActionCreateProject || ev.SubjectID != p.ID || ev.Actor != owner {
		t.Fatalf("create_project not recorded: %+v", ev)
	}
	if _, err := f.projects.Create(ctx, "marketing", "Again", "", owner); !domainagg.IsCode(err, domainagg.CodeDuplicateKey) {
		t.Fatalf("duplicate project key: %v", err)
	}
	if _, err := f.projects.Create(ctx, "ok", "", "", owner); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing name: %v", err)
	}
	if _, err := f.projects.Create(ctx, "ok", "n", "", uuid.Nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing owner: %v", err)
	}

	byKey, err := f.projects.GetByKey(ctx, "MARKETING")
	if err != nil || byKey.ID != p.ID {
		t.Fatalf("GetByKey: %v %v", byKey, err)
	}
	mine, err := f.projects.List(ctx, owner)
	if err != nil || len(mine) != 1 {
		t.Fatalf("List: n=%d err=%v", len(mine), err)
	}

	chain := repotest.SeedChain(t, ctx, f.db, p.ID, "doomed", 2, 2)
	f.projectEvents.Reset()
	if err := f.projects.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ev, ok := f.projectEvents.Last()
	if !ok || ev.Kind != activity.KindProjectDeleted || ev.Action != activity.ActionDeleteProject || ev.SubjectID != p.ID || ev.Key != "marketing" {
		t.Fatalf("delete_project not recorded: %+v", ev)
	}
	if _, err := f.prompts.Get(ctx, chain[1].ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("versions should be deleted with the project: %v", err)
	}
	if err := f.projects.Delete(ctx, p.ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := f.projects.Get(ctx, p.ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Get deleted: %v", err)
	}
	if n := len(f.projectEvents.Events()); n != 1 {
		t.Fatalf("failed deletes must not emit, got %d events", n)
	}
}

func TestProjectServiceUpdate(t *testing.T) {
	f := newFixture(t, nil)
	actor := uuid.New()
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{Actor: actor})

	got, err := f.projects.Update(ctx, UpdateProjectInput{
		ID:          f.project.ID,
		Name:        pointers.String(" Renamed "),
		Description: pointers.String("new description"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "Renamed" || got.Description != "new description" || got.Key != f.project.Key {
		t.Fatalf("unexpected project: %+v", got)
	}
	ev, ok := f.projectEvents.Last()
	if !ok || ev.Action != activity.ActionUpdateProject || ev.Actor != actor || len(ev.ChangedFields) != 2 {
		t.Fatalf("update_project not recorded: %+v", ev)
	}

	f.projectEvents.Reset()
	if _, err := f.projects.Update(ctx, UpdateProjectInput{ID: f.project.ID}); err != nil {
		t.Fatalf("empty Update: %v", err)
	}
	if _, err := f.projects.Update(ctx, UpdateProjectInput{ID: f.project.ID, Name: pointers.String("  ")}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("blank name: %v", err)
	}
	if _, err := f.projects.Update(ctx, UpdateProjectInput{ID: uuid.New(), Name: pointers.String("x")}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing project: %v", err)
	}
	if n := len(f.projectEvents.Events()); n != 0 {
		t.Fatalf("no-op and failed updates must not emit, got %d", n)
	}
}

func TestProjectDeleteSurvivesRecorderFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.projectEvents.Err = errors.New("audit store down")

	if err := f.projects.Delete(ctx, f.project.ID); err != nil {
		t.Fatalf("Delete must commit despite recorder failure: %v", err)
	}
	if _, err := f.projects.Get(ctx, f.project.ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("project should be gone: %v", err)
	}
	if len(f.projectEvents.Events()) != 1 {
		t.Fatalf("recorder should have been called once")
	}
}

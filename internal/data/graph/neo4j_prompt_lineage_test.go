package graph

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
)

func lineageEvent(kind activity.Kind, action string) activity.Event {
	return activity.Event{
		ID:           uuid.New(),
		Actor:        uuid.New(),
		Kind:         kind,
		Action:       action,
		SubjectID:    uuid.New(),
		FamilyRootID: uuid.New(),
		ProjectID:    uuid.New(),
		Version:      2,
		Key:          "greeting-v2",
		OccurredAt:   time.Now(),
	}
}

func TestLineageStatements_VersionCreated(t *testing.T) {
	ev := lineageEvent(activity.KindVersionCreated, activity.ActionCreateVersion)
	prev := uuid.New()
	ev.PreviousID = &prev

	stmts := PromptLineageStatements(ev)
	if len(stmts) != 3 {
		t.Fatalf("want 3 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0].Cypher, "MERGE (v:PromptVersion {id: $id})") {
		t.Fatalf("first statement should upsert the version node:\n%s", stmts[0].Cypher)
	}
	if stmts[1].Params["previous_id"] != prev.String() || !strings.Contains(stmts[1].Cypher, "DERIVED_FROM") {
		t.Fatalf("second statement should link the source: %+v", stmts[1])
	}
	if _, leaked := stmts[0].Params["previous_id"]; leaked {
		t.Fatalf("base params must not be mutated")
	}
	if !strings.Contains(stmts[2].Cypher, "CURRENT") {
		t.Fatalf("last statement should move CURRENT")
	}
	if stmts[0].Params["version"] != int64(2) {
		t.Fatalf("version param should be int64, got %T", stmts[0].Params["version"])
	}
}

func TestLineageStatements_RootCreateHasNoEdge(t *testing.T) {
	ev := lineageEvent(activity.KindVersionCreated, activity.ActionCreate)
	ev.Version = 1
	if n := len(PromptLineageStatements(ev)); n != 2 {
		t.Fatalf("want 2 statements for a root, got %d", n)
	}
}

func TestLineageStatements_UpdatedAndDeleted(t *testing.T) {
	set := PromptLineageStatements(lineageEvent(activity.KindUpdated, activity.ActionSetActive))
	if len(set) != 1 || set[0].Cypher != cypherMoveCurrent {
		t.Fatalf("set_active should only move CURRENT: %+v", set)
	}

	upd := lineageEvent(activity.KindUpdated, activity.ActionUpdate)
	upd.ChangedFields = []string{"name"}
	stmts := PromptLineageStatements(upd)
	if len(stmts) != 1 || !strings.Contains(stmts[0].Cypher, "changed_fields") {
		t.Fatalf("update should stamp changed fields: %+v", stmts)
	}

	del := PromptLineageStatements(lineageEvent(activity.KindDeleted, activity.ActionDelete))
	if len(del) != 1 || !strings.Contains(del[0].Cypher, "DETACH DELETE") {
		t.Fatalf("delete should detach-delete the family: %+v", del)
	}
}

func TestLineageStatements_IgnoresIncompleteEvents(t *testing.T) {
	ev := lineageEvent(activity.KindUpdated, activity.ActionUpdate)
	ev.FamilyRootID = uuid.Nil
	if PromptLineageStatements(ev) != nil {
		t.Fatalf("events without a family root are skipped")
	}
	if err := ApplyPromptLineage(context.Background(), nil, ev); err != nil {
		t.Fatalf("nil client should be a no-op: %v", err)
	}
}

func TestLineageStatements_ProjectEvents(t *testing.T) {
	projectID := uuid.New()
	ev := activity.Event{
		Kind:      activity.KindProjectDeleted,
		Action:    activity.ActionDeleteProject,
		SubjectID: projectID,
		ProjectID: projectID,
	}
	stmts := PromptLineageStatements(ev)
	if len(stmts) != 1 || !strings.Contains(stmts[0].Cypher, "{project_id: $project_id}") {
		t.Fatalf("project delete should drop the project's nodes: %+v", stmts)
	}
	if stmts[0].Params["project_id"] != projectID.String() {
		t.Fatalf("project_id param: %v", stmts[0].Params)
	}

	ev.Kind, ev.Action = activity.KindProjectCreated, activity.ActionCreateProject
	if PromptLineageStatements(ev) != nil {
		t.Fatalf("project creation has no lineage")
	}
}

package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
	"github.com/yungbote/promptchain-backend/internal/platform/neo4jdb"
)

// Statement is one parameterised Cypher write.
type Statement struct {
	Cypher string
	Params map[string]any
}

const cypherMoveCurrent = `
MATCH (f:PromptFamily {id: $root_id})
MATCH (v:PromptVersion {id: $id})
OPTIONAL MATCH (f)-[c:CURRENT]->(:PromptVersion)
DELETE c
WITH f, v
MERGE (f)-[n:CURRENT]->(v)
SET n.synced_at = $synced_at, n.actor_id = $actor_id
`

var lineageSchema = []string{
	`CREATE CONSTRAINT prompt_family_id_unique IF NOT EXISTS FOR (f:PromptFamily) REQUIRE f.id IS UNIQUE`,
	`CREATE CONSTRAINT prompt_version_id_unique IF NOT EXISTS FOR (v:PromptVersion) REQUIRE v.id IS UNIQUE`,
	`CREATE INDEX prompt_version_family_root IF NOT EXISTS FOR (v:PromptVersion) ON (v.family_root_id)`,
	`CREATE INDEX prompt_version_project IF NOT EXISTS FOR (v:PromptVersion) ON (v.project_id)`,
}

// PromptLineageStatements projects one activity event onto the lineage graph:
// PromptFamily nodes own PromptVersion nodes, new versions point at their
// source through DERIVED_FROM, and CURRENT tracks the active member.
func PromptLineageStatements(ev activity.Event) []Statement {
	switch ev.Kind {
	case activity.KindProjectDeleted:
		if ev.ProjectID == uuid.Nil {
			return nil
		}
		return []Statement{{
			Cypher: `
OPTIONAL MATCH (v:PromptVersion {project_id: $project_id})
DETACH DELETE v
WITH count(*) AS removed
OPTIONAL MATCH (f:PromptFamily {project_id: $project_id})
DETACH DELETE f
`,
			Params: map[string]any{"project_id": ev.ProjectID.String()},
		}}
	case activity.KindProjectCreated, activity.KindProjectUpdated:
		return nil
	}
	if ev.SubjectID == uuid.Nil || ev.FamilyRootID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	occurred := ev.OccurredAt.UTC().Format(time.RFC3339Nano)
	base := map[string]any{
		"id":         ev.SubjectID.String(),
		"root_id":    ev.FamilyRootID.String(),
		"project_id": ev.ProjectID.String(),
		"key":        ev.Key,
		"version":    int64(ev.Version),
		"actor_id":   actorString(ev.Actor),
		"at":         occurred,
		"synced_at":  now,
	}

	switch ev.Kind {
	case activity.KindVersionCreated:
		stmts := []Statement{{
			Cypher: `
MERGE (f:PromptFamily {id: $root_id})
SET f.project_id = $project_id, f.synced_at = $synced_at
MERGE (v:PromptVersion {id: $id})
SET v.key = $key, v.version = $version, v.family_root_id = $root_id,
    v.project_id = $project_id, v.created_at = $at, v.created_by = $actor_id,
    v.synced_at = $synced_at
MERGE (v)-[r:IN_FAMILY]->(f)
SET r.synced_at = $synced_at
`,
			Params: base,
		}}
		if ev.PreviousID != nil && *ev.PreviousID != uuid.Nil {
			stmts = append(stmts, Statement{
				Cypher: `
MATCH (v:PromptVersion {id: $id})
MERGE (p:PromptVersion {id: $previous_id})
MERGE (v)-[d:DERIVED_FROM]->(p)
SET d.created_at = $at, d.synced_at = $synced_at
`,
				Params: with(base, "previous_id", ev.PreviousID.String()),
			})
		}
		return append(stmts, Statement{Cypher: cypherMoveCurrent, Params: base})

	case activity.KindUpdated:
		if ev.Action == activity.ActionSetActive {
			return []Statement{{Cypher: cypherMoveCurrent, Params: base}}
		}
		return []Statement{{
			Cypher: `
MATCH (v:PromptVersion {id: $id})
SET v.updated_at = $at, v.updated_by = $actor_id, v.changed_fields = $changed_fields,
    v.synced_at = $synced_at
`,
			Params: with(base, "changed_fields", append([]string{}, ev.ChangedFields...)),
		}}

	case activity.KindDeleted:
		return []Statement{{
			Cypher: `
OPTIONAL MATCH (v:PromptVersion {family_root_id: $root_id})
DETACH DELETE v
WITH count(*) AS removed
OPTIONAL MATCH (f:PromptFamily {id: $root_id})
DETACH DELETE f
`,
			Params: base,
		}}
	}
	return nil
}

// EnsurePromptLineageSchema creates constraints and indexes. Failures are
// logged and ignored.
func EnsurePromptLineageSchema(ctx context.Context, client *neo4jdb.Client, log *logger.Logger) {
	if !client.Enabled() {
		return
	}
	session := client.WriteSession(ctx)
	defer session.Close(ctx)
	for _, q := range lineageSchema {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

// ApplyPromptLineage writes the projection of ev in one managed transaction.
// A nil client is a no-op.
func ApplyPromptLineage(ctx context.Context, client *neo4jdb.Client, ev activity.Event) error {
	if !client.Enabled() {
		return nil
	}
	stmts := PromptLineageStatements(ev)
	if len(stmts) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range stmts {
			res, err := tx.Run(ctx, s.Cypher, s.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func with(base map[string]any, key string, val any) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[key] = val
	return out
}

func actorString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

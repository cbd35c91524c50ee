package activitysink

import (
	"context"
	"fmt"

	"github.com/yungbote/promptchain-backend/internal/data/graph"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
	"github.com/yungbote/promptchain-backend/internal/platform/neo4jdb"
)

// LineageRecorder projects events onto the Neo4j prompt lineage graph. A nil
// client turns it into a no-op.
type LineageRecorder struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

var _ activity.Recorder = (*LineageRecorder)(nil)

func NewLineageRecorder(ctx context.Context, client *neo4jdb.Client, baseLog *logger.Logger) *LineageRecorder {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("recorder", "LineageRecorder")
	graph.EnsurePromptLineageSchema(ctx, client, log)
	return &LineageRecorder{client: client, log: log}
}

func (r *LineageRecorder) Record(ctx context.Context, ev activity.Event) error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := graph.ApplyPromptLineage(ctx, r.client, ev); err != nil {
		return fmt.Errorf("lineage projection for %s: %w", ev.SubjectID, err)
	}
	return nil
}

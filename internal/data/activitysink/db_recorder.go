package activitysink

import (
	"context"
	"fmt"

	"github.com/yungbote/promptchain-backend/internal/data/repos"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

// DBRecorder appends events to the activity table.
type DBRecorder struct {
	repo repos.ActivityRepo
	log  *logger.Logger
}

var _ activity.Recorder = (*DBRecorder)(nil)

func NewDBRecorder(repo repos.ActivityRepo, baseLog *logger.Logger) *DBRecorder {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &DBRecorder{repo: repo, log: baseLog.With("recorder", "DBRecorder")}
}

func (r *DBRecorder) Record(ctx context.Context, ev activity.Event) error {
	if r == nil || r.repo == nil {
		return fmt.Errorf("db recorder not initialized")
	}
	row, err := r.repo.CreateFromEvent(dbctx.New(ctx), ev)
	if err != nil {
		return fmt.Errorf("record activity %s: %w", ev.Kind, err)
	}
	r.log.Debug("Activity recorded", "id", row.ID, "kind", ev.Kind, "subject_id", ev.SubjectID)
	return nil
}

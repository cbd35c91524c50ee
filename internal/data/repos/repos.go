package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/promptchain-backend/internal/data/repos/activity"
	"github.com/yungbote/promptchain-backend/internal/data/repos/project"
	"github.com/yungbote/promptchain-backend/internal/data/repos/prompt"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

type PromptVersionRepo = prompt.PromptVersionRepo
type ProjectRepo = project.ProjectRepo
type ActivityRepo = activity.ActivityRepo

// Set is every table repo the engine uses, sharing one gorm handle.
type Set struct {
	Versions   PromptVersionRepo
	Projects   ProjectRepo
	Activities ActivityRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Versions:   prompt.NewPromptVersionRepo(db, log),
		Projects:   project.NewProjectRepo(db, log),
		Activities: activity.NewActivityRepo(db, log),
	}
}

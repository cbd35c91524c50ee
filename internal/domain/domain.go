package domain

import (
	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/domain/project"
	"github.com/yungbote/promptchain-backend/internal/domain/prompt"
)

type (
	PromptVersion = prompt.PromptVersion
	PromptPatch   = prompt.Patch
	Project       = project.Project
	Activity      = activity.Activity
	ActivityEvent = activity.Event
)

// Models lists every table owned by the engine, in migration order.
func Models() []interface{} {
	return []interface{}{
		&Project{},
		&PromptVersion{},
		&Activity{},
	}
}

func PromptVersionIDs(vs []*PromptVersion) []uuid.UUID { return prompt.IDs(vs) }

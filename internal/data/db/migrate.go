package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/promptchain-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsurePromptIndexes creates the partial indexes gorm tags cannot express
// portably. The statements are valid on both Postgres and SQLite.
func EnsurePromptIndexes(db *gorm.DB) error {
	// Two concurrent "new version from the same source" writes cannot both
	// leave an active child behind.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_prompt_version_active_child
		ON prompt_version (parent_id)
		WHERE is_active = true AND parent_id IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_prompt_version_active_child: %w", err)
	}

	// Current-version lookups per project.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prompt_version_active_by_project
		ON prompt_version (project_id, updated_at)
		WHERE is_active = true;
	`).Error; err != nil {
		return fmt.Errorf("create idx_prompt_version_active_by_project: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_family_root_created
		ON activity (family_root_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_activity_family_root_created: %w", err)
	}
	return nil
}

// Migrate runs table migration followed by the raw index statements.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return err
	}
	return EnsurePromptIndexes(db)
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsurePromptIndexes(s.db); err != nil {
		s.log.Error("Prompt index migration failed", "error", err)
		return err
	}
	return nil
}

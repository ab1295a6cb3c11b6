package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/guildops-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := EnsureQuestIndexes(db); err != nil {
		return err
	}
	return nil
}

// EnsureQuestIndexes creates indexes gorm tags cannot express. The statements
// are valid on both postgres and sqlite.
func EnsureQuestIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_quest_assignment_open_slot
		ON quest_assignment (blueprint_id, user_id, character_id)
		WHERE status IN ('ACTIVE', 'PAUSED');
	`).Error; err != nil {
		return fmt.Errorf("create idx_quest_assignment_open_slot: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_quest_progress_assignment_status
		ON quest_node_progress (assignment_id, status);
	`).Error; err != nil {
		return fmt.Errorf("create idx_quest_progress_assignment_status: %w", err)
	}
	return nil
}

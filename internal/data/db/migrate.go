package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/hathitrust/feed/internal/data/models"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PremisEvent{},
		&models.FeedQueueEntry{},
		&models.ErrorRecord{},
	)
}

// EnsureQueueIndexes adds the partial index ClaimNextRunnable relies on to
// scan only the rows outside the release-state set efficiently, mirroring
// the teacher's pattern of hand-written index migrations layered on top
// of AutoMigrate.
func EnsureQueueIndexes(db *gorm.DB, releaseStates []string) error {
	if len(releaseStates) == 0 {
		return nil
	}
	notIn := ""
	for i, s := range releaseStates {
		if i > 0 {
			notIn += ", "
		}
		notIn += fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", "''"))
	}
	stmt := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_feed_queue_runnable
		ON feed_queue (status, updated_at)
		WHERE status NOT IN (%s);
	`, notIn)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create idx_feed_queue_runnable: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll(releaseStates []string) error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureQueueIndexes(s.db, releaseStates); err != nil {
		s.log.Error("Queue index migration failed", "error", err)
		return err
	}
	return nil
}

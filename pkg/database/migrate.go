package database

import (
	"fmt"

	"rent360-scheduling-be/internal/model"

	"gorm.io/gorm"
)

// postgresIndexes use partial indexes, which only postgres supports. The unique
// one backs the single-open-instance rule at the storage level.
var postgresIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_service_instances_open_by_date
	 ON service_instances (scheduled_date)
	 WHERE status IN ('scheduled', 'in_progress');`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_service_instances_single_open
	 ON service_instances (agreement_id)
	 WHERE status IN ('scheduled', 'in_progress');`,
}

// AutoMigrate creates or updates the scheduling tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.RecurringAgreement{},
		&model.ServiceInstance{},
	)
}

// EnsurePostgresIndexes adds the partial indexes AutoMigrate cannot express.
func EnsurePostgresIndexes(db *gorm.DB) error {
	for _, sql := range postgresIndexes {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}

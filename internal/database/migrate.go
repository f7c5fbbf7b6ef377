package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// Migrate creates or updates the skill course tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Course{},
		&models.Round{},
		&models.Enrollment{},
		&models.ProjectSubmission{},
		&models.ProgressEvent{},
	)
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// ProgressEventRepository stores the progression audit trail.
type ProgressEventRepository interface {
	Create(ctx context.Context, event *models.ProgressEvent) error
	ListByEnrollment(ctx context.Context, enrollmentID uint, limit int) ([]models.ProgressEvent, error)
}

type progressEventRepository struct {
	db *gorm.DB
}

// NewProgressEventRepository constructs the repository.
func NewProgressEventRepository(db *gorm.DB) ProgressEventRepository {
	return &progressEventRepository{db: db}
}

func (r *progressEventRepository) Create(ctx context.Context, event *models.ProgressEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *progressEventRepository) ListByEnrollment(ctx context.Context, enrollmentID uint, limit int) ([]models.ProgressEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var events []models.ProgressEvent
	if err := r.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

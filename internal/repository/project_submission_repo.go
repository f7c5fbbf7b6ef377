package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// ProjectSubmissionRepository reads round 3 submissions. Writes go through
// EnrollmentRepository.Commit so they share the enrollment transaction.
type ProjectSubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.ProjectSubmission, error)
	ListByEnrollment(ctx context.Context, enrollmentID uint) ([]models.ProjectSubmission, error)
}

type projectSubmissionRepository struct {
	db *gorm.DB
}

// NewProjectSubmissionRepository instantiates the repository.
func NewProjectSubmissionRepository(db *gorm.DB) ProjectSubmissionRepository {
	return &projectSubmissionRepository{db: db}
}

func (r *projectSubmissionRepository) GetByID(ctx context.Context, id uint) (models.ProjectSubmission, error) {
	var submission models.ProjectSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.ProjectSubmission{}, err
	}

	return submission, nil
}

func (r *projectSubmissionRepository) ListByEnrollment(ctx context.Context, enrollmentID uint) ([]models.ProjectSubmission, error) {
	var submissions []models.ProjectSubmission
	if err := r.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("attempt DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

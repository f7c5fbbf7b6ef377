package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/progression"
)

// EnrollmentCommit bundles every write produced by one progression transition.
// It is applied atomically and only if the enrollment still has ExpectedVersion.
type EnrollmentCommit struct {
	Enrollment       *models.Enrollment
	ExpectedVersion  int
	CreateSubmission *models.ProjectSubmission
	UpdateSubmission *models.ProjectSubmission
}

// EnrollmentRepository persists enrollments with optimistic version checks.
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id uint) (models.Enrollment, error)
	GetByCourseAndStudent(ctx context.Context, courseID, studentID uint) (models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Enrollment, error)
	Commit(ctx context.Context, commit EnrollmentCommit) error
	Delete(ctx context.Context, enrollment models.Enrollment, invalidatedAt time.Time) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository instantiates the repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.Version == 0 {
		enrollment.Version = 1
	}
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *enrollmentRepository) GetByID(ctx context.Context, id uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).First(&enrollment, id).Error; err != nil {
		return models.Enrollment{}, err
	}

	return enrollment, nil
}

func (r *enrollmentRepository) GetByCourseAndStudent(ctx context.Context, courseID, studentID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}

	return enrollment, nil
}

func (r *enrollmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *enrollmentRepository) Commit(ctx context.Context, commit EnrollmentCommit) error {
	enrollment := commit.Enrollment
	previousActive := enrollment.ActiveSubmissionID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if commit.CreateSubmission != nil {
			if err := tx.Create(commit.CreateSubmission).Error; err != nil {
				return err
			}
			id := commit.CreateSubmission.ID
			enrollment.ActiveSubmissionID = &id
		}

		if commit.UpdateSubmission != nil {
			if err := tx.Save(commit.UpdateSubmission).Error; err != nil {
				return err
			}
		}

		enrollment.Version = commit.ExpectedVersion + 1
		result := tx.Model(enrollment).
			Where("version = ?", commit.ExpectedVersion).
			Select("*").
			Omit("id", "created_at").
			Updates(enrollment)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return progression.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		enrollment.Version = commit.ExpectedVersion
		enrollment.ActiveSubmissionID = previousActive
		if commit.CreateSubmission != nil {
			commit.CreateSubmission.ID = 0
		}
		return err
	}

	return nil
}

func (r *enrollmentRepository) Delete(ctx context.Context, enrollment models.Enrollment, invalidatedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ProjectSubmission{}).
			Where("enrollment_id = ? AND invalidated_at IS NULL", enrollment.ID).
			Update("invalidated_at", invalidatedAt).Error; err != nil {
			return err
		}

		result := tx.Where("version = ?", enrollment.Version).Delete(&models.Enrollment{}, enrollment.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return progression.ErrConcurrentModification
		}
		return nil
	})
}

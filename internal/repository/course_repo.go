package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// CourseFilter narrows course listings.
type CourseFilter struct {
	Status   *models.CourseStatus
	Category string
	Search   string
	Page     int
	PageSize int
}

// CourseRepository persists skill courses and their round definitions.
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpsertRound(ctx context.Context, round *models.Round) error
	CountEnrollments(ctx context.Context, courseID uint) (int64, error)
	CountScoredEnrollments(ctx context.Context, courseID uint, round int) (int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) withRounds(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Rounds", func(db *gorm.DB) *gorm.DB {
		return db.Order("number ASC")
	})
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(short_description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var courses []models.Course
	if err := query.Order("updated_at DESC").Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.withRounds(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(course).Error
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(course).Error
}

func (r *courseRepository) UpsertRound(ctx context.Context, round *models.Round) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Round
		err := tx.Where("course_id = ? AND number = ?", round.CourseID, round.Number).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(round).Error
		case err != nil:
			return err
		}

		round.ID = existing.ID
		round.CreatedAt = existing.CreatedAt
		return tx.Save(round).Error
	})
}

func (r *courseRepository) CountEnrollments(ctx context.Context, courseID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).Where("course_id = ?", courseID).Count(&total).Error
	return total, err
}

func (r *courseRepository) CountScoredEnrollments(ctx context.Context, courseID uint, round int) (int64, error) {
	column := ""
	switch round {
	case 2:
		column = "round2_score"
	case 4:
		column = "round4_score"
	default:
		return 0, nil
	}

	var total int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Where(column + " IS NOT NULL").
		Count(&total).Error
	return total, err
}

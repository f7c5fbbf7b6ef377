package models

import (
	"time"

	"gorm.io/datatypes"
)

// CourseStatus describes whether a skill course accepts enrollments.
type CourseStatus string

const (
	// CourseStatusDraft marks a course that is still being authored.
	CourseStatusDraft CourseStatus = "draft"
	// CourseStatusPublished marks a course open for enrollment.
	CourseStatusPublished CourseStatus = "published"
)

// RoundCount is the fixed number of rounds every skill course carries.
const RoundCount = 4

// Course is a gated four-round skill course.
type Course struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	Title            string       `gorm:"size:255;not null" json:"title"`
	ShortDescription string       `gorm:"type:text" json:"short_description"`
	Category         string       `gorm:"size:120;index" json:"category"`
	PassThreshold    int          `gorm:"not null" json:"pass_threshold"`
	Status           CourseStatus `gorm:"size:32;not null;index" json:"status"`
	AuthorID         uint         `gorm:"index" json:"author_id"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Rounds           []Round      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"rounds"`
}

// IsPublished reports whether the course accepts new enrollments.
func (c Course) IsPublished() bool {
	return c.Status == CourseStatusPublished
}

// Round returns the round definition for the given number, if defined.
func (c Course) Round(number int) (Round, bool) {
	for _, round := range c.Rounds {
		if round.Number == number {
			return round, true
		}
	}
	return Round{}, false
}

// RoundKind identifies the shape of a round payload.
type RoundKind string

const (
	RoundKindLearn     RoundKind = "learn"
	RoundKindQuiz      RoundKind = "quiz"
	RoundKindProject   RoundKind = "project"
	RoundKindFinalQuiz RoundKind = "final_quiz"
)

// RoundKindFor returns the kind fixed to a round number.
func RoundKindFor(number int) (RoundKind, bool) {
	switch number {
	case 1:
		return RoundKindLearn, true
	case 2:
		return RoundKindQuiz, true
	case 3:
		return RoundKindProject, true
	case 4:
		return RoundKindFinalQuiz, true
	default:
		return "", false
	}
}

// Round stores one of the four round definitions of a course. Content holds
// the kind specific payload as JSON.
type Round struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CourseID  uint           `gorm:"not null;uniqueIndex:idx_rounds_course_number" json:"course_id"`
	Number    int            `gorm:"not null;uniqueIndex:idx_rounds_course_number" json:"number"`
	Kind      RoundKind      `gorm:"size:32;not null" json:"kind"`
	Content   datatypes.JSON `gorm:"type:json" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

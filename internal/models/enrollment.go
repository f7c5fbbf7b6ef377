package models

import "time"

// Progress holds the authoritative gating flags of an enrollment.
type Progress struct {
	Round1Completed bool `gorm:"not null;default:false" json:"round1_completed"`
	Round2Completed bool `gorm:"not null;default:false" json:"round2_completed"`
	Round3Approved  bool `gorm:"not null;default:false" json:"round3_approved"`
	Round4Completed bool `gorm:"not null;default:false" json:"round4_completed"`
}

// CompletedCount returns how many of the four flags are set.
func (p Progress) CompletedCount() int {
	count := 0
	for _, flag := range []bool{p.Round1Completed, p.Round2Completed, p.Round3Approved, p.Round4Completed} {
		if flag {
			count++
		}
	}
	return count
}

// Enrollment is the per-student, per-course progress record.
type Enrollment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	CourseID           uint       `gorm:"not null;uniqueIndex:idx_enrollments_course_student" json:"course_id"`
	StudentID          uint       `gorm:"not null;uniqueIndex:idx_enrollments_course_student;index" json:"student_id"`
	Progress           Progress   `gorm:"embedded" json:"progress"`
	Round2Score        *int       `json:"round2_score"`
	Round4Score        *int       `json:"round4_score"`
	ActiveSubmissionID *uint      `json:"active_submission_id"`
	Version            int        `gorm:"not null;default:1" json:"version"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// QuizScore returns the recorded score for a quiz round.
func (e Enrollment) QuizScore(round int) *int {
	switch round {
	case 2:
		return e.Round2Score
	case 4:
		return e.Round4Score
	default:
		return nil
	}
}

// IsCompleted reports whether the final round has been passed.
func (e Enrollment) IsCompleted() bool {
	return e.Progress.Round4Completed
}

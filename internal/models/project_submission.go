package models

import "time"

// SubmissionStatus tracks the review lifecycle of a project submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
	SubmissionStatusRework   SubmissionStatus = "rework"
)

// ProjectSubmission is one round 3 project attempt. Older attempts are kept
// for audit once superseded.
type ProjectSubmission struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	EnrollmentID  uint             `gorm:"not null;index" json:"enrollment_id"`
	Attempt       int              `gorm:"not null;default:1" json:"attempt"`
	FileRef       string           `gorm:"size:1024;not null" json:"file_ref"`
	Description   string           `gorm:"type:text" json:"description"`
	Status        SubmissionStatus `gorm:"size:32;not null;index" json:"status"`
	Feedback      string           `gorm:"type:text" json:"feedback"`
	ReviewedBy    *uint            `json:"reviewed_by"`
	ReviewedAt    *time.Time       `json:"reviewed_at"`
	InvalidatedAt *time.Time       `json:"invalidated_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsPending reports whether the submission awaits a review verdict.
func (s ProjectSubmission) IsPending() bool {
	return s.Status == SubmissionStatusPending
}

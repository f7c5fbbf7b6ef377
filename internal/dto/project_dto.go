package dto

import (
	"time"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// ProjectSubmitRequest records a round 3 project attempt.
type ProjectSubmitRequest struct {
	FileRef     string `json:"file_ref" validate:"required,max=1024"`
	Description string `json:"description" validate:"max=5000"`
}

// ProjectReviewRequest carries a faculty verdict. Status must be approved, rejected or rework.
type ProjectReviewRequest struct {
	Status   string `json:"status" validate:"required"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

// ProjectSubmissionResponse is the serialized project submission.
type ProjectSubmissionResponse struct {
	ID            uint       `json:"id"`
	EnrollmentID  uint       `json:"enrollment_id"`
	Attempt       int        `json:"attempt"`
	FileRef       string     `json:"file_ref"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Feedback      string     `json:"feedback"`
	Active        bool       `json:"active"`
	ReviewedBy    *uint      `json:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewProjectSubmissionResponse converts a submission; activeID marks the enrollment's active submission.
func NewProjectSubmissionResponse(model models.ProjectSubmission, activeID *uint) ProjectSubmissionResponse {
	return ProjectSubmissionResponse{
		ID:            model.ID,
		EnrollmentID:  model.EnrollmentID,
		Attempt:       model.Attempt,
		FileRef:       model.FileRef,
		Description:   model.Description,
		Status:        string(model.Status),
		Feedback:      model.Feedback,
		Active:        activeID != nil && *activeID == model.ID,
		ReviewedBy:    model.ReviewedBy,
		ReviewedAt:    model.ReviewedAt,
		InvalidatedAt: model.InvalidatedAt,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewProjectSubmissionResponseSlice converts submission history.
func NewProjectSubmissionResponseSlice(submissions []models.ProjectSubmission, activeID *uint) []ProjectSubmissionResponse {
	responses := make([]ProjectSubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewProjectSubmissionResponse(submission, activeID))
	}
	return responses
}

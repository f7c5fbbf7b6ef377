package dto

import (
	"time"

	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/progression"
)

// QuizSubmitRequest carries the ordered answer indexes for a quiz round.
type QuizSubmitRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

// ProgressFlags mirrors the four gating flags.
type ProgressFlags struct {
	Round1Completed bool `json:"round1_completed"`
	Round2Completed bool `json:"round2_completed"`
	Round3Approved  bool `json:"round3_approved"`
	Round4Completed bool `json:"round4_completed"`
}

// EnrollmentResponse is the serialized enrollment record.
type EnrollmentResponse struct {
	ID                   uint          `json:"id"`
	CourseID             uint          `json:"course_id"`
	StudentID            uint          `json:"student_id"`
	Progress             ProgressFlags `json:"progress"`
	Round2Score          *int          `json:"round2_score"`
	Round4Score          *int          `json:"round4_score"`
	ActiveSubmissionID   *uint         `json:"active_submission_id"`
	CompletionPercentage int           `json:"completion_percentage"`
	Version              int           `json:"version"`
	CompletedAt          *time.Time    `json:"completed_at"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// QuizResultResponse reports a graded quiz attempt.
type QuizResultResponse struct {
	Round         int                `json:"round"`
	Score         int                `json:"score"`
	Passed        bool               `json:"passed"`
	PassThreshold int                `json:"pass_threshold"`
	Enrollment    EnrollmentResponse `json:"enrollment"`
}

// RoundStateResponse describes one round from the student's perspective.
type RoundStateResponse struct {
	Number int    `json:"number"`
	Kind   string `json:"kind"`
	State  string `json:"state"`
}

// ProgressResponse is the derived progress view of an enrollment.
type ProgressResponse struct {
	EnrollmentID         uint                       `json:"enrollment_id"`
	CourseID             uint                       `json:"course_id"`
	StudentID            uint                       `json:"student_id"`
	Flags                ProgressFlags              `json:"flags"`
	Round2Score          *int                       `json:"round2_score"`
	Round4Score          *int                       `json:"round4_score"`
	CompletionPercentage int                        `json:"completion_percentage"`
	Rounds               []RoundStateResponse       `json:"rounds"`
	ActiveSubmission     *ProjectSubmissionResponse `json:"active_submission"`
	CompletedAt          *time.Time                 `json:"completed_at"`
}

func newProgressFlags(p models.Progress) ProgressFlags {
	return ProgressFlags{
		Round1Completed: p.Round1Completed,
		Round2Completed: p.Round2Completed,
		Round3Approved:  p.Round3Approved,
		Round4Completed: p.Round4Completed,
	}
}

// NewEnrollmentResponse converts an enrollment model into a DTO.
func NewEnrollmentResponse(model models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:                   model.ID,
		CourseID:             model.CourseID,
		StudentID:            model.StudentID,
		Progress:             newProgressFlags(model.Progress),
		Round2Score:          model.Round2Score,
		Round4Score:          model.Round4Score,
		ActiveSubmissionID:   model.ActiveSubmissionID,
		CompletionPercentage: progression.CompletionPercentage(model.Progress),
		Version:              model.Version,
		CompletedAt:          model.CompletedAt,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}
}

// NewEnrollmentResponseSlice converts enrollment models into DTOs.
func NewEnrollmentResponseSlice(enrollments []models.Enrollment) []EnrollmentResponse {
	responses := make([]EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, NewEnrollmentResponse(enrollment))
	}
	return responses
}

// NewProgressResponse builds the progress view, recomputing every derived field.
func NewProgressResponse(enrollment models.Enrollment, active *models.ProjectSubmission) ProgressResponse {
	states := progression.RoundStates(enrollment, active)
	rounds := make([]RoundStateResponse, 0, len(states))
	for i, state := range states {
		kind, _ := models.RoundKindFor(i + 1)
		rounds = append(rounds, RoundStateResponse{Number: i + 1, Kind: string(kind), State: string(state)})
	}

	response := ProgressResponse{
		EnrollmentID:         enrollment.ID,
		CourseID:             enrollment.CourseID,
		StudentID:            enrollment.StudentID,
		Flags:                newProgressFlags(enrollment.Progress),
		Round2Score:          enrollment.Round2Score,
		Round4Score:          enrollment.Round4Score,
		CompletionPercentage: progression.CompletionPercentage(enrollment.Progress),
		Rounds:               rounds,
		CompletedAt:          enrollment.CompletedAt,
	}
	if active != nil {
		submission := NewProjectSubmissionResponse(*active, enrollment.ActiveSubmissionID)
		response.ActiveSubmission = &submission
	}
	return response
}

package dto

import (
	"time"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// ProgressEventResponse serializes an audit trail entry.
type ProgressEventResponse struct {
	EventID      string                 `json:"event_id"`
	Type         string                 `json:"type"`
	EnrollmentID uint                   `json:"enrollment_id"`
	CourseID     uint                   `json:"course_id"`
	StudentID    uint                   `json:"student_id"`
	Round        int                    `json:"round,omitempty"`
	ActorID      uint                   `json:"actor_id"`
	ActorRole    string                 `json:"actor_role"`
	Metadata     map[string]interface{} `json:"metadata"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// NewProgressEventResponse converts an event model.
func NewProgressEventResponse(model models.ProgressEvent) ProgressEventResponse {
	metadata := map[string]interface{}{}
	for key, value := range model.Metadata {
		metadata[key] = value
	}

	return ProgressEventResponse{
		EventID:      model.EventID,
		Type:         model.Type,
		EnrollmentID: model.EnrollmentID,
		CourseID:     model.CourseID,
		StudentID:    model.StudentID,
		Round:        model.Round,
		ActorID:      model.ActorID,
		ActorRole:    model.ActorRole,
		Metadata:     metadata,
		OccurredAt:   model.OccurredAt,
	}
}

// NewProgressEventResponseSlice converts event models.
func NewProgressEventResponseSlice(events []models.ProgressEvent) []ProgressEventResponse {
	responses := make([]ProgressEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, NewProgressEventResponse(event))
	}
	return responses
}

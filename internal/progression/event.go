package progression

import (
	"time"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// EventType names a committed progression fact.
type EventType string

const (
	EventEnrollmentCreated EventType = "enrollment.created"
	EventEnrollmentRemoved EventType = "enrollment.removed"
	EventRoundCompleted    EventType = "round.completed"
	EventQuizAttempted     EventType = "quiz.attempted"
	EventProjectSubmitted  EventType = "project.submitted"
	EventProjectReviewed   EventType = "project.reviewed"
	EventCourseCompleted   EventType = "course.completed"
)

// Event describes what a transition changed.
type Event struct {
	Type         EventType
	EnrollmentID uint
	CourseID     uint
	StudentID    uint
	Round        int
	Score        *int
	Passed       bool
	SubmissionID uint
	Status       models.SubmissionStatus
	OccurredAt   time.Time
}

// Metadata flattens the event payload for the audit log.
func (e Event) Metadata() map[string]interface{} {
	metadata := map[string]interface{}{}
	if e.Score != nil {
		metadata["score"] = *e.Score
		metadata["passed"] = e.Passed
	}
	if e.SubmissionID != 0 {
		metadata["submission_id"] = e.SubmissionID
	}
	if e.Status != "" {
		metadata["status"] = string(e.Status)
	}
	return metadata
}

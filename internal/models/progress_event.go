package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressEvent is an audit entry emitted for every committed progression transition.
type ProgressEvent struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	EventID      string            `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	Type         string            `gorm:"size:64;not null;index" json:"type"`
	EnrollmentID uint              `gorm:"not null;index" json:"enrollment_id"`
	CourseID     uint              `gorm:"not null;index" json:"course_id"`
	StudentID    uint              `gorm:"not null" json:"student_id"`
	Round        int               `json:"round"`
	ActorID      uint              `json:"actor_id"`
	ActorRole    string            `gorm:"size:32" json:"actor_role"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	OccurredAt   time.Time         `gorm:"not null;index" json:"occurred_at"`
}

package progression

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// ParseVerdict normalises a requested review outcome. Pending is not a verdict.
func ParseVerdict(value string) (models.SubmissionStatus, error) {
	switch models.SubmissionStatus(strings.ToLower(strings.TrimSpace(value))) {
	case models.SubmissionStatusApproved:
		return models.SubmissionStatusApproved, nil
	case models.SubmissionStatusRejected:
		return models.SubmissionStatusRejected, nil
	case models.SubmissionStatusRework:
		return models.SubmissionStatusRework, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// IsTerminal reports whether a submission can no longer change status.
// Rework is final for the submission itself; a new attempt continues the round.
func IsTerminal(status models.SubmissionStatus) bool {
	return status != models.SubmissionStatusPending
}

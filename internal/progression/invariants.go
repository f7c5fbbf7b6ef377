package progression

import (
	"fmt"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// CheckInvariants verifies that the enrollment flags agree with the recorded
// scores and the active submission. Thresholds are those in effect when the
// scores were recorded, so only structural relations are checked here; the
// score comparisons are done by the transition that sets each flag.
func CheckInvariants(enrollment models.Enrollment, active *models.ProjectSubmission) error {
	p := enrollment.Progress

	for _, score := range []*int{enrollment.Round2Score, enrollment.Round4Score} {
		if score != nil && (*score < 0 || *score > 100) {
			return fmt.Errorf("%w: score %d out of range", errInvariant, *score)
		}
	}
	if p.Round2Completed && (enrollment.Round2Score == nil || !p.Round1Completed) {
		return fmt.Errorf("%w: round 2 completed without a qualifying score", errInvariant)
	}
	if p.Round3Approved {
		if !p.Round2Completed {
			return fmt.Errorf("%w: round 3 approved before round 2", errInvariant)
		}
		if active == nil || active.Status != models.SubmissionStatusApproved {
			return fmt.Errorf("%w: round 3 approved without an approved submission", errInvariant)
		}
	}
	if p.Round4Completed && (!p.Round3Approved || enrollment.Round4Score == nil) {
		return fmt.Errorf("%w: round 4 completed without approval and score", errInvariant)
	}
	return nil
}

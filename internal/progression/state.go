package progression

import "github.com/noah-isme/gema-skills-api/internal/models"

// RoundState is the student facing state of a round.
type RoundState string

const (
	RoundLocked      RoundState = "locked"
	RoundAvailable   RoundState = "available"
	RoundUnderReview RoundState = "under_review"
	RoundRework      RoundState = "rework"
	RoundCompleted   RoundState = "completed"
)

// RoundStates derives the state of each round (index 0 is round 1) from the
// enrollment flags and its active project submission.
func RoundStates(enrollment models.Enrollment, active *models.ProjectSubmission) [models.RoundCount]RoundState {
	p := enrollment.Progress
	var states [models.RoundCount]RoundState

	states[0] = RoundAvailable
	if p.Round1Completed {
		states[0] = RoundCompleted
	}

	switch {
	case !p.Round1Completed:
		states[1] = RoundLocked
	case p.Round2Completed:
		states[1] = RoundCompleted
	default:
		states[1] = RoundAvailable
	}

	switch {
	case !p.Round2Completed:
		states[2] = RoundLocked
	case p.Round3Approved:
		states[2] = RoundCompleted
	case active == nil:
		states[2] = RoundAvailable
	default:
		switch active.Status {
		case models.SubmissionStatusPending:
			states[2] = RoundUnderReview
		case models.SubmissionStatusRework:
			states[2] = RoundRework
		case models.SubmissionStatusRejected:
			states[2] = RoundLocked
		default:
			// approved without the flag can only be observed mid-commit
			states[2] = RoundUnderReview
		}
	}

	switch {
	case !p.Round3Approved:
		states[3] = RoundLocked
	case p.Round4Completed:
		states[3] = RoundCompleted
	default:
		states[3] = RoundAvailable
	}

	return states
}

// StateOf returns the state of a single round number.
func StateOf(enrollment models.Enrollment, active *models.ProjectSubmission, round int) RoundState {
	if round < 1 || round > models.RoundCount {
		return RoundLocked
	}
	return RoundStates(enrollment, active)[round-1]
}

// CompletionPercentage is the share of the four gating flags that are set.
// It is always derived, never stored.
func CompletionPercentage(p models.Progress) int {
	return 100 * p.CompletedCount() / models.RoundCount
}

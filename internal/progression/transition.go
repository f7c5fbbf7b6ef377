package progression

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// ActionKind enumerates the mutations an enrollment accepts.
type ActionKind string

const (
	ActionCompleteLearn ActionKind = "complete_learn"
	ActionSubmitQuiz    ActionKind = "submit_quiz"
	ActionSubmitProject ActionKind = "submit_project"
	ActionReviewProject ActionKind = "review_project"
)

// Action is a requested mutation and its payload.
type Action struct {
	Kind ActionKind

	// quiz
	Round   int
	Answers []int

	// project submission
	FileRef     string
	Description string

	// project review
	Target     *models.ProjectSubmission
	Verdict    models.SubmissionStatus
	Feedback   string
	ReviewerID uint
}

// State is the snapshot a transition is evaluated against.
type State struct {
	Course     models.Course
	Enrollment models.Enrollment
	Active     *models.ProjectSubmission
}

// Result is the outcome of a permitted transition. Enrollment and Submission
// are copies; the input State is never mutated.
type Result struct {
	Enrollment models.Enrollment
	// Submission is the created or updated project submission, if any.
	Submission    *models.ProjectSubmission
	NewSubmission bool
	Score         *int
	Passed        bool
	// Noop is set when the action repeats an already applied outcome.
	Noop  bool
	Event Event
}

// Apply is the single transition function of the engine. All enrollment
// mutations go through it so the gating invariants are enforced in one place.
func Apply(state State, action Action, now time.Time) (Result, error) {
	var (
		result Result
		err    error
	)

	switch action.Kind {
	case ActionCompleteLearn:
		result, err = completeLearn(state, now)
	case ActionSubmitQuiz:
		result, err = submitQuiz(state, action, now)
	case ActionSubmitProject:
		result, err = submitProject(state, action, now)
	case ActionReviewProject:
		result, err = reviewProject(state, action, now)
	default:
		return Result{}, fmt.Errorf("%w: unknown action %q", ErrValidation, action.Kind)
	}
	if err != nil {
		return Result{}, err
	}

	if !result.Noop {
		active := state.Active
		if result.Submission != nil {
			active = result.Submission
		}
		if err := CheckInvariants(result.Enrollment, active); err != nil {
			return Result{}, err
		}
	}

	result.Event.EnrollmentID = state.Enrollment.ID
	result.Event.CourseID = state.Enrollment.CourseID
	result.Event.StudentID = state.Enrollment.StudentID
	result.Event.OccurredAt = now
	return result, nil
}

func completeLearn(state State, now time.Time) (Result, error) {
	enrollment := state.Enrollment
	if enrollment.Progress.Round1Completed {
		return Result{Enrollment: enrollment, Noop: true, Event: Event{Type: EventRoundCompleted, Round: 1}}, nil
	}

	enrollment.Progress.Round1Completed = true
	enrollment.UpdatedAt = now
	return Result{
		Enrollment: enrollment,
		Passed:     true,
		Event:      Event{Type: EventRoundCompleted, Round: 1},
	}, nil
}

func submitQuiz(state State, action Action, now time.Time) (Result, error) {
	if action.Round != 2 && action.Round != 4 {
		return Result{}, fmt.Errorf("%w: quizzes are rounds 2 and 4", ErrInvalidRound)
	}

	enrollment := state.Enrollment
	if StateOf(enrollment, state.Active, action.Round) != RoundAvailable {
		return Result{}, fmt.Errorf("%w: round %d", ErrRoundLocked, action.Round)
	}

	quiz, err := quizFor(state.Course, action.Round)
	if err != nil {
		return Result{}, err
	}

	score, err := Score(quiz.Questions, action.Answers)
	if err != nil {
		return Result{}, err
	}
	passed := Passed(score, state.Course.PassThreshold)

	event := Event{Type: EventQuizAttempted, Round: action.Round, Score: &score, Passed: passed}
	switch action.Round {
	case 2:
		enrollment.Round2Score = &score
		if passed {
			enrollment.Progress.Round2Completed = true
		}
	case 4:
		enrollment.Round4Score = &score
		if passed {
			enrollment.Progress.Round4Completed = true
			completedAt := now
			enrollment.CompletedAt = &completedAt
			event.Type = EventCourseCompleted
		}
	}
	enrollment.UpdatedAt = now

	return Result{
		Enrollment: enrollment,
		Score:      &score,
		Passed:     passed,
		Event:      event,
	}, nil
}

func submitProject(state State, action Action, now time.Time) (Result, error) {
	switch StateOf(state.Enrollment, state.Active, 3) {
	case RoundAvailable, RoundRework:
	case RoundUnderReview:
		return Result{}, ErrDuplicateSubmission
	default:
		return Result{}, fmt.Errorf("%w: round 3", ErrRoundLocked)
	}

	fileRef := strings.TrimSpace(action.FileRef)
	if fileRef == "" {
		return Result{}, fmt.Errorf("%w: file reference is required", ErrInvalidSubmission)
	}

	attempt := 1
	if state.Active != nil {
		attempt = state.Active.Attempt + 1
	}

	submission := &models.ProjectSubmission{
		EnrollmentID: state.Enrollment.ID,
		Attempt:      attempt,
		FileRef:      fileRef,
		Description:  action.Description,
		Status:       models.SubmissionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	enrollment := state.Enrollment
	enrollment.UpdatedAt = now

	return Result{
		Enrollment:    enrollment,
		Submission:    submission,
		NewSubmission: true,
		Event: Event{
			Type:   EventProjectSubmitted,
			Round:  3,
			Status: models.SubmissionStatusPending,
		},
	}, nil
}

func reviewProject(state State, action Action, now time.Time) (Result, error) {
	target := action.Target
	if target == nil {
		return Result{}, ErrSubmissionNotFound
	}

	verdict, err := ParseVerdict(string(action.Verdict))
	if err != nil {
		return Result{}, err
	}

	event := Event{Type: EventProjectReviewed, Round: 3, SubmissionID: target.ID, Status: verdict}

	if !target.IsPending() {
		if target.Status == verdict {
			current := *target
			return Result{Enrollment: state.Enrollment, Submission: &current, Noop: true, Event: event}, nil
		}
		return Result{}, ErrSubmissionAlreadyReviewed
	}

	if state.Active == nil || state.Active.ID != target.ID {
		// a pending submission that is not the active one was superseded
		return Result{}, ErrSubmissionAlreadyReviewed
	}

	reviewed := *target
	reviewed.Status = verdict
	reviewed.Feedback = action.Feedback
	reviewedAt := now
	reviewed.ReviewedAt = &reviewedAt
	if action.ReviewerID != 0 {
		reviewer := action.ReviewerID
		reviewed.ReviewedBy = &reviewer
	}
	reviewed.UpdatedAt = now

	enrollment := state.Enrollment
	if verdict == models.SubmissionStatusApproved {
		enrollment.Progress.Round3Approved = true
	}
	enrollment.UpdatedAt = now

	return Result{
		Enrollment: enrollment,
		Submission: &reviewed,
		Passed:     verdict == models.SubmissionStatusApproved,
		Event:      event,
	}, nil
}

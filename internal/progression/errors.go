package progression

import (
	"errors"
	"fmt"
)

// Error categories. Every engine error wraps exactly one of them so callers
// can decide how to report it with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrGatingViolation     = errors.New("gating violation")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrNotFound            = errors.New("not found")
)

var (
	ErrInvalidSubmission   = fmt.Errorf("%w: invalid submission", ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("%w: invalid review status", ErrValidation)
	ErrInvalidRound        = fmt.Errorf("%w: invalid round number", ErrValidation)
	ErrInvalidRoundContent = fmt.Errorf("%w: invalid round content", ErrValidation)
	ErrCourseIncomplete    = fmt.Errorf("%w: course must define all four rounds", ErrValidation)
)

var (
	ErrRoundLocked               = fmt.Errorf("%w: round locked", ErrGatingViolation)
	ErrDuplicateSubmission       = fmt.Errorf("%w: a project submission is already pending", ErrGatingViolation)
	ErrSubmissionAlreadyReviewed = fmt.Errorf("%w: submission already reviewed", ErrGatingViolation)
	ErrCourseNotPublished        = fmt.Errorf("%w: course not published", ErrGatingViolation)
	ErrAlreadyEnrolled           = fmt.Errorf("%w: student already enrolled", ErrGatingViolation)
	ErrCourseLocked              = fmt.Errorf("%w: course has recorded scores for this round", ErrGatingViolation)
)

// ErrConcurrentModification is returned when an enrollment changed between read and commit.
var ErrConcurrentModification = fmt.Errorf("%w: enrollment was modified concurrently", ErrConcurrencyConflict)

var (
	ErrCourseNotFound     = fmt.Errorf("%w: course", ErrNotFound)
	ErrRoundNotDefined    = fmt.Errorf("%w: round definition", ErrNotFound)
	ErrEnrollmentNotFound = fmt.Errorf("%w: enrollment", ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("%w: project submission", ErrNotFound)
)

// ErrForbidden signals that the actor may not operate on the target record.
var ErrForbidden = errors.New("forbidden")

// errInvariant marks a transition that would leave an enrollment inconsistent.
// It indicates a bug rather than bad input.
var errInvariant = errors.New("progression invariant violated")

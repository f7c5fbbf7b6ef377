package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/observability"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

// conflictRetries is the number of re-reads after an optimistic version conflict.
const conflictRetries = 1

// actionBuilder produces the action to apply against a freshly loaded snapshot.
type actionBuilder func(ctx context.Context, state progression.State) (progression.Action, error)

// progressionRunner performs the load, apply, commit cycle shared by every
// enrollment mutation.
type progressionRunner struct {
	catalog     CourseCatalog
	enrollments repository.EnrollmentRepository
	submissions repository.ProjectSubmissionRepository
	events      ProgressEventService
	logger      zerolog.Logger
	now         func() time.Time
}

type runOutcome struct {
	state  progression.State
	result progression.Result
}

func (r *progressionRunner) run(ctx context.Context, operation string, actor Actor, enrollmentID uint, build actionBuilder) (runOutcome, error) {
	for attempt := 0; ; attempt++ {
		outcome, err := r.runOnce(ctx, actor, enrollmentID, build)
		if err == nil {
			r.publish(ctx, actor, outcome)
			return outcome, nil
		}
		if !errors.Is(err, progression.ErrConcurrentModification) {
			return runOutcome{}, err
		}

		observability.EnrollmentConflicts().WithLabelValues(operation).Inc()
		if attempt >= conflictRetries {
			r.logger.Warn().
				Uint("enrollment_id", enrollmentID).
				Str("operation", operation).
				Msg("enrollment conflict persisted after retry")
			return runOutcome{}, err
		}
		r.logger.Debug().
			Uint("enrollment_id", enrollmentID).
			Str("operation", operation).
			Msg("retrying after enrollment conflict")
	}
}

func (r *progressionRunner) runOnce(ctx context.Context, actor Actor, enrollmentID uint, build actionBuilder) (runOutcome, error) {
	state, err := r.load(ctx, actor, enrollmentID)
	if err != nil {
		return runOutcome{}, err
	}

	action, err := build(ctx, state)
	if err != nil {
		return runOutcome{}, err
	}

	result, err := progression.Apply(state, action, r.now().UTC())
	if err != nil {
		return runOutcome{}, err
	}
	if result.Noop {
		return runOutcome{state: state, result: result}, nil
	}

	commit := repository.EnrollmentCommit{
		Enrollment:      &result.Enrollment,
		ExpectedVersion: state.Enrollment.Version,
	}
	if result.Submission != nil {
		if result.NewSubmission {
			commit.CreateSubmission = result.Submission
		} else {
			commit.UpdateSubmission = result.Submission
		}
	}

	if err := r.enrollments.Commit(ctx, commit); err != nil {
		return runOutcome{}, err
	}
	if result.NewSubmission && result.Submission != nil {
		result.Event.SubmissionID = result.Submission.ID
	}

	return runOutcome{state: state, result: result}, nil
}

// load reads the enrollment snapshot and verifies the actor may act on it.
func (r *progressionRunner) load(ctx context.Context, actor Actor, enrollmentID uint) (progression.State, error) {
	enrollment, err := r.loadEnrollment(ctx, actor, enrollmentID)
	if err != nil {
		return progression.State{}, err
	}

	course, err := r.catalog.Course(ctx, enrollment.CourseID)
	if err != nil {
		return progression.State{}, err
	}

	state := progression.State{Course: course, Enrollment: enrollment}
	if enrollment.ActiveSubmissionID != nil {
		active, err := r.submissions.GetByID(ctx, *enrollment.ActiveSubmissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return progression.State{}, progression.ErrSubmissionNotFound
			}
			return progression.State{}, err
		}
		state.Active = &active
	}

	return state, nil
}

func (r *progressionRunner) loadEnrollment(ctx context.Context, actor Actor, enrollmentID uint) (models.Enrollment, error) {
	enrollment, err := r.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrollment{}, progression.ErrEnrollmentNotFound
		}
		return models.Enrollment{}, err
	}

	if !actor.IsFaculty() && enrollment.StudentID != actor.ID {
		return models.Enrollment{}, progression.ErrForbidden
	}

	return enrollment, nil
}

func (r *progressionRunner) publish(ctx context.Context, actor Actor, outcome runOutcome) {
	if outcome.result.Noop || r.events == nil {
		return
	}
	if _, err := r.events.Publish(ctx, outcome.result.Event, actor); err != nil {
		r.logger.Warn().
			Err(err).
			Uint("enrollment_id", outcome.result.Event.EnrollmentID).
			Str("event", string(outcome.result.Event.Type)).
			Msg("failed to record progress event")
	}
}

package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/database"
	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

var (
	facultyActor = Actor{ID: 100, Role: RoleTeacher}
	studentActor = Actor{ID: 1, Role: RoleStudent}
	peerActor    = Actor{ID: 2, Role: RoleStudent}
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type skillsFixture struct {
	db          *gorm.DB
	courses     CourseService
	enrollments EnrollmentService
	projects    ProjectService
	events      ProgressEventService
	eventRepo   repository.ProgressEventRepository
}

func newSkillsFixture(t *testing.T) *skillsFixture {
	t.Helper()
	db := setupServiceDB(t)
	validate := validator.New()

	courses, err := NewCourseService(repository.NewCourseRepository(db), nil, 0, validate, testLogger())
	require.NoError(t, err)

	eventRepo := repository.NewProgressEventRepository(db)
	events := NewProgressEventService(eventRepo, nil, "", nil, testLogger())
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	submissionRepo := repository.NewProjectSubmissionRepository(db)

	return &skillsFixture{
		db:          db,
		courses:     courses,
		enrollments: NewEnrollmentService(courses, enrollmentRepo, submissionRepo, events, validate, testLogger()),
		projects:    NewProjectService(courses, enrollmentRepo, submissionRepo, events, validate, testLogger()),
		events:      events,
		eventRepo:   eventRepo,
	}
}

func quizPayload(t *testing.T, count int) json.RawMessage {
	t.Helper()
	questions := make([]progression.Question, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, progression.Question{
			Prompt:        "Question",
			Options:       []string{"a", "b", "c"},
			CorrectOption: i % 3,
		})
	}
	return mustJSON(t, map[string]interface{}{"questions": questions})
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// answersWithCorrect matches quizPayload: exactly `correct` answers hit the key.
func answersWithCorrect(total, correct int) []int {
	answers := make([]int, total)
	for i := 0; i < total; i++ {
		key := i % 3
		if i < correct {
			answers[i] = key
		} else {
			answers[i] = (key + 1) % 3
		}
	}
	return answers
}

// publishedCourse creates a course whose round 2 has five questions and round 4 has four.
func (f *skillsFixture) publishedCourse(t *testing.T, threshold int) dto.CourseResponse {
	t.Helper()
	ctx := context.Background()

	course, err := f.courses.Create(ctx, facultyActor, dto.CourseCreateRequest{
		Title:         "Go Basics",
		PassThreshold: &threshold,
		Category:      "programming",
	})
	require.NoError(t, err)

	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 1, mustJSON(t, map[string]string{"format": "text", "body": "Read me"}))
	require.NoError(t, err)
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 2, quizPayload(t, 5))
	require.NoError(t, err)
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 3, mustJSON(t, map[string]interface{}{"brief": "Build a CLI", "requirements": []string{"tests"}}))
	require.NoError(t, err)
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 4, quizPayload(t, 4))
	require.NoError(t, err)

	published, err := f.courses.Publish(ctx, facultyActor, course.ID)
	require.NoError(t, err)
	return published
}

func (f *skillsFixture) enroll(t *testing.T, courseID uint, actor Actor) dto.EnrollmentResponse {
	t.Helper()
	enrollment, err := f.enrollments.Enroll(context.Background(), actor, courseID, actor.ID)
	require.NoError(t, err)
	return enrollment
}

// toApprovedProject drives an enrollment through rounds 1 to 3.
func (f *skillsFixture) toApprovedProject(t *testing.T, enrollmentID uint) {
	t.Helper()
	ctx := context.Background()

	_, err := f.enrollments.CompleteRound1(ctx, studentActor, enrollmentID)
	require.NoError(t, err)
	_, err = f.enrollments.SubmitQuiz(ctx, studentActor, enrollmentID, 2, dto.QuizSubmitRequest{Answers: answersWithCorrect(5, 5)})
	require.NoError(t, err)
	submission, err := f.projects.SubmitProject(ctx, studentActor, enrollmentID, dto.ProjectSubmitRequest{FileRef: "https://files/cli.zip"})
	require.NoError(t, err)
	_, err = f.projects.ReviewProject(ctx, facultyActor, submission.ID, dto.ProjectReviewRequest{Status: "approved"})
	require.NoError(t, err)
}

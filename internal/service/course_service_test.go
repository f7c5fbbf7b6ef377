package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

func TestCourseServiceCreateSanitizesAndStartsDraft(t *testing.T) {
	f := newSkillsFixture(t)
	threshold := 70

	course, err := f.courses.Create(context.Background(), facultyActor, dto.CourseCreateRequest{
		Title:            "<b>Docker</b> Basics",
		ShortDescription: "<script>alert(1)</script>Containers",
		PassThreshold:    &threshold,
		Category:         "devops",
	})
	require.NoError(t, err)
	require.Equal(t, "Docker Basics", course.Title)
	require.Equal(t, "Containers", course.ShortDescription)
	require.Equal(t, "draft", course.Status)
	require.Equal(t, facultyActor.ID, course.AuthorID)
}

func TestCourseServiceCreateRequiresThreshold(t *testing.T) {
	f := newSkillsFixture(t)

	_, err := f.courses.Create(context.Background(), facultyActor, dto.CourseCreateRequest{Title: "Go", Category: "x"})
	require.Error(t, err)

	tooHigh := 101
	_, err = f.courses.Create(context.Background(), facultyActor, dto.CourseCreateRequest{Title: "Go Basics", Category: "x", PassThreshold: &tooHigh})
	require.Error(t, err)
}

func TestCourseServiceDefineRoundValidatesKind(t *testing.T) {
	f := newSkillsFixture(t)
	threshold := 60
	ctx := context.Background()

	course, err := f.courses.Create(ctx, facultyActor, dto.CourseCreateRequest{Title: "Go Basics", Category: "go", PassThreshold: &threshold})
	require.NoError(t, err)

	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 5, quizPayload(t, 2))
	require.ErrorIs(t, err, progression.ErrInvalidRound)

	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 2, mustJSON(t, map[string]string{"format": "text", "body": "x"}))
	require.ErrorIs(t, err, progression.ErrInvalidRoundContent)
	require.ErrorIs(t, err, progression.ErrValidation)

	badKey := mustJSON(t, map[string]interface{}{"questions": []map[string]interface{}{{
		"prompt": "Pick", "options": []string{"a", "b"}, "correct_option": 5,
	}}})
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 2, badKey)
	require.ErrorIs(t, err, progression.ErrInvalidRoundContent)

	round, err := f.courses.DefineRound(ctx, facultyActor, course.ID, 1, mustJSON(t, map[string]string{
		"format": "text",
		"body":   "<p>Intro</p><script>alert(1)</script>",
	}))
	require.NoError(t, err)
	require.Equal(t, "learn", round.Kind)
	require.NotNil(t, round.Learn)
	require.Equal(t, "<p>Intro</p>", round.Learn.Body)
}

func TestCourseServicePublishRequiresAllRounds(t *testing.T) {
	f := newSkillsFixture(t)
	threshold := 60
	ctx := context.Background()

	course, err := f.courses.Create(ctx, facultyActor, dto.CourseCreateRequest{Title: "Go Basics", Category: "go", PassThreshold: &threshold})
	require.NoError(t, err)
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 1, mustJSON(t, map[string]string{"format": "video", "url": "https://video"}))
	require.NoError(t, err)

	_, err = f.courses.Publish(ctx, facultyActor, course.ID)
	require.ErrorIs(t, err, progression.ErrCourseIncomplete)

	published := f.publishedCourse(t, 60)
	require.Equal(t, "published", published.Status)
	require.Len(t, published.Rounds, 4)
}

func TestCourseServiceHidesDraftsAndAnswersFromStudents(t *testing.T) {
	f := newSkillsFixture(t)
	threshold := 50
	ctx := context.Background()

	draft, err := f.courses.Create(ctx, facultyActor, dto.CourseCreateRequest{Title: "Draft course", Category: "go", PassThreshold: &threshold})
	require.NoError(t, err)
	published := f.publishedCourse(t, 60)

	_, err = f.courses.Get(ctx, studentActor, draft.ID)
	require.ErrorIs(t, err, progression.ErrCourseNotFound)

	view, err := f.courses.Get(ctx, studentActor, published.ID)
	require.NoError(t, err)
	quiz := view.Rounds[1]
	require.NotNil(t, quiz.Quiz)
	require.Nil(t, quiz.Quiz.Questions[0].CorrectOption)

	facultyView, err := f.courses.Get(ctx, facultyActor, published.ID)
	require.NoError(t, err)
	require.NotNil(t, facultyView.Rounds[1].Quiz.Questions[0].CorrectOption)

	list, err := f.courses.List(ctx, studentActor, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Total)
	require.Equal(t, published.ID, list.Items[0].ID)

	all, err := f.courses.List(ctx, facultyActor, dto.CourseListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), all.Total)
}

func TestCourseServiceLocksAnswerKeyOnceScored(t *testing.T) {
	f := newSkillsFixture(t)
	ctx := context.Background()
	course := f.publishedCourse(t, 60)
	enrollment := f.enroll(t, course.ID, studentActor)

	_, err := f.enrollments.CompleteRound1(ctx, studentActor, enrollment.ID)
	require.NoError(t, err)
	_, err = f.enrollments.SubmitQuiz(ctx, studentActor, enrollment.ID, 2, dto.QuizSubmitRequest{Answers: answersWithCorrect(5, 2)})
	require.NoError(t, err)

	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 2, quizPayload(t, 6))
	require.ErrorIs(t, err, progression.ErrCourseLocked)
	require.ErrorIs(t, err, progression.ErrGatingViolation)

	// same answer key, reworded prompt
	reworded := mustJSON(t, map[string]interface{}{"questions": func() []progression.Question {
		questions := make([]progression.Question, 0, 5)
		for i := 0; i < 5; i++ {
			questions = append(questions, progression.Question{Prompt: "Reworded", Options: []string{"x", "y", "z"}, CorrectOption: i % 3})
		}
		return questions
	}()})
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 2, reworded)
	require.NoError(t, err)

	// round 4 has no recorded scores yet
	_, err = f.courses.DefineRound(ctx, facultyActor, course.ID, 4, quizPayload(t, 3))
	require.NoError(t, err)
}

func TestCourseServiceThresholdChangeAppliesToLaterAttempts(t *testing.T) {
	f := newSkillsFixture(t)
	ctx := context.Background()
	course := f.publishedCourse(t, 60)
	enrollment := f.enroll(t, course.ID, studentActor)

	_, err := f.enrollments.CompleteRound1(ctx, studentActor, enrollment.ID)
	require.NoError(t, err)
	result, err := f.enrollments.SubmitQuiz(ctx, studentActor, enrollment.ID, 2, dto.QuizSubmitRequest{Answers: answersWithCorrect(5, 2)})
	require.NoError(t, err)
	require.False(t, result.Passed)

	lower := 40
	updated, err := f.courses.Update(ctx, facultyActor, course.ID, dto.CourseUpdateRequest{PassThreshold: &lower})
	require.NoError(t, err)
	require.Equal(t, 40, updated.PassThreshold)

	progress, err := f.enrollments.GetProgress(ctx, studentActor, enrollment.ID)
	require.NoError(t, err)
	require.False(t, progress.Flags.Round2Completed)

	result, err = f.enrollments.SubmitQuiz(ctx, studentActor, enrollment.ID, 2, dto.QuizSubmitRequest{Answers: answersWithCorrect(5, 2)})
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.Equal(t, 40, result.PassThreshold)
}

func TestCourseServiceCatalogCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	db := setupServiceDB(t)
	svc, err := NewCourseService(repository.NewCourseRepository(db), redisClient, time.Minute, validator.New(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	threshold := 60
	created, err := svc.Create(ctx, facultyActor, dto.CourseCreateRequest{Title: "Cached course", Category: "go", PassThreshold: &threshold})
	require.NoError(t, err)

	course, err := svc.Course(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Cached course", course.Title)
	require.True(t, server.Exists(courseCacheKey(created.ID)))

	// the cached copy is served even when the row changes underneath
	require.NoError(t, db.Exec("UPDATE courses SET title = ? WHERE id = ?", "Changed", created.ID).Error)
	cached, err := svc.Course(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Cached course", cached.Title)

	title := "Renamed course"
	_, err = svc.Update(ctx, facultyActor, created.ID, dto.CourseUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.False(t, server.Exists(courseCacheKey(created.ID)))

	fresh, err := svc.Course(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed course", fresh.Title)

	_, err = svc.Course(ctx, 9999)
	require.ErrorIs(t, err, progression.ErrCourseNotFound)
}

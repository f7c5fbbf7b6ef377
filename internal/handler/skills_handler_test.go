package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/config"
	"github.com/noah-isme/gema-skills-api/internal/database"
	"github.com/noah-isme/gema-skills-api/internal/handler"
	"github.com/noah-isme/gema-skills-api/internal/repository"
	"github.com/noah-isme/gema-skills-api/internal/router"
	"github.com/noah-isme/gema-skills-api/internal/service"
)

const (
	teacherID = "100"
	studentID = "1"
	peerID    = "2"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

type memoryStorage struct {
	stored []string
}

func (m *memoryStorage) Store(_ context.Context, owner, name, resourceType string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://cdn.test/%s/%s/%s", resourceType, owner, name)
	m.stored = append(m.stored, url)
	return url, nil
}

// testIdentity stands in for the JWT middleware, reading the caller from headers.
func testIdentity(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user_id", uint(id))
		c.Locals("user_role", c.Get("X-Test-Role"))
	}
	return c.Next()
}

func setupSkillsApp(t *testing.T) (*fiber.App, *memoryStorage) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	submissionRepo := repository.NewProjectSubmissionRepository(db)

	courses, err := service.NewCourseService(repository.NewCourseRepository(db), nil, 0, validate, logger)
	require.NoError(t, err)
	events := service.NewProgressEventService(repository.NewProgressEventRepository(db), nil, "", nil, logger)
	enrollments := service.NewEnrollmentService(courses, enrollmentRepo, submissionRepo, events, validate, logger)
	projects := service.NewProjectService(courses, enrollmentRepo, submissionRepo, events, validate, logger)

	storage := &memoryStorage{}
	artifacts := service.NewArtifactService(storage, 1, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Skills Test", AppEnv: "test", JWTSecret: "secret"}, router.Dependencies{
		CourseHandler:     handler.NewCourseHandler(courses, enrollments, logger),
		EnrollmentHandler: handler.NewEnrollmentHandler(enrollments, projects, logger),
		ProjectHandler:    handler.NewProjectHandler(projects, logger),
		ArtifactHandler:   handler.NewArtifactHandler(artifacts, logger),
		StreamHandler:     handler.NewProgressStreamHandler(enrollments, events, logger),
		HealthProbes: []handler.HealthProbe{{
			Name: "sqlite",
			Check: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		}},
		JWTMiddleware: testIdentity,
	})

	return app, storage
}

func call(t *testing.T, app *fiber.App, method, path, userID, role string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func quizBody(count int) map[string]interface{} {
	questions := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, map[string]interface{}{
			"prompt":         fmt.Sprintf("Question %d", i+1),
			"options":        []string{"a", "b"},
			"correct_option": 0,
		})
	}
	return map[string]interface{}{"questions": questions}
}

func answers(total, correct int) []int {
	result := make([]int, total)
	for i := correct; i < total; i++ {
		result[i] = 1
	}
	return result
}

// createPublishedCourse authors a course with a five question round 2 and a four question round 4.
func createPublishedCourse(t *testing.T, app *fiber.App) uint {
	t.Helper()

	status, env := call(t, app, http.MethodPost, "/api/v2/skills/courses", teacherID, "teacher", map[string]interface{}{
		"title":          "Intro to Go",
		"pass_threshold": 60,
		"category":       "programming",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var course struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &course)
	require.Equal(t, "draft", course.Status)

	base := fmt.Sprintf("/api/v2/skills/courses/%d", course.ID)
	rounds := map[int]interface{}{
		1: map[string]string{"format": "text", "body": "Welcome"},
		2: quizBody(5),
		3: map[string]interface{}{"brief": "Build a CLI", "requirements": []string{"tests"}},
		4: quizBody(4),
	}
	for number := 1; number <= 4; number++ {
		status, env = call(t, app, http.MethodPut, fmt.Sprintf("%s/rounds/%d", base, number), teacherID, "teacher", rounds[number])
		require.Equal(t, http.StatusOK, status, env.Message)
	}

	status, env = call(t, app, http.MethodPost, base+"/publish", teacherID, "teacher", nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	return course.ID
}

func enrollStudent(t *testing.T, app *fiber.App, courseID uint) uint {
	t.Helper()
	status, env := call(t, app, http.MethodPost, fmt.Sprintf("/api/v2/skills/courses/%d/enrollments", courseID), studentID, "student", nil)
	require.Equal(t, http.StatusCreated, status, env.Message)

	var enrollment struct {
		ID uint `json:"id"`
	}
	decodeData(t, env, &enrollment)
	return enrollment.ID
}

func TestHealthReportsDependencies(t *testing.T) {
	app, _ := setupSkillsApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Skills Test", resp.Header.Get("X-Application"))

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var health handler.HealthResponse
	decodeData(t, env, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "up", health.Dependencies["sqlite"])
}

func TestSkillsFlowCompletesCourse(t *testing.T) {
	app, _ := setupSkillsApp(t)
	courseID := createPublishedCourse(t, app)
	enrollmentID := enrollStudent(t, app, courseID)
	base := fmt.Sprintf("/api/v2/skills/enrollments/%d", enrollmentID)

	status, env := call(t, app, http.MethodPost, base+"/quizzes/2", studentID, "student", map[string]interface{}{"answers": answers(5, 5)})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "round_locked", env.Code)

	status, _ = call(t, app, http.MethodPost, base+"/rounds/1/complete", studentID, "student", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, app, http.MethodPost, base+"/quizzes/2", studentID, "student", map[string]interface{}{"answers": answers(5, 2)})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "quiz not passed", env.Message)

	status, env = call(t, app, http.MethodPost, base+"/quizzes/2", studentID, "student", map[string]interface{}{"answers": answers(5, 3)})
	require.Equal(t, http.StatusOK, status)
	var quiz struct {
		Score  int  `json:"score"`
		Passed bool `json:"passed"`
	}
	decodeData(t, env, &quiz)
	require.Equal(t, 60, quiz.Score)
	require.True(t, quiz.Passed)

	status, env = call(t, app, http.MethodPost, base+"/projects", studentID, "student", map[string]string{"file_ref": "https://cdn.test/cli.zip"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var submission struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &submission)
	require.Equal(t, "pending", submission.Status)

	status, env = call(t, app, http.MethodPost, base+"/projects", studentID, "student", map[string]string{"file_ref": "https://cdn.test/cli-v2.zip"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "duplicate_submission", env.Code)

	reviewPath := fmt.Sprintf("/api/v2/skills/projects/%d/review", submission.ID)
	status, _ = call(t, app, http.MethodPatch, reviewPath, studentID, "student", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusForbidden, status)

	status, env = call(t, app, http.MethodPatch, reviewPath, teacherID, "teacher", map[string]string{"status": "approved", "feedback": "Nice"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = call(t, app, http.MethodPost, base+"/quizzes/4", studentID, "student", map[string]interface{}{"answers": answers(4, 3)})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = call(t, app, http.MethodGet, base+"/progress", studentID, "student", nil)
	require.Equal(t, http.StatusOK, status)
	var progress struct {
		CompletionPercentage int `json:"completion_percentage"`
		Rounds               []struct {
			State string `json:"state"`
		} `json:"rounds"`
		CompletedAt *string `json:"completed_at"`
	}
	decodeData(t, env, &progress)
	require.Equal(t, 100, progress.CompletionPercentage)
	require.NotNil(t, progress.CompletedAt)
	require.Len(t, progress.Rounds, 4)
	for _, round := range progress.Rounds {
		require.Equal(t, "completed", round.State)
	}

	status, env = call(t, app, http.MethodGet, base+"/events?limit=50", studentID, "student", nil)
	require.Equal(t, http.StatusOK, status)
	var events []struct {
		Type string `json:"type"`
	}
	decodeData(t, env, &events)
	require.NotEmpty(t, events)
}

func TestSkillsErrorMapping(t *testing.T) {
	app, _ := setupSkillsApp(t)

	status, env := call(t, app, http.MethodGet, "/api/v2/skills/courses/999", studentID, "student", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "course_not_found", env.Code)

	status, _ = call(t, app, http.MethodGet, "/api/v2/skills/courses", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPost, "/api/v2/skills/courses", studentID, "student", map[string]interface{}{"title": "Nope"})
	require.Equal(t, http.StatusForbidden, status)

	status, env = call(t, app, http.MethodPost, "/api/v2/skills/courses", teacherID, "teacher", map[string]interface{}{"title": "No threshold", "category": "x"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "validation_error", env.Code)

	status, env = call(t, app, http.MethodPost, "/api/v2/skills/courses", teacherID, "teacher", map[string]interface{}{
		"title": "Draft course", "pass_threshold": 50, "category": "x",
	})
	require.Equal(t, http.StatusCreated, status)
	var draft struct {
		ID uint `json:"id"`
	}
	decodeData(t, env, &draft)

	status, env = call(t, app, http.MethodPost, fmt.Sprintf("/api/v2/skills/courses/%d/publish", draft.ID), teacherID, "teacher", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "course_incomplete", env.Code)

	status, env = call(t, app, http.MethodPut, fmt.Sprintf("/api/v2/skills/courses/%d/rounds/5", draft.ID), teacherID, "teacher", quizBody(2))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_round", env.Code)

	status, env = call(t, app, http.MethodPost, fmt.Sprintf("/api/v2/skills/courses/%d/enrollments", draft.ID), studentID, "student", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "course_not_published", env.Code)

	courseID := createPublishedCourse(t, app)
	enrollmentID := enrollStudent(t, app, courseID)

	status, env = call(t, app, http.MethodPost, fmt.Sprintf("/api/v2/skills/courses/%d/enrollments", courseID), studentID, "student", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "already_enrolled", env.Code)

	base := fmt.Sprintf("/api/v2/skills/enrollments/%d", enrollmentID)
	status, env = call(t, app, http.MethodGet, base+"/progress", peerID, "student", nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "forbidden", env.Code)

	status, _ = call(t, app, http.MethodPost, base+"/rounds/1/complete", studentID, "student", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, app, http.MethodPost, base+"/quizzes/2", studentID, "student", map[string]interface{}{"answers": answers(4, 4)})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "invalid_submission", env.Code)

	status, env = call(t, app, http.MethodPost, base+"/quizzes/3", studentID, "student", map[string]interface{}{"answers": answers(5, 5)})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_round", env.Code)

	status, _ = call(t, app, http.MethodDelete, base, studentID, "student", nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodDelete, base, teacherID, "teacher", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, app, http.MethodGet, base+"/progress", studentID, "student", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "enrollment_not_found", env.Code)
}

func TestCourseListHidesDraftsFromStudents(t *testing.T) {
	app, _ := setupSkillsApp(t)
	createPublishedCourse(t, app)

	status, _ := call(t, app, http.MethodPost, "/api/v2/skills/courses", teacherID, "teacher", map[string]interface{}{
		"title": "Work in progress", "pass_threshold": 70, "category": "design",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := call(t, app, http.MethodGet, "/api/v2/skills/courses", studentID, "student", nil)
	require.Equal(t, http.StatusOK, status)
	var courses []struct {
		Status string `json:"status"`
		Rounds []struct {
			Quiz *struct {
				Questions []map[string]interface{} `json:"questions"`
			} `json:"quiz"`
		} `json:"rounds"`
	}
	decodeData(t, env, &courses)
	require.Len(t, courses, 1)
	require.Equal(t, "published", courses[0].Status)
	for _, round := range courses[0].Rounds {
		if round.Quiz == nil {
			continue
		}
		for _, question := range round.Quiz.Questions {
			require.NotContains(t, question, "correct_option")
		}
	}

	status, env = call(t, app, http.MethodGet, "/api/v2/skills/courses", teacherID, "teacher", nil)
	require.Equal(t, http.StatusOK, status)
	var meta struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	require.Equal(t, 2, meta.Total)
}

func TestArtifactUploadIsStudentOnly(t *testing.T) {
	app, storage := setupSkillsApp(t)

	upload := func(userID, role, name string, content []byte) (int, envelope) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v2/skills/uploads", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("X-Test-User", userID)
		req.Header.Set("X-Test-Role", role)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		var env envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp.StatusCode, env
	}

	status, _ := upload(teacherID, "teacher", "notes.txt", []byte("plain text notes"))
	require.Equal(t, http.StatusForbidden, status)

	status, env := upload(studentID, "student", "page.html", []byte("<!DOCTYPE html><html><body>hi</body></html>"))
	require.Equal(t, http.StatusUnsupportedMediaType, status)
	require.Equal(t, "artifact_type_not_allowed", env.Code)

	status, env = upload(studentID, "student", "Notes.TXT", []byte("plain text notes"))
	require.Equal(t, http.StatusCreated, status, env.Message)
	require.Len(t, storage.stored, 1)
	require.Contains(t, storage.stored[0], "student-1")
}

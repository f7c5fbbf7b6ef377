package dto

import (
	"time"

	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/progression"
)

// CourseCreateRequest describes the payload for authoring a new skill course.
type CourseCreateRequest struct {
	Title            string `json:"title" validate:"required,min=3,max=255"`
	ShortDescription string `json:"short_description" validate:"max=2000"`
	PassThreshold    *int   `json:"pass_threshold" validate:"required,gte=0,lte=100"`
	Category         string `json:"category" validate:"required,max=120"`
}

// CourseUpdateRequest describes a partial course update.
type CourseUpdateRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=3,max=255"`
	ShortDescription *string `json:"short_description" validate:"omitempty,max=2000"`
	PassThreshold    *int    `json:"pass_threshold" validate:"omitempty,gte=0,lte=100"`
	Category         *string `json:"category" validate:"omitempty,max=120"`
}

// CourseListRequest captures list filters.
type CourseListRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=draft published"`
	Category string `query:"category"`
	Search   string `query:"search"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// CourseResponse is the serialized course including its round definitions.
type CourseResponse struct {
	ID               uint            `json:"id"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description"`
	Category         string          `json:"category"`
	PassThreshold    int             `json:"pass_threshold"`
	Status           string          `json:"status"`
	AuthorID         uint            `json:"author_id"`
	Rounds           []RoundResponse `json:"rounds"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CourseListResponse wraps a page of courses.
type CourseListResponse struct {
	Items    []CourseResponse `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// RoundResponse is a tagged variant: exactly one of Learn, Quiz or Project is set.
type RoundResponse struct {
	Number  int                   `json:"number"`
	Kind    string                `json:"kind"`
	Learn   *LearnRoundResponse   `json:"learn,omitempty"`
	Quiz    *QuizRoundResponse    `json:"quiz,omitempty"`
	Project *ProjectRoundResponse `json:"project,omitempty"`
}

// LearnRoundResponse exposes round 1 material.
type LearnRoundResponse struct {
	Format string `json:"format"`
	Body   string `json:"body,omitempty"`
	URL    string `json:"url,omitempty"`
}

// QuizRoundResponse exposes quiz questions. Correct options are only present for faculty.
type QuizRoundResponse struct {
	Questions []QuizQuestionResponse `json:"questions"`
}

// QuizQuestionResponse is one multiple choice question.
type QuizQuestionResponse struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption *int     `json:"correct_option,omitempty"`
}

// ProjectRoundResponse exposes the round 3 brief.
type ProjectRoundResponse struct {
	Brief        string   `json:"brief"`
	Requirements []string `json:"requirements"`
}

// NewCourseResponse converts a course model. Answer keys are included only when withAnswers is set.
func NewCourseResponse(model models.Course, withAnswers bool) CourseResponse {
	response := CourseResponse{
		ID:               model.ID,
		Title:            model.Title,
		ShortDescription: model.ShortDescription,
		Category:         model.Category,
		PassThreshold:    model.PassThreshold,
		Status:           string(model.Status),
		AuthorID:         model.AuthorID,
		Rounds:           make([]RoundResponse, 0, len(model.Rounds)),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}

	for _, round := range model.Rounds {
		content, err := progression.DecodeRound(round)
		if err != nil {
			continue
		}
		response.Rounds = append(response.Rounds, NewRoundResponse(round.Number, content, withAnswers))
	}

	return response
}

// NewRoundResponse converts typed round content.
func NewRoundResponse(number int, content progression.RoundContent, withAnswers bool) RoundResponse {
	response := RoundResponse{Number: number, Kind: string(content.Kind())}

	switch typed := content.(type) {
	case progression.LearnContent:
		response.Learn = &LearnRoundResponse{Format: typed.Format, Body: typed.Body, URL: typed.URL}
	case progression.QuizContent:
		questions := make([]QuizQuestionResponse, 0, len(typed.Questions))
		for _, question := range typed.Questions {
			item := QuizQuestionResponse{Prompt: question.Prompt, Options: question.Options}
			if withAnswers {
				correct := question.CorrectOption
				item.CorrectOption = &correct
			}
			questions = append(questions, item)
		}
		response.Quiz = &QuizRoundResponse{Questions: questions}
	case progression.ProjectContent:
		response.Project = &ProjectRoundResponse{Brief: typed.Brief, Requirements: typed.Requirements}
	}

	return response
}

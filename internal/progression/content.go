package progression

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

// RoundContent is the tagged variant carried by a round definition. Each
// implementation holds only the fields relevant to its round kind.
type RoundContent interface {
	Kind() models.RoundKind
}

// LearnContent is the round 1 material.
type LearnContent struct {
	Format string `json:"format"`
	Body   string `json:"body,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Question is a single multiple choice question.
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
}

// QuizContent is shared by round 2 and the round 4 final quiz.
type QuizContent struct {
	Final     bool       `json:"-"`
	Questions []Question `json:"questions"`
}

// ProjectContent is the round 3 brief.
type ProjectContent struct {
	Brief        string   `json:"brief"`
	Requirements []string `json:"requirements"`
}

func (LearnContent) Kind() models.RoundKind   { return models.RoundKindLearn }
func (ProjectContent) Kind() models.RoundKind { return models.RoundKindProject }

func (q QuizContent) Kind() models.RoundKind {
	if q.Final {
		return models.RoundKindFinalQuiz
	}
	return models.RoundKindQuiz
}

// AnswerKey returns the correct option index per question.
func (q QuizContent) AnswerKey() []int {
	key := make([]int, len(q.Questions))
	for i, question := range q.Questions {
		key[i] = question.CorrectOption
	}
	return key
}

// SameAnswerKey reports whether both quizzes score answers identically.
func (q QuizContent) SameAnswerKey(other QuizContent) bool {
	if len(q.Questions) != len(other.Questions) {
		return false
	}
	for i := range q.Questions {
		if q.Questions[i].CorrectOption != other.Questions[i].CorrectOption {
			return false
		}
		if len(q.Questions[i].Options) != len(other.Questions[i].Options) {
			return false
		}
	}
	return true
}

// ParseRoundContent decodes a raw payload for the given round number and checks
// the constraints that a JSON schema cannot express.
func ParseRoundContent(number int, raw []byte) (RoundContent, error) {
	kind, ok := models.RoundKindFor(number)
	if !ok {
		return nil, ErrInvalidRound
	}

	switch kind {
	case models.RoundKindLearn:
		var content LearnContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoundContent, err)
		}
		switch strings.ToLower(content.Format) {
		case "text":
			if strings.TrimSpace(content.Body) == "" {
				return nil, fmt.Errorf("%w: text lesson requires a body", ErrInvalidRoundContent)
			}
		case "video":
			if strings.TrimSpace(content.URL) == "" {
				return nil, fmt.Errorf("%w: video lesson requires a url", ErrInvalidRoundContent)
			}
		default:
			return nil, fmt.Errorf("%w: unknown lesson format %q", ErrInvalidRoundContent, content.Format)
		}
		content.Format = strings.ToLower(content.Format)
		return content, nil
	case models.RoundKindProject:
		var content ProjectContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoundContent, err)
		}
		if strings.TrimSpace(content.Brief) == "" {
			return nil, fmt.Errorf("%w: project brief is required", ErrInvalidRoundContent)
		}
		return content, nil
	default:
		var content QuizContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoundContent, err)
		}
		content.Final = kind == models.RoundKindFinalQuiz
		if len(content.Questions) == 0 {
			return nil, fmt.Errorf("%w: quiz requires at least one question", ErrInvalidRoundContent)
		}
		for i, question := range content.Questions {
			if len(question.Options) < 2 {
				return nil, fmt.Errorf("%w: question %d needs at least two options", ErrInvalidRoundContent, i+1)
			}
			if question.CorrectOption < 0 || question.CorrectOption >= len(question.Options) {
				return nil, fmt.Errorf("%w: question %d correct option out of range", ErrInvalidRoundContent, i+1)
			}
		}
		return content, nil
	}
}

// DecodeRound returns the typed content of a stored round.
func DecodeRound(round models.Round) (RoundContent, error) {
	return ParseRoundContent(round.Number, round.Content)
}

// quizFor returns the quiz definition of a course round.
func quizFor(course models.Course, number int) (QuizContent, error) {
	round, ok := course.Round(number)
	if !ok {
		return QuizContent{}, ErrRoundNotDefined
	}
	content, err := DecodeRound(round)
	if err != nil {
		return QuizContent{}, err
	}
	quiz, ok := content.(QuizContent)
	if !ok {
		return QuizContent{}, ErrInvalidRoundContent
	}
	return quiz, nil
}

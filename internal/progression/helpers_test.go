package progression

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-skills-api/internal/models"
)

func quizQuestions(count int) []Question {
	questions := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, Question{
			Prompt:        "Question",
			Options:       []string{"a", "b", "c"},
			CorrectOption: i % 3,
		})
	}
	return questions
}

func rawContent(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func testCourse(t *testing.T, threshold int) models.Course {
	t.Helper()
	return models.Course{
		ID:            7,
		Title:         "Go Basics",
		PassThreshold: threshold,
		Status:        models.CourseStatusPublished,
		Rounds: []models.Round{
			{Number: 1, Kind: models.RoundKindLearn, Content: rawContent(t, LearnContent{Format: "text", Body: "Read me"})},
			{Number: 2, Kind: models.RoundKindQuiz, Content: rawContent(t, QuizContent{Questions: quizQuestions(5)})},
			{Number: 3, Kind: models.RoundKindProject, Content: rawContent(t, ProjectContent{Brief: "Build a CLI", Requirements: []string{"tests"}})},
			{Number: 4, Kind: models.RoundKindFinalQuiz, Content: rawContent(t, QuizContent{Questions: quizQuestions(4)})},
		},
	}
}

// answersWithCorrect returns answers for quizQuestions(total) where exactly
// `correct` of them match the key.
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

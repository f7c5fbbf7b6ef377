package progression

import (
	"fmt"
	"math"
)

// Score grades answers against the quiz questions and returns a percentage in
// [0,100] rounded to the nearest integer.
func Score(questions []Question, answers []int) (int, error) {
	if len(questions) == 0 {
		return 0, fmt.Errorf("%w: quiz has no questions", ErrInvalidSubmission)
	}
	if len(answers) != len(questions) {
		return 0, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidSubmission, len(questions), len(answers))
	}

	correct := 0
	for i, answer := range answers {
		if answer < 0 || answer >= len(questions[i].Options) {
			return 0, fmt.Errorf("%w: answer %d out of range", ErrInvalidSubmission, i+1)
		}
		if answer == questions[i].CorrectOption {
			correct++
		}
	}

	return int(math.Round(100 * float64(correct) / float64(len(questions)))), nil
}

// Passed reports whether a score meets the pass threshold (inclusive).
func Passed(score, threshold int) bool {
	return score >= threshold
}

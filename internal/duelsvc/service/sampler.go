package service

import (
	"fmt"
	"math/rand"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// SampleQuestions draws count distinct questions from the bank with an
// unweighted permutation and copies them out, so later edits to the quiz
// cannot reach a running match.
func SampleQuestions(bank []models.Question, count int) ([]models.Question, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid sample size %d", count)
	}
	if len(bank) < count {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientQuestions, len(bank), count)
	}

	perm := rand.Perm(len(bank))
	sample := make([]models.Question, 0, count)
	for _, i := range perm[:count] {
		q := bank[i]
		q.Answers = append([]models.AnswerOption(nil), q.Answers...)
		sample = append(sample, q)
	}

	return sample, nil
}

package service

import (
	"context"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
	"github.com/quizwire/duel-services/internal/duelsvc/store"
)

type QuizService struct {
	quizStore *store.QuizStore
}

func NewQuizService(quizStore *store.QuizStore) *QuizService {
	return &QuizService{quizStore: quizStore}
}

// GetQuiz returns the quiz with its full question bank, or nil when unknown.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	return s.quizStore.GetQuizByID(ctx, quizID)
}

// ListQuizzes returns all quizzes for discovery.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]*models.Quiz, error) {
	return s.quizStore.ListQuizzes(ctx)
}

package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/quizwire/duel-services/internal/duelsvc/config"
	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

type fakeBroadcaster struct {
	mu      sync.Mutex
	matches []*models.Match
}

func (f *fakeBroadcaster) BroadcastMatch(m *models.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, m.Clone())
}

func (f *fakeBroadcaster) all() []*models.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Match(nil), f.matches...)
}

type fakePresence struct {
	mu      sync.Mutex
	offline map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{offline: make(map[string]bool)}
}

func (f *fakePresence) setOffline(socketID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline[socketID] = true
}

func (f *fakePresence) IsOnline(ctx context.Context, socketID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline[socketID]
}

type fakeQuizzes struct {
	quizzes map[string][]models.Question
}

func (f *fakeQuizzes) GetQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	bank, ok := f.quizzes[quizID]
	if !ok {
		return nil, nil
	}
	return &models.Quiz{Title: "quiz " + quizID, Questions: bank}, nil
}

func testConfig() config.Config {
	return config.Config{
		QuestionsPerMatch: 8,
		RoundSeconds:      10,
		MaxBonus:          10,
		ScoreFloor:        1,
		FeedbackDelay:     time.Second,
		SummaryDelay:      3500 * time.Millisecond,
		PresenceTimeout:   500 * time.Millisecond,
	}
}

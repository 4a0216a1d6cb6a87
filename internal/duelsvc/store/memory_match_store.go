package store

import (
	"context"
	"sync"
	"time"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// MemoryMatchStore keeps the match registry in process memory with the same
// conditional-write semantics as MatchStore. Suitable for single-node
// deployments and tests; the mutex only guards short map operations, all
// per-match conditions are evaluated inside it.
type MemoryMatchStore struct {
	mu      sync.Mutex
	matches map[string]*models.Match
}

func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{matches: make(map[string]*models.Match)}
}

func (s *MemoryMatchStore) Create(ctx context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *MemoryMatchStore) Get(ctx context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

func (s *MemoryMatchStore) FindActiveByPlayer(ctx context.Context, playerID int64) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.matches {
		if m.Status == models.StatusFinished {
			continue
		}
		if _, ok := m.SlotOf(playerID); ok {
			return m.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryMatchStore) FindWaitingByQuiz(ctx context.Context, quizID string, excludePlayerID int64) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Match
	for _, m := range s.matches {
		if m.Status == models.StatusWaiting && m.QuizID == quizID && m.Player1ID != excludePlayerID {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (s *MemoryMatchStore) JoinWaiting(ctx context.Context, id string, player2ID int64, now time.Time) (*models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusWaiting || m.Player2ID != nil {
		return nil, false, nil
	}

	m.Player2ID = &player2ID
	m.Status = models.StatusPlaying
	m.CurrentQuestionIndex = 0
	m.RoundStartTime = now
	m.UpdatedAt = now

	return m.Clone(), true, nil
}

func (s *MemoryMatchStore) RecordAnswer(ctx context.Context, id string, slot models.PlayerSlot, questionIndex, answerIndex, points int, summaryAt time.Time) (*models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusPlaying || m.CurrentQuestionIndex != questionIndex {
		return nil, false, nil
	}

	switch slot {
	case models.SlotPlayer1:
		if m.Player1AnswerIndex != nil {
			return nil, false, nil
		}
		ai := answerIndex
		m.Player1AnswerIndex = &ai
		m.Player1Score += points
	case models.SlotPlayer2:
		if m.Player2AnswerIndex != nil {
			return nil, false, nil
		}
		ai := answerIndex
		m.Player2AnswerIndex = &ai
		m.Player2Score += points
	default:
		return nil, false, nil
	}

	if m.BothAnswered() {
		at := summaryAt
		m.PendingTransition = models.TransitionShowSummary
		m.NextTransitionAt = &at
	}
	m.UpdatedAt = time.Now()

	return m.Clone(), true, nil
}

func (s *MemoryMatchStore) BeginSummary(ctx context.Context, id string, questionIndex int, advanceAt time.Time) (*models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusPlaying || m.CurrentQuestionIndex != questionIndex || !m.BothAnswered() {
		return nil, false, nil
	}

	at := advanceAt
	m.Status = models.StatusRoundSummary
	m.PendingTransition = models.TransitionNextRound
	m.NextTransitionAt = &at
	m.UpdatedAt = time.Now()

	return m.Clone(), true, nil
}

func (s *MemoryMatchStore) AdvanceRound(ctx context.Context, id string, nextIndex int, now time.Time) (*models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusRoundSummary || m.CurrentQuestionIndex != nextIndex-1 {
		return nil, false, nil
	}

	m.Status = models.StatusPlaying
	m.CurrentQuestionIndex = nextIndex
	m.Player1AnswerIndex = nil
	m.Player2AnswerIndex = nil
	m.RoundStartTime = now
	m.PendingTransition = models.TransitionNone
	m.NextTransitionAt = nil
	m.UpdatedAt = now

	return m.Clone(), true, nil
}

func (s *MemoryMatchStore) Finish(ctx context.Context, id string) (*models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status == models.StatusFinished {
		return nil, false, nil
	}

	m.Status = models.StatusFinished
	m.PendingTransition = models.TransitionNone
	m.NextTransitionAt = nil
	m.UpdatedAt = time.Now()

	return m.Clone(), true, nil
}

func (s *MemoryMatchStore) DeleteWaiting(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.StatusWaiting {
		return false, nil
	}

	delete(s.matches, id)
	return true, nil
}

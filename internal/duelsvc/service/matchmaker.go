package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/quizwire/duel-services/internal/duelsvc/config"
	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// Matchmaker pairs a (player, quiz) request with a waiting opponent or parks
// the player in a fresh WAITING match.
type Matchmaker struct {
	registry  MatchRegistry
	quizzes   QuizFetcher
	presence  PresenceChecker
	broadcast Broadcaster
	cfg       config.Config
	clock     clockwork.Clock
}

func NewMatchmaker(registry MatchRegistry, quizzes QuizFetcher, presence PresenceChecker,
	broadcast Broadcaster, cfg config.Config, clock clockwork.Clock) *Matchmaker {
	return &Matchmaker{
		registry:  registry,
		quizzes:   quizzes,
		presence:  presence,
		broadcast: broadcast,
		cfg:       cfg,
		clock:     clock,
	}
}

type JoinResult struct {
	MatchID string `json:"match_id"`
	Role    string `json:"role"`
	QuizID  string `json:"quiz_id"`
}

// Join finds or creates a match for the player. socketID is the caller's live
// connection handle, recorded for presence checks while the match waits.
func (mm *Matchmaker) Join(ctx context.Context, playerID int64, quizID, socketID string) (*JoinResult, error) {
	// A player occupies at most one live match. A stale solo wait is cleaned
	// up; a live game on the same quiz is an idempotent rejoin (page reload).
	active, err := mm.registry.FindActiveByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("lookup active match: %w", err)
	}
	if active != nil {
		if active.Status == models.StatusWaiting {
			if _, err := mm.registry.DeleteWaiting(ctx, active.ID); err != nil {
				return nil, fmt.Errorf("delete stale waiting match: %w", err)
			}
			log.Infof("removed stale waiting match %s for player %d", active.ID, playerID)
		} else if active.QuizID == quizID {
			slot, _ := active.SlotOf(playerID)
			return &JoinResult{MatchID: active.ID, Role: slot.Role(), QuizID: quizID}, nil
		} else {
			return nil, &AlreadyInMatchError{MatchID: active.ID}
		}
	}

	candidates, err := mm.registry.FindWaitingByQuiz(ctx, quizID, playerID)
	if err != nil {
		return nil, fmt.Errorf("scan waiting matches: %w", err)
	}

	for _, cand := range candidates {
		if !mm.presence.IsOnline(ctx, cand.Player1SocketID) {
			// Creator navigated away without leaving. Nobody can ever start
			// this match, so drop it and keep scanning.
			if _, err := mm.registry.DeleteWaiting(ctx, cand.ID); err != nil {
				log.Errorf("delete ghost match %s: %v", cand.ID, err)
			} else {
				log.Infof("ghost match %s removed (creator offline)", cand.ID)
			}
			continue
		}

		joined, ok, err := mm.registry.JoinWaiting(ctx, cand.ID, playerID, mm.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("join waiting match %s: %w", cand.ID, err)
		}
		if !ok {
			// Another joiner took the slot between scan and update.
			continue
		}

		mm.broadcast.BroadcastMatch(joined)
		log.Infof("match %s started: players %d vs %d", joined.ID, joined.Player1ID, playerID)
		return &JoinResult{MatchID: joined.ID, Role: models.SlotPlayer2.Role(), QuizID: quizID}, nil
	}

	return mm.createWaiting(ctx, playerID, quizID, socketID)
}

func (mm *Matchmaker) createWaiting(ctx context.Context, playerID int64, quizID, socketID string) (*JoinResult, error) {
	quiz, err := mm.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("fetch quiz %s: %w", quizID, err)
	}
	if quiz == nil {
		return nil, ErrQuizNotFound
	}

	questions, err := SampleQuestions(quiz.Questions, mm.cfg.QuestionsPerMatch)
	if err != nil {
		return nil, err
	}

	now := mm.clock.Now()
	m := &models.Match{
		ID:              uuid.New().String(),
		QuizID:          quizID,
		Player1ID:       playerID,
		Player1SocketID: socketID,
		Status:          models.StatusWaiting,
		Questions:       questions,
		RoundStartTime:  now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := mm.registry.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	log.Infof("match %s waiting: player %d on quiz %s", m.ID, playerID, quizID)
	return &JoinResult{MatchID: m.ID, Role: models.SlotPlayer1.Role(), QuizID: quizID}, nil
}

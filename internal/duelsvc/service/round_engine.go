package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/quizwire/duel-services/internal/duelsvc/config"
	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// RoundEngine drives one match through PLAYING -> ROUND_SUMMARY -> PLAYING ...
// -> FINISHED. Answers are scored here; the delayed transitions run on
// per-match timers and every write is conditional, so a timer firing against
// state that moved on (forfeit, concurrent instance) is a no-op.
type RoundEngine struct {
	registry  MatchRegistry
	broadcast Broadcaster
	cfg       config.Config
	clock     clockwork.Clock
	timers    *transitionTimers
}

func NewRoundEngine(registry MatchRegistry, broadcast Broadcaster, cfg config.Config, clock clockwork.Clock) *RoundEngine {
	return &RoundEngine{
		registry:  registry,
		broadcast: broadcast,
		cfg:       cfg,
		clock:     clock,
		timers:    newTransitionTimers(clock),
	}
}

// GetMatch reads a match, first replaying any delayed transition whose fire
// time already passed (a crashed instance leaves those behind).
func (e *RoundEngine) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return e.catchUp(ctx, m)
}

// SubmitAnswer records the player's answer for the current round exactly once
// and returns whether it was accepted. The answer index is validated against
// the frozen question snapshot; clients never report correctness themselves.
func (e *RoundEngine) SubmitAnswer(ctx context.Context, matchID string, playerID int64, answerIndex int) (bool, error) {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, ErrMatchNotFound
	}

	m, err = e.catchUp(ctx, m)
	if err != nil {
		return false, err
	}

	if m.Status == models.StatusFinished {
		return false, ErrTooLate
	}

	slot, ok := m.SlotOf(playerID)
	if !ok {
		return false, fmt.Errorf("player %d is not part of match %s", playerID, matchID)
	}

	if m.Status != models.StatusPlaying {
		// Between rounds; there is no open question to answer.
		return false, nil
	}

	points := e.scoreAnswer(m, answerIndex)
	summaryAt := e.clock.Now().Add(e.cfg.FeedbackDelay)

	updated, applied, err := e.registry.RecordAnswer(ctx, matchID, slot, m.CurrentQuestionIndex, answerIndex, points, summaryAt)
	if err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}
	if !applied {
		// Duplicate submission for this round, or the round advanced while
		// the answer was in flight.
		return false, nil
	}

	log.Infof("match %s: player %d answered q%d with %d (+%d)",
		matchID, playerID, m.CurrentQuestionIndex, answerIndex, points)
	e.broadcast.BroadcastMatch(updated)

	if updated.BothAnswered() && updated.Status == models.StatusPlaying {
		qIdx := updated.CurrentQuestionIndex
		e.timers.schedule(matchID, e.cfg.FeedbackDelay, func() {
			e.fireSummary(context.Background(), matchID, qIdx)
		})
	}

	return true, nil
}

// scoreAnswer derives points server-side from the frozen question snapshot.
// Correct answers earn MaxBonus inside the one second grace window, then
// decay linearly down to ScoreFloor. Wrong answers and the timeout sentinel
// earn nothing.
func (e *RoundEngine) scoreAnswer(m *models.Match, answerIndex int) int {
	if answerIndex < 0 {
		return 0
	}
	q, ok := m.CurrentQuestion()
	if !ok || answerIndex >= len(q.Answers) {
		return 0
	}
	if !q.Answers[answerIndex].IsCorrect {
		return 0
	}

	elapsed := e.clock.Now().Sub(m.RoundStartTime).Seconds()
	if elapsed <= 1 {
		return e.cfg.MaxBonus
	}
	points := int(math.Ceil(float64(e.cfg.MaxBonus) - (elapsed - 1)))
	if points < e.cfg.ScoreFloor {
		points = e.cfg.ScoreFloor
	}
	return points
}

// Leave applies explicit-departure semantics: a WAITING match disappears, a
// running one is forfeited to FINISHED with scores standing. Leaving an
// already finished or unknown match is a no-op.
func (e *RoundEngine) Leave(ctx context.Context, matchID string) error {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	switch m.Status {
	case models.StatusWaiting:
		if _, err := e.registry.DeleteWaiting(ctx, matchID); err != nil {
			return fmt.Errorf("delete waiting match: %w", err)
		}
		log.Infof("match %s deleted (creator left while waiting)", matchID)
	case models.StatusPlaying, models.StatusRoundSummary:
		fin, applied, err := e.registry.Finish(ctx, matchID)
		if err != nil {
			return fmt.Errorf("forfeit match: %w", err)
		}
		if applied {
			e.timers.cancel(matchID)
			e.broadcast.BroadcastMatch(fin)
			log.Infof("match %s forfeited", matchID)
		}
	}

	return nil
}

// HandleDisconnect is the non-graceful counterpart of Leave: only a WAITING
// match is cleaned up, so a mid-game drop can still rejoin through the
// matchmaker.
func (e *RoundEngine) HandleDisconnect(ctx context.Context, matchID string) error {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil || m.Status != models.StatusWaiting {
		return nil
	}

	if _, err := e.registry.DeleteWaiting(ctx, matchID); err != nil {
		return fmt.Errorf("delete waiting match: %w", err)
	}
	log.Infof("match %s deleted (creator disconnected while waiting)", matchID)
	return nil
}

func (e *RoundEngine) fireSummary(ctx context.Context, matchID string, questionIndex int) {
	advanceAt := e.clock.Now().Add(e.cfg.SummaryDelay)
	m, applied, err := e.registry.BeginSummary(ctx, matchID, questionIndex, advanceAt)
	if err != nil {
		log.Errorf("match %s: begin summary for q%d: %v", matchID, questionIndex, err)
		return
	}
	if !applied {
		// Forfeited, or a catch-up read beat the timer.
		return
	}

	e.broadcast.BroadcastMatch(m)
	e.timers.schedule(matchID, e.cfg.SummaryDelay, func() {
		e.fireAdvance(context.Background(), matchID, questionIndex)
	})
}

func (e *RoundEngine) fireAdvance(ctx context.Context, matchID string, questionIndex int) {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		log.Errorf("match %s: advance lookup: %v", matchID, err)
		return
	}
	if m == nil || m.Status != models.StatusRoundSummary || m.CurrentQuestionIndex != questionIndex {
		return
	}

	if questionIndex+1 >= len(m.Questions) {
		fin, applied, err := e.registry.Finish(ctx, matchID)
		if err != nil {
			log.Errorf("match %s: finish: %v", matchID, err)
			return
		}
		if applied {
			e.broadcast.BroadcastMatch(fin)
			log.Infof("match %s finished %d:%d", matchID, fin.Player1Score, fin.Player2Score)
		}
		return
	}

	next, applied, err := e.registry.AdvanceRound(ctx, matchID, questionIndex+1, e.clock.Now())
	if err != nil {
		log.Errorf("match %s: advance round: %v", matchID, err)
		return
	}
	if applied {
		e.broadcast.BroadcastMatch(next)
	}
}

// catchUp synchronously applies every pending transition whose fire time has
// passed, then re-arms a timer for one that is recorded but not yet due.
func (e *RoundEngine) catchUp(ctx context.Context, m *models.Match) (*models.Match, error) {
	// One summary + one advance per remaining round bounds the replay.
	for steps := 2 * (len(m.Questions) + 1); steps > 0; steps-- {
		if m.PendingTransition == models.TransitionNone || m.NextTransitionAt == nil {
			return m, nil
		}
		remaining := m.NextTransitionAt.Sub(e.clock.Now())
		if remaining > 0 {
			// Not due yet. Make sure some timer will fire it: after a restart
			// nothing is scheduled in this process.
			e.rearm(m, remaining)
			return m, nil
		}

		switch m.PendingTransition {
		case models.TransitionShowSummary:
			advanceAt := m.NextTransitionAt.Add(e.cfg.SummaryDelay)
			next, applied, err := e.registry.BeginSummary(ctx, m.ID, m.CurrentQuestionIndex, advanceAt)
			if err != nil {
				return nil, fmt.Errorf("catch-up summary: %w", err)
			}
			if !applied {
				refreshed, err := e.refresh(ctx, m.ID)
				if err != nil {
					return nil, err
				}
				m = refreshed
				continue
			}
			e.broadcast.BroadcastMatch(next)
			m = next

		case models.TransitionNextRound:
			if m.CurrentQuestionIndex+1 >= len(m.Questions) {
				fin, applied, err := e.registry.Finish(ctx, m.ID)
				if err != nil {
					return nil, fmt.Errorf("catch-up finish: %w", err)
				}
				if !applied {
					refreshed, err := e.refresh(ctx, m.ID)
					if err != nil {
						return nil, err
					}
					m = refreshed
					continue
				}
				e.broadcast.BroadcastMatch(fin)
				return fin, nil
			}
			next, applied, err := e.registry.AdvanceRound(ctx, m.ID, m.CurrentQuestionIndex+1, e.clock.Now())
			if err != nil {
				return nil, fmt.Errorf("catch-up advance: %w", err)
			}
			if !applied {
				refreshed, err := e.refresh(ctx, m.ID)
				if err != nil {
					return nil, err
				}
				m = refreshed
				continue
			}
			e.broadcast.BroadcastMatch(next)
			m = next

		default:
			return m, nil
		}
	}

	return m, nil
}

func (e *RoundEngine) rearm(m *models.Match, remaining time.Duration) {
	matchID := m.ID
	switch m.PendingTransition {
	case models.TransitionShowSummary:
		qIdx := m.CurrentQuestionIndex
		e.timers.schedule(matchID, remaining, func() {
			e.fireSummary(context.Background(), matchID, qIdx)
		})
	case models.TransitionNextRound:
		qIdx := m.CurrentQuestionIndex
		e.timers.schedule(matchID, remaining, func() {
			e.fireAdvance(context.Background(), matchID, qIdx)
		})
	}
}

func (e *RoundEngine) refresh(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

package service

import (
	"context"
	"time"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// MatchRegistry is the authoritative store of live matches. Every mutation is
// a conditional single-match read-modify-write: the bool result reports
// whether the expected state still held. Callers treat applied=false as "the
// other writer won", never as an error. Get returns (nil, nil) for an unknown
// id, matching how the quiz store reports missing rows.
type MatchRegistry interface {
	Create(ctx context.Context, m *models.Match) error
	Get(ctx context.Context, id string) (*models.Match, error)

	// FindActiveByPlayer returns any WAITING/PLAYING/ROUND_SUMMARY match the
	// player occupies on either side, or nil.
	FindActiveByPlayer(ctx context.Context, playerID int64) (*models.Match, error)

	// FindWaitingByQuiz lists WAITING matches for the quiz not created by
	// excludePlayerID, in arbitrary order.
	FindWaitingByQuiz(ctx context.Context, quizID string, excludePlayerID int64) ([]*models.Match, error)

	// JoinWaiting pairs player2 onto a WAITING match: sets status PLAYING and
	// restarts the round clock. Applied only while the match is still WAITING
	// with an empty second slot, so two joiners can never share it.
	JoinWaiting(ctx context.Context, id string, player2ID int64, now time.Time) (*models.Match, bool, error)

	// RecordAnswer stores the slot's answer index and adds points, applied
	// only while the match is PLAYING the given question with that slot still
	// unanswered. When the submission completes the pair it also records the
	// pending SHOW_SUMMARY transition due at summaryAt.
	RecordAnswer(ctx context.Context, id string, slot models.PlayerSlot, questionIndex, answerIndex, points int, summaryAt time.Time) (*models.Match, bool, error)

	// BeginSummary moves PLAYING -> ROUND_SUMMARY for the given question once
	// both answers are in, recording the pending NEXT_ROUND transition due at
	// advanceAt.
	BeginSummary(ctx context.Context, id string, questionIndex int, advanceAt time.Time) (*models.Match, bool, error)

	// AdvanceRound moves ROUND_SUMMARY -> PLAYING at nextIndex, clearing both
	// answers and restarting the round clock.
	AdvanceRound(ctx context.Context, id string, nextIndex int, now time.Time) (*models.Match, bool, error)

	// Finish drives any live status to FINISHED exactly once.
	Finish(ctx context.Context, id string) (*models.Match, bool, error)

	// DeleteWaiting removes the match only while it is still WAITING.
	DeleteWaiting(ctx context.Context, id string) (bool, error)
}

// PresenceChecker reports whether a previously recorded connection handle is
// still live. Served over NATS request/reply by the socket service.
type PresenceChecker interface {
	IsOnline(ctx context.Context, socketID string) bool
}

// Broadcaster delivers a match snapshot to every subscriber of the match's
// room. Fire-and-forget, at-least-once; clients recover via a plain read.
type Broadcaster interface {
	BroadcastMatch(m *models.Match)
}

// QuizFetcher is the read side of the quiz collaborator the matchmaker
// samples question sets from.
type QuizFetcher interface {
	GetQuiz(ctx context.Context, quizID string) (*models.Quiz, error)
}

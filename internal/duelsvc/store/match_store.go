package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// MatchStore is the Postgres-backed match registry. Every mutation is a
// single conditional UPDATE keyed by match id, so concurrent submissions and
// stale transition timers resolve at the database without locks.
//
// Expected table:
//
//	CREATE TABLE matches (
//	    id                     TEXT PRIMARY KEY,
//	    quiz_id                TEXT NOT NULL,
//	    player1_id             BIGINT NOT NULL,
//	    player2_id             BIGINT,
//	    player1_socket_id      TEXT NOT NULL,
//	    status                 TEXT NOT NULL,
//	    questions              JSONB NOT NULL,
//	    current_question_index INT NOT NULL DEFAULT 0,
//	    player1_score          INT NOT NULL DEFAULT 0,
//	    player2_score          INT NOT NULL DEFAULT 0,
//	    player1_answer_index   INT,
//	    player2_answer_index   INT,
//	    round_start_time       TIMESTAMPTZ NOT NULL,
//	    pending_transition     TEXT NOT NULL DEFAULT '',
//	    next_transition_at     TIMESTAMPTZ,
//	    created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type MatchStore struct {
	db *pgxpool.Pool
}

func NewMatchStore(db *pgxpool.Pool) *MatchStore {
	return &MatchStore{db: db}
}

const matchColumns = `id, quiz_id, player1_id, player2_id, player1_socket_id, status,
	questions, current_question_index, player1_score, player2_score,
	player1_answer_index, player2_answer_index, round_start_time,
	pending_transition, next_transition_at, created_at, updated_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	m := &models.Match{}
	var questionsJSON []byte
	var pending string

	err := row.Scan(
		&m.ID,
		&m.QuizID,
		&m.Player1ID,
		&m.Player2ID,
		&m.Player1SocketID,
		&m.Status,
		&questionsJSON,
		&m.CurrentQuestionIndex,
		&m.Player1Score,
		&m.Player2Score,
		&m.Player1AnswerIndex,
		&m.Player2AnswerIndex,
		&m.RoundStartTime,
		&pending,
		&m.NextTransitionAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.PendingTransition = models.TransitionKind(pending)
	if err := json.Unmarshal(questionsJSON, &m.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode frozen questions for match %s: %w", m.ID, err)
	}

	return m, nil
}

func (s *MatchStore) Create(ctx context.Context, m *models.Match) error {
	questionsJSON, err := json.Marshal(m.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}

	query := `
		INSERT INTO matches (id, quiz_id, player1_id, player1_socket_id, status,
			questions, round_start_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $8)
	`
	_, err = s.db.Exec(ctx, query,
		m.ID, m.QuizID, m.Player1ID, m.Player1SocketID, string(m.Status),
		string(questionsJSON), m.RoundStartTime, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

func (s *MatchStore) Get(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}

	return m, nil
}

func (s *MatchStore) FindActiveByPlayer(ctx context.Context, playerID int64) (*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND status IN ('WAITING', 'PLAYING', 'ROUND_SUMMARY')
		LIMIT 1
	`

	m, err := scanMatch(s.db.QueryRow(ctx, query, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active match for player %d: %w", playerID, err)
	}

	return m, nil
}

func (s *MatchStore) FindWaitingByQuiz(ctx context.Context, quizID string, excludePlayerID int64) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE quiz_id = $1 AND status = 'WAITING' AND player1_id <> $2
	`

	rows, err := s.db.Query(ctx, query, quizID, excludePlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan waiting matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}

func (s *MatchStore) JoinWaiting(ctx context.Context, id string, player2ID int64, now time.Time) (*models.Match, bool, error) {
	query := `
		UPDATE matches
		SET player2_id = $2, status = 'PLAYING', current_question_index = 0,
		    round_start_time = $3, updated_at = now()
		WHERE id = $1 AND status = 'WAITING' AND player2_id IS NULL
		RETURNING ` + matchColumns

	m, err := scanMatch(s.db.QueryRow(ctx, query, id, player2ID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to join match %s: %w", id, err)
	}

	return m, true, nil
}

func (s *MatchStore) RecordAnswer(ctx context.Context, id string, slot models.PlayerSlot, questionIndex, answerIndex, points int, summaryAt time.Time) (*models.Match, bool, error) {
	// The CASE folds "this submission completed the pair" into the same
	// atomic write that records the answer.
	var query string
	if slot == models.SlotPlayer1 {
		query = `
		UPDATE matches
		SET player1_answer_index = $3,
		    player1_score = player1_score + $4,
		    pending_transition = CASE WHEN player2_answer_index IS NOT NULL THEN 'SHOW_SUMMARY' ELSE pending_transition END,
		    next_transition_at = CASE WHEN player2_answer_index IS NOT NULL THEN $5 ELSE next_transition_at END,
		    updated_at = now()
		WHERE id = $1 AND status = 'PLAYING' AND current_question_index = $2
		  AND player1_answer_index IS NULL
		RETURNING ` + matchColumns
	} else {
		query = `
		UPDATE matches
		SET player2_answer_index = $3,
		    player2_score = player2_score + $4,
		    pending_transition = CASE WHEN player1_answer_index IS NOT NULL THEN 'SHOW_SUMMARY' ELSE pending_transition END,
		    next_transition_at = CASE WHEN player1_answer_index IS NOT NULL THEN $5 ELSE next_transition_at END,
		    updated_at = now()
		WHERE id = $1 AND status = 'PLAYING' AND current_question_index = $2
		  AND player2_answer_index IS NULL
		RETURNING ` + matchColumns
	}

	m, err := scanMatch(s.db.QueryRow(ctx, query, id, questionIndex, answerIndex, points, summaryAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already answered this round, or the round moved on.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to record answer for match %s: %w", id, err)
	}

	return m, true, nil
}

func (s *MatchStore) BeginSummary(ctx context.Context, id string, questionIndex int, advanceAt time.Time) (*models.Match, bool, error) {
	query := `
		UPDATE matches
		SET status = 'ROUND_SUMMARY', pending_transition = 'NEXT_ROUND',
		    next_transition_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'PLAYING' AND current_question_index = $2
		  AND player1_answer_index IS NOT NULL AND player2_answer_index IS NOT NULL
		RETURNING ` + matchColumns

	m, err := scanMatch(s.db.QueryRow(ctx, query, id, questionIndex, advanceAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to begin summary for match %s: %w", id, err)
	}

	return m, true, nil
}

func (s *MatchStore) AdvanceRound(ctx context.Context, id string, nextIndex int, now time.Time) (*models.Match, bool, error) {
	query := `
		UPDATE matches
		SET status = 'PLAYING', current_question_index = $2,
		    player1_answer_index = NULL, player2_answer_index = NULL,
		    round_start_time = $3, pending_transition = '',
		    next_transition_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'ROUND_SUMMARY' AND current_question_index = $2 - 1
		RETURNING ` + matchColumns

	m, err := scanMatch(s.db.QueryRow(ctx, query, id, nextIndex, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to advance match %s: %w", id, err)
	}

	return m, true, nil
}

func (s *MatchStore) Finish(ctx context.Context, id string) (*models.Match, bool, error) {
	query := `
		UPDATE matches
		SET status = 'FINISHED', pending_transition = '',
		    next_transition_at = NULL, updated_at = now()
		WHERE id = $1 AND status <> 'FINISHED'
		RETURNING ` + matchColumns

	m, err := scanMatch(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to finish match %s: %w", id, err)
	}

	return m, true, nil
}

func (s *MatchStore) DeleteWaiting(ctx context.Context, id string) (bool, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM matches WHERE id = $1 AND status = 'WAITING'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete waiting match %s: %w", id, err)
	}

	return res.RowsAffected() == 1, nil
}

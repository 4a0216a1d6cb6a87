package models

import (
	"time"
)

type MatchStatus string

const (
	StatusWaiting      MatchStatus = "WAITING"
	StatusPlaying      MatchStatus = "PLAYING"
	StatusRoundSummary MatchStatus = "ROUND_SUMMARY"
	StatusFinished     MatchStatus = "FINISHED"
)

// TransitionKind names a delayed self-transition recorded on the match so an
// overdue one can be replayed on read after a crash.
type TransitionKind string

const (
	TransitionNone        TransitionKind = ""
	TransitionShowSummary TransitionKind = "SHOW_SUMMARY" // PLAYING -> ROUND_SUMMARY
	TransitionNextRound   TransitionKind = "NEXT_ROUND"   // ROUND_SUMMARY -> PLAYING | FINISHED
)

// PlayerSlot identifies which side of the match a player occupies.
type PlayerSlot int

const (
	SlotPlayer1 PlayerSlot = 1
	SlotPlayer2 PlayerSlot = 2
)

func (s PlayerSlot) Role() string {
	if s == SlotPlayer2 {
		return "player2"
	}
	return "player1"
}

// TimeoutAnswerIndex is the sentinel a client submits when its local countdown
// expired with no choice made.
const TimeoutAnswerIndex = -1

// Match is one two-player quiz session. Questions is frozen at creation time
// and never re-read from the source quiz.
type Match struct {
	ID                   string         `json:"id"`
	QuizID               string         `json:"quiz_id"`
	Player1ID            int64          `json:"player1_id"`
	Player2ID            *int64         `json:"player2_id,omitempty"`
	Player1SocketID      string         `json:"-"` // presence checks during matchmaking only
	Status               MatchStatus    `json:"status"`
	Questions            []Question     `json:"-"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Player1Score         int            `json:"player1_score"`
	Player2Score         int            `json:"player2_score"`
	Player1AnswerIndex   *int           `json:"player1_answer_index"`
	Player2AnswerIndex   *int           `json:"player2_answer_index"`
	RoundStartTime       time.Time      `json:"round_start_time"`
	PendingTransition    TransitionKind `json:"-"`
	NextTransitionAt     *time.Time     `json:"-"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// SlotOf reports which side playerID occupies, if any.
func (m *Match) SlotOf(playerID int64) (PlayerSlot, bool) {
	if m.Player1ID == playerID {
		return SlotPlayer1, true
	}
	if m.Player2ID != nil && *m.Player2ID == playerID {
		return SlotPlayer2, true
	}
	return 0, false
}

// BothAnswered reports whether the current round is complete.
func (m *Match) BothAnswered() bool {
	return m.Player1AnswerIndex != nil && m.Player2AnswerIndex != nil
}

// CurrentQuestion returns the live question. ok is false once the match is
// FINISHED or the index is out of range.
func (m *Match) CurrentQuestion() (Question, bool) {
	if m.CurrentQuestionIndex < 0 || m.CurrentQuestionIndex >= len(m.Questions) {
		return Question{}, false
	}
	return m.Questions[m.CurrentQuestionIndex], true
}

// Clone returns a deep copy so callers can hand matches across goroutines
// without sharing mutable state.
func (m *Match) Clone() *Match {
	c := *m
	if m.Player2ID != nil {
		v := *m.Player2ID
		c.Player2ID = &v
	}
	if m.Player1AnswerIndex != nil {
		v := *m.Player1AnswerIndex
		c.Player1AnswerIndex = &v
	}
	if m.Player2AnswerIndex != nil {
		v := *m.Player2AnswerIndex
		c.Player2AnswerIndex = &v
	}
	if m.NextTransitionAt != nil {
		v := *m.NextTransitionAt
		c.NextTransitionAt = &v
	}
	if m.Questions != nil {
		qs := make([]Question, len(m.Questions))
		for i, q := range m.Questions {
			qs[i] = q
			qs[i].Answers = append([]AnswerOption(nil), q.Answers...)
		}
		c.Questions = qs
	}
	return &c
}

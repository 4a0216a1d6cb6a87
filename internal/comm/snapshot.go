package comm

import (
	"time"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// QuestionView is the client-facing shape of the live question. Correctness
// flags stay server-side; CorrectIndex is only revealed with the summary.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// MatchSnapshot is the full read model pushed on every state change and
// returned by the match read endpoint. Clients derive their countdown from
// RoundStartTime + RoundSeconds locally.
type MatchSnapshot struct {
	ID                   string             `json:"id"`
	QuizID               string             `json:"quiz_id"`
	Player1ID            int64              `json:"player1_id"`
	Player2ID            *int64             `json:"player2_id,omitempty"`
	Status               models.MatchStatus `json:"status"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	TotalQuestions       int                `json:"total_questions"`
	Question             *QuestionView      `json:"question,omitempty"`
	CorrectIndex         *int               `json:"correct_index,omitempty"` // set during ROUND_SUMMARY and when FINISHED
	Player1Score         int                `json:"player1_score"`
	Player2Score         int                `json:"player2_score"`
	Player1AnswerIndex   *int               `json:"player1_answer_index"`
	Player2AnswerIndex   *int               `json:"player2_answer_index"`
	RoundStartTime       time.Time          `json:"round_start_time"`
	RoundSeconds         int                `json:"round_seconds"`
}

// NewMatchSnapshot projects a match into its client read model.
func NewMatchSnapshot(m *models.Match, roundSeconds int) MatchSnapshot {
	s := MatchSnapshot{
		ID:                   m.ID,
		QuizID:               m.QuizID,
		Player1ID:            m.Player1ID,
		Player2ID:            m.Player2ID,
		Status:               m.Status,
		CurrentQuestionIndex: m.CurrentQuestionIndex,
		TotalQuestions:       len(m.Questions),
		Player1Score:         m.Player1Score,
		Player2Score:         m.Player2Score,
		Player1AnswerIndex:   m.Player1AnswerIndex,
		Player2AnswerIndex:   m.Player2AnswerIndex,
		RoundStartTime:       m.RoundStartTime,
		RoundSeconds:         roundSeconds,
	}

	if q, ok := m.CurrentQuestion(); ok {
		view := QuestionView{Text: q.Text, Options: make([]string, len(q.Answers))}
		for i, a := range q.Answers {
			view.Options[i] = a.Text
		}
		s.Question = &view

		if m.Status == models.StatusRoundSummary || m.Status == models.StatusFinished {
			ci := q.CorrectIndex()
			s.CorrectIndex = &ci
		}
	}

	return s
}

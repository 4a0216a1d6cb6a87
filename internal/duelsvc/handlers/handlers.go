package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/quizwire/duel-services/internal/comm"
	"github.com/quizwire/duel-services/internal/duelsvc/config"
	"github.com/quizwire/duel-services/internal/duelsvc/models"
	"github.com/quizwire/duel-services/internal/duelsvc/service"
)

type Handler struct {
	tokenAuth  *jwtauth.JWTAuth
	matchmaker *service.Matchmaker
	engine     *service.RoundEngine
	quizzes    *service.QuizService
	cfg        config.Config
}

func NewHandler(matchmaker *service.Matchmaker, engine *service.RoundEngine,
	quizzes *service.QuizService, cfg config.Config) *Handler {
	return &Handler{
		matchmaker: matchmaker,
		engine:     engine,
		quizzes:    quizzes,
		cfg:        cfg,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

// playerID pulls the verified player identity out of the JWT claims.
func (h *Handler) playerID(r *http.Request) (int64, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, false
	}
	raw, ok := claims["user_id"]
	if !ok {
		return 0, false
	}
	id, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	return int64(id), true
}

// JoinHandler pairs the caller into a match or parks them waiting.
func (h *Handler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.playerID(r)
	if !ok {
		h.CreateResponse(w, Response{Message: "missing player identity", Code: http.StatusUnauthorized, Error: "UNAUTHORIZED"})
		return
	}

	var request struct {
		QuizId   string `json:"quiz_id"`
		SocketId string `json:"socket_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.CreateResponse(w, Response{Message: "invalid join payload", Code: http.StatusBadRequest, Error: "BAD_REQUEST"})
		return
	}

	result, err := h.matchmaker.Join(r.Context(), playerID, request.QuizId, request.SocketId)
	if err != nil {
		var inMatch *service.AlreadyInMatchError
		switch {
		case errors.As(err, &inMatch):
			h.CreateResponse(w, Response{
				Message: "player is live in another match",
				Code:    http.StatusConflict,
				Data:    map[string]string{"match_id": inMatch.MatchID},
				Error:   "ALREADY_IN_MATCH",
			})
		case errors.Is(err, service.ErrQuizNotFound):
			h.CreateResponse(w, Response{Message: "quiz not found", Code: http.StatusNotFound, Error: "NOT_FOUND"})
		case errors.Is(err, service.ErrInsufficientQuestions):
			h.CreateResponse(w, Response{Message: err.Error(), Code: http.StatusBadRequest, Error: "INSUFFICIENT_QUESTIONS"})
		default:
			log.Errorf("Error [Matchmaker.Join] player %d: %s", playerID, err)
			h.CreateResponse(w, Response{Message: "join failed", Code: http.StatusInternalServerError, Error: "INTERNAL"})
		}
		return
	}

	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: result})
}

// GetMatchHandler returns the current match snapshot; clients use it to
// recover after a missed push.
func (h *Handler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	m, err := h.engine.GetMatch(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, service.ErrMatchNotFound) {
			h.CreateResponse(w, Response{Message: "match not found", Code: http.StatusNotFound, Error: "NOT_FOUND"})
			return
		}
		log.Errorf("Error [Engine.GetMatch] %s: %s", matchID, err)
		h.CreateResponse(w, Response{Message: "lookup failed", Code: http.StatusInternalServerError, Error: "INTERNAL"})
		return
	}

	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: comm.NewMatchSnapshot(m, h.cfg.RoundSeconds)})
}

// AnswerHandler records one answer for the current round.
func (h *Handler) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.playerID(r)
	if !ok {
		h.CreateResponse(w, Response{Message: "missing player identity", Code: http.StatusUnauthorized, Error: "UNAUTHORIZED"})
		return
	}

	var request struct {
		MatchId     string `json:"match_id"`
		AnswerIndex int    `json:"answer_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.CreateResponse(w, Response{Message: "invalid answer payload", Code: http.StatusBadRequest, Error: "BAD_REQUEST"})
		return
	}

	accepted, err := h.engine.SubmitAnswer(r.Context(), request.MatchId, playerID, request.AnswerIndex)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			h.CreateResponse(w, Response{Message: "match not found", Code: http.StatusNotFound, Error: "NOT_FOUND"})
		case errors.Is(err, service.ErrTooLate):
			h.CreateResponse(w, Response{Message: "match already finished", Code: http.StatusBadRequest, Error: "TOO_LATE"})
		default:
			log.Errorf("Error [Engine.SubmitAnswer] match %s player %d: %s", request.MatchId, playerID, err)
			h.CreateResponse(w, Response{Message: "answer failed", Code: http.StatusInternalServerError, Error: "INTERNAL"})
		}
		return
	}

	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: map[string]bool{"accepted": accepted}})
}

// quizView strips correctness flags before a quiz leaves the server.
type quizView struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Questions []comm.QuestionView `json:"questions"`
}

func newQuizView(q *models.Quiz) quizView {
	view := quizView{ID: q.ID.Hex(), Title: q.Title}
	for _, question := range q.Questions {
		qv := comm.QuestionView{Text: question.Text, Options: make([]string, len(question.Answers))}
		for i, a := range question.Answers {
			qv.Options[i] = a.Text
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}

func (h *Handler) ListQuizzesHandler(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.ListQuizzes(r.Context())
	if err != nil {
		log.Errorf("Error [QuizService.ListQuizzes] %s", err)
		h.CreateResponse(w, Response{Message: "listing failed", Code: http.StatusInternalServerError, Error: "INTERNAL"})
		return
	}

	views := make([]quizView, 0, len(quizzes))
	for _, q := range quizzes {
		views = append(views, newQuizView(q))
	}

	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: views})
}

func (h *Handler) GetQuizHandler(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")

	quiz, err := h.quizzes.GetQuiz(r.Context(), quizID)
	if err != nil {
		log.Errorf("Error [QuizService.GetQuiz] %s: %s", quizID, err)
		h.CreateResponse(w, Response{Message: "lookup failed", Code: http.StatusInternalServerError, Error: "INTERNAL"})
		return
	}
	if quiz == nil {
		h.CreateResponse(w, Response{Message: "quiz not found", Code: http.StatusNotFound, Error: "NOT_FOUND"})
		return
	}

	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: newQuizView(quiz)})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "duel service is running at port " + os.Getenv("DUEL_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}

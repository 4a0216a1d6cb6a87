package handlers

import (
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// Secure routes: player identity comes from the verified token.
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/quizzes", h.ListQuizzesHandler)
			r.Get("/quizzes/{quizID}", h.GetQuizHandler)

			r.Post("/game/join", h.JoinHandler)
			r.Get("/game/{matchID}", h.GetMatchHandler)
			r.Post("/game/answer", h.AnswerHandler)
		})
	})
}

// InitAuth wires the HS256 verifier. Tokens are issued by the auth
// collaborator; this service only verifies them.
func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}

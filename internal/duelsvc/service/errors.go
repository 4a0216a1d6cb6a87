package service

import (
	"errors"
	"fmt"
)

var (
	// ErrMatchNotFound is returned for reads and submissions against an
	// unknown match id.
	ErrMatchNotFound = errors.New("match not found")

	// ErrQuizNotFound is returned when the requested question bank does not
	// exist.
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrInsufficientQuestions is returned when a quiz bank is smaller than
	// the per-match sample size.
	ErrInsufficientQuestions = errors.New("quiz has fewer questions than a match requires")

	// ErrTooLate rejects answers submitted after the match reached FINISHED.
	ErrTooLate = errors.New("match already finished")
)

// AlreadyInMatchError redirects a player who is live in a different quiz's
// match. The client navigates to MatchID instead of joining.
type AlreadyInMatchError struct {
	MatchID string
}

func (e *AlreadyInMatchError) Error() string {
	return fmt.Sprintf("player already in match %s", e.MatchID)
}

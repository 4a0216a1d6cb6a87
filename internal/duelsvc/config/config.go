package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the match tunables. Values mirror what the web client renders
// against, so change them together with the client.
type Config struct {
	QuestionsPerMatch int           // frozen sample size per match
	RoundSeconds      int           // client countdown window per question
	MaxBonus          int           // points for a correct answer inside the grace second
	ScoreFloor        int           // minimum points for any correct answer
	FeedbackDelay     time.Duration // both answered -> ROUND_SUMMARY
	SummaryDelay      time.Duration // ROUND_SUMMARY -> next round / FINISHED
	PresenceTimeout   time.Duration // NATS request timeout for presence checks
}

func Load() Config {
	return Config{
		QuestionsPerMatch: envInt("QUESTIONS_PER_MATCH", 8),
		RoundSeconds:      envInt("ROUND_SECONDS", 10),
		MaxBonus:          envInt("MAX_BONUS", 10),
		ScoreFloor:        envInt("SCORE_FLOOR", 1),
		FeedbackDelay:     envDuration("FEEDBACK_DELAY_MS", 1000*time.Millisecond),
		SummaryDelay:      envDuration("SUMMARY_DELAY_MS", 3500*time.Millisecond),
		PresenceTimeout:   envDuration("PRESENCE_TIMEOUT_MS", 500*time.Millisecond),
	}
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	ms, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

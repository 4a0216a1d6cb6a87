package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
	"github.com/quizwire/duel-services/internal/duelsvc/store"
)

func seedQuestions(n int) []models.Question {
	questions := make([]models.Question, n)
	for i := range questions {
		questions[i] = models.Question{
			Text: fmt.Sprintf("question %d", i),
			Answers: []models.AnswerOption{
				{Text: "a"},
				{Text: "b", IsCorrect: true},
			},
		}
	}
	return questions
}

func seedWaiting(t *testing.T, s *store.MemoryMatchStore, id string) *models.Match {
	t.Helper()

	now := time.Now()
	m := &models.Match{
		ID:              id,
		QuizID:          "quiz-1",
		Player1ID:       1,
		Player1SocketID: "sock-1",
		Status:          models.StatusWaiting,
		Questions:       seedQuestions(3),
		RoundStartTime:  now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.Create(context.Background(), m))
	return m
}

func seedPlaying(t *testing.T, s *store.MemoryMatchStore, id string) *models.Match {
	t.Helper()

	seedWaiting(t, s, id)
	m, ok, err := s.JoinWaiting(context.Background(), id, 2, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	return m
}

func TestGetReturnsClone(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedWaiting(t, s, "m1")

	a, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	a.Player1Score = 99
	a.Questions[0].Text = "mutated"

	b, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Zero(t, b.Player1Score)
	require.Equal(t, "question 0", b.Questions[0].Text)
}

func TestGetMissing(t *testing.T) {
	s := store.NewMemoryMatchStore()

	m, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestJoinWaitingOnlyOnce(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedWaiting(t, s, "m1")

	m, ok, err := s.JoinWaiting(ctx, "m1", 2, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.StatusPlaying, m.Status)
	require.Equal(t, int64(2), *m.Player2ID)

	// a second joiner lost the race
	_, ok, err = s.JoinWaiting(ctx, "m1", 3, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	kept, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, int64(2), *kept.Player2ID)
}

func TestJoinWaitingConcurrent(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedWaiting(t, s, "m1")

	const joiners = 16
	var wg sync.WaitGroup
	wins := make(chan int64, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(playerID int64) {
			defer wg.Done()
			if _, ok, _ := s.JoinWaiting(ctx, "m1", playerID, time.Now()); ok {
				wins <- playerID
			}
		}(int64(100 + i))
	}
	wg.Wait()
	close(wins)

	var winners []int64
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)

	m, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, winners[0], *m.Player2ID)
}

func TestRecordAnswerSetsPendingWhenPairComplete(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedPlaying(t, s, "m1")
	summaryAt := time.Now().Add(time.Second)

	m, ok, err := s.RecordAnswer(ctx, "m1", models.SlotPlayer1, 0, 1, 10, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.TransitionNone, m.PendingTransition)
	require.Nil(t, m.NextTransitionAt)

	m, ok, err = s.RecordAnswer(ctx, "m1", models.SlotPlayer2, 0, 0, 0, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.TransitionShowSummary, m.PendingTransition)
	require.NotNil(t, m.NextTransitionAt)
	require.Equal(t, summaryAt, *m.NextTransitionAt)
	require.Equal(t, 10, m.Player1Score)
	require.Equal(t, 0, m.Player2Score)
}

func TestRecordAnswerRejectsDuplicateAndStale(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedPlaying(t, s, "m1")
	summaryAt := time.Now().Add(time.Second)

	_, ok, err := s.RecordAnswer(ctx, "m1", models.SlotPlayer1, 0, 1, 10, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)

	// same slot again
	_, ok, err = s.RecordAnswer(ctx, "m1", models.SlotPlayer1, 0, 0, 5, summaryAt)
	require.NoError(t, err)
	require.False(t, ok)

	// wrong round index
	_, ok, err = s.RecordAnswer(ctx, "m1", models.SlotPlayer2, 1, 1, 10, summaryAt)
	require.NoError(t, err)
	require.False(t, ok)

	m, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, 10, m.Player1Score)
	require.Nil(t, m.Player2AnswerIndex)
}

func TestRecordAnswerConcurrentSlotsNoLostUpdate(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedPlaying(t, s, "m1")
	summaryAt := time.Now().Add(time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, ok, err := s.RecordAnswer(ctx, "m1", models.SlotPlayer1, 0, 1, 10, summaryAt)
		require.NoError(t, err)
		require.True(t, ok)
	}()
	go func() {
		defer wg.Done()
		_, ok, err := s.RecordAnswer(ctx, "m1", models.SlotPlayer2, 0, 1, 8, summaryAt)
		require.NoError(t, err)
		require.True(t, ok)
	}()
	wg.Wait()

	m, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, 10, m.Player1Score)
	require.Equal(t, 8, m.Player2Score)
	require.True(t, m.BothAnswered())
	require.Equal(t, models.TransitionShowSummary, m.PendingTransition)
}

func TestBeginSummaryRequiresBothAnswers(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedPlaying(t, s, "m1")
	at := time.Now()

	_, ok, err := s.BeginSummary(ctx, "m1", 0, at.Add(time.Second))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = s.RecordAnswer(ctx, "m1", models.SlotPlayer1, 0, 1, 10, at)
	require.NoError(t, err)
	_, _, err = s.RecordAnswer(ctx, "m1", models.SlotPlayer2, 0, 0, 0, at)
	require.NoError(t, err)

	m, ok, err := s.BeginSummary(ctx, "m1", 0, at.Add(time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.StatusRoundSummary, m.Status)
	require.Equal(t, models.TransitionNextRound, m.PendingTransition)

	// firing twice is a no-op
	_, ok, err = s.BeginSummary(ctx, "m1", 0, at.Add(2*time.Second))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAdvanceRoundResetsAnswers(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedPlaying(t, s, "m1")
	at := time.Now()

	_, _, err := s.RecordAnswer(ctx, "m1", models.SlotPlayer1, 0, 1, 10, at)
	require.NoError(t, err)
	_, _, err = s.RecordAnswer(ctx, "m1", models.SlotPlayer2, 0, 1, 7, at)
	require.NoError(t, err)
	_, _, err = s.BeginSummary(ctx, "m1", 0, at)
	require.NoError(t, err)

	now := time.Now()
	m, ok, err := s.AdvanceRound(ctx, "m1", 1, now)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.StatusPlaying, m.Status)
	require.Equal(t, 1, m.CurrentQuestionIndex)
	require.Nil(t, m.Player1AnswerIndex)
	require.Nil(t, m.Player2AnswerIndex)
	require.Equal(t, now, m.RoundStartTime)
	require.Equal(t, models.TransitionNone, m.PendingTransition)
	// scores carry over
	require.Equal(t, 10, m.Player1Score)
	require.Equal(t, 7, m.Player2Score)

	// replaying the same advance is a no-op
	_, ok, err = s.AdvanceRound(ctx, "m1", 1, time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFinishOnlyOnce(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()
	seedPlaying(t, s, "m1")

	m, ok, err := s.Finish(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.StatusFinished, m.Status)
	require.Equal(t, models.TransitionNone, m.PendingTransition)
	require.Nil(t, m.NextTransitionAt)

	_, ok, err = s.Finish(ctx, "m1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteWaitingOnlyWaiting(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()

	seedWaiting(t, s, "waiting")
	seedPlaying(t, s, "playing")

	ok, err := s.DeleteWaiting(ctx, "waiting")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.DeleteWaiting(ctx, "playing")
	require.NoError(t, err)
	require.False(t, ok)

	m, err := s.Get(ctx, "playing")
	require.NoError(t, err)
	require.NotNil(t, m)

	ok, err = s.DeleteWaiting(ctx, "waiting")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindActiveByPlayerSkipsFinished(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()

	seedPlaying(t, s, "m1")
	_, _, err := s.Finish(ctx, "m1")
	require.NoError(t, err)

	m, err := s.FindActiveByPlayer(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, m)

	seedWaiting(t, s, "m2")
	m, err = s.FindActiveByPlayer(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "m2", m.ID)
}

func TestFindWaitingByQuizExcludesOwnMatches(t *testing.T) {
	s := store.NewMemoryMatchStore()
	ctx := context.Background()

	seedWaiting(t, s, "mine")
	other := seedWaiting(t, s, "theirs")
	other.Player1ID = 7
	require.NoError(t, s.Create(ctx, other))

	found, err := s.FindWaitingByQuiz(ctx, "quiz-1", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "theirs", found[0].ID)
}

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
	"github.com/quizwire/duel-services/internal/duelsvc/service"
	"github.com/quizwire/duel-services/internal/duelsvc/store"
)

const (
	correctIndex = 1 // makeQuestions flags option 1 correct
	wrongIndex   = 0
)

type engineFixture struct {
	registry  *store.MemoryMatchStore
	broadcast *fakeBroadcaster
	clock     *clockwork.FakeClock
	engine    *service.RoundEngine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	registry := store.NewMemoryMatchStore()
	broadcast := &fakeBroadcaster{}
	clock := clockwork.NewFakeClock()

	return &engineFixture{
		registry:  registry,
		broadcast: broadcast,
		clock:     clock,
		engine:    service.NewRoundEngine(registry, broadcast, testConfig(), clock),
	}
}

// startMatch creates a paired PLAYING match with the given number of frozen
// questions.
func (f *engineFixture) startMatch(t *testing.T, questionCount int) string {
	t.Helper()
	ctx := context.Background()

	now := f.clock.Now()
	m := &models.Match{
		ID:              uuid.New().String(),
		QuizID:          testQuizID,
		Player1ID:       1,
		Player1SocketID: "sock-1",
		Status:          models.StatusWaiting,
		Questions:       makeQuestions(questionCount),
		RoundStartTime:  now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.registry.Create(ctx, m))

	_, ok, err := f.registry.JoinWaiting(ctx, m.ID, 2, now)
	require.NoError(t, err)
	require.True(t, ok)

	return m.ID
}

// requireStatus polls through the engine so an overdue transition is replayed
// on read even when the fake-clock timer callback has not run yet.
func (f *engineFixture) requireStatus(t *testing.T, matchID string, want models.MatchStatus) *models.Match {
	t.Helper()

	var got *models.Match
	require.Eventually(t, func() bool {
		m, err := f.engine.GetMatch(context.Background(), matchID)
		if err != nil || m == nil {
			return false
		}
		got = m
		return m.Status == want
	}, 2*time.Second, 5*time.Millisecond, "match never reached %s", want)

	return got
}

func TestSubmitAnswerScoresByLatency(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		answer  int
		points  int
	}{
		{"fast correct takes max bonus", 500 * time.Millisecond, correctIndex, 10},
		{"late correct decays linearly", 5 * time.Second, correctIndex, 6},
		{"very late correct hits the floor", 30 * time.Second, correctIndex, 1},
		{"incorrect scores zero", 500 * time.Millisecond, wrongIndex, 0},
		{"timeout sentinel scores zero", 500 * time.Millisecond, models.TimeoutAnswerIndex, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t)
			matchID := f.startMatch(t, 8)
			f.clock.Advance(tc.elapsed)

			accepted, err := f.engine.SubmitAnswer(context.Background(), matchID, 1, tc.answer)
			require.NoError(t, err)
			require.True(t, accepted)

			m, err := f.registry.Get(context.Background(), matchID)
			require.NoError(t, err)
			require.Equal(t, tc.points, m.Player1Score)
			require.NotNil(t, m.Player1AnswerIndex)
			require.Equal(t, tc.answer, *m.Player1AnswerIndex)
		})
	}
}

func TestSubmitAnswerSecondSubmissionRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t, 8)

	accepted, err := f.engine.SubmitAnswer(ctx, matchID, 1, correctIndex)
	require.NoError(t, err)
	require.True(t, accepted)

	m, err := f.registry.Get(ctx, matchID)
	require.NoError(t, err)
	scoreAfterFirst := m.Player1Score

	// Second answer in the same round is a no-op, not a rescore.
	accepted, err = f.engine.SubmitAnswer(ctx, matchID, 1, wrongIndex)
	require.NoError(t, err)
	require.False(t, accepted)

	m, err = f.registry.Get(ctx, matchID)
	require.NoError(t, err)
	require.Equal(t, scoreAfterFirst, m.Player1Score)
	require.Equal(t, correctIndex, *m.Player1AnswerIndex)
}

func TestRoundAdvancesOnceBothAnswered(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	matchID := f.startMatch(t, 8)

	_, err := f.engine.SubmitAnswer(ctx, matchID, 2, correctIndex)
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, matchID, 1, wrongIndex)
	require.NoError(t, err)

	f.clock.Advance(cfg.FeedbackDelay)
	f.requireStatus(t, matchID, models.StatusRoundSummary)

	f.clock.Advance(cfg.SummaryDelay)
	next := f.requireStatus(t, matchID, models.StatusPlaying)
	require.Equal(t, 1, next.CurrentQuestionIndex)
	require.Nil(t, next.Player1AnswerIndex)
	require.Nil(t, next.Player2AnswerIndex)
	require.Equal(t, f.clock.Now(), next.RoundStartTime)
}

func TestMatchRunsAllRoundsToFinished(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	matchID := f.startMatch(t, 8)

	var indexes []int
	for round := 0; round < 8; round++ {
		m, err := f.registry.Get(ctx, matchID)
		require.NoError(t, err)
		require.Equal(t, models.StatusPlaying, m.Status)
		indexes = append(indexes, m.CurrentQuestionIndex)

		_, err = f.engine.SubmitAnswer(ctx, matchID, 1, correctIndex)
		require.NoError(t, err)
		_, err = f.engine.SubmitAnswer(ctx, matchID, 2, correctIndex)
		require.NoError(t, err)

		f.clock.Advance(cfg.FeedbackDelay)
		f.requireStatus(t, matchID, models.StatusRoundSummary)
		f.clock.Advance(cfg.SummaryDelay)

		if round < 7 {
			f.requireStatus(t, matchID, models.StatusPlaying)
		}
	}

	fin := f.requireStatus(t, matchID, models.StatusFinished)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, indexes)
	require.Equal(t, 7, fin.CurrentQuestionIndex)
}

func TestScoresNeverDecreaseAcrossBroadcasts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	matchID := f.startMatch(t, 8)

	for round := 0; round < 3; round++ {
		_, err := f.engine.SubmitAnswer(ctx, matchID, 1, correctIndex)
		require.NoError(t, err)
		_, err = f.engine.SubmitAnswer(ctx, matchID, 2, wrongIndex)
		require.NoError(t, err)
		f.clock.Advance(cfg.FeedbackDelay)
		f.requireStatus(t, matchID, models.StatusRoundSummary)
		f.clock.Advance(cfg.SummaryDelay)
		f.requireStatus(t, matchID, models.StatusPlaying)
	}

	lastP1, lastP2 := 0, 0
	for _, b := range f.broadcast.all() {
		require.GreaterOrEqual(t, b.Player1Score, lastP1)
		require.GreaterOrEqual(t, b.Player2Score, lastP2)
		lastP1, lastP2 = b.Player1Score, b.Player2Score
	}
}

func TestLeaveForfeitsRunningMatch(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t, 8)

	_, err := f.engine.SubmitAnswer(ctx, matchID, 1, correctIndex)
	require.NoError(t, err)

	m, err := f.registry.Get(ctx, matchID)
	require.NoError(t, err)
	scoreBefore := m.Player1Score

	require.NoError(t, f.engine.Leave(ctx, matchID))

	fin, err := f.registry.Get(ctx, matchID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFinished, fin.Status)
	require.Equal(t, scoreBefore, fin.Player1Score)

	// leaving or dropping an already finished match changes nothing
	require.NoError(t, f.engine.Leave(ctx, matchID))
	require.NoError(t, f.engine.HandleDisconnect(ctx, matchID))

	still, err := f.registry.Get(ctx, matchID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFinished, still.Status)
}

func TestForfeitSilencesPendingTransition(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	matchID := f.startMatch(t, 8)

	_, err := f.engine.SubmitAnswer(ctx, matchID, 1, correctIndex)
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, matchID, 2, correctIndex)
	require.NoError(t, err)

	// forfeit races the scheduled summary and must win permanently
	require.NoError(t, f.engine.Leave(ctx, matchID))
	f.clock.Advance(cfg.FeedbackDelay + cfg.SummaryDelay)

	m := f.requireStatus(t, matchID, models.StatusFinished)
	require.Equal(t, 0, m.CurrentQuestionIndex)
}

func TestSubmitAfterFinishedTooLate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	matchID := f.startMatch(t, 8)

	require.NoError(t, f.engine.Leave(ctx, matchID))

	_, err := f.engine.SubmitAnswer(ctx, matchID, 1, correctIndex)
	require.ErrorIs(t, err, service.ErrTooLate)
}

func TestSubmitUnknownMatch(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.SubmitAnswer(context.Background(), "no-such-match", 1, correctIndex)
	require.ErrorIs(t, err, service.ErrMatchNotFound)
}

func TestLeaveWhileWaitingDeletesMatch(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	now := f.clock.Now()
	m := &models.Match{
		ID:              uuid.New().String(),
		QuizID:          testQuizID,
		Player1ID:       1,
		Player1SocketID: "sock-1",
		Status:          models.StatusWaiting,
		Questions:       makeQuestions(8),
		RoundStartTime:  now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.registry.Create(ctx, m))

	require.NoError(t, f.engine.Leave(ctx, m.ID))

	got, err := f.registry.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetMatchReplaysOverdueTransitions(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	matchID := f.startMatch(t, 8)

	// Record both answers directly against the registry, as if the instance
	// that owned the timers crashed right after the second submission.
	summaryAt := f.clock.Now().Add(cfg.FeedbackDelay)
	_, ok, err := f.registry.RecordAnswer(ctx, matchID, models.SlotPlayer1, 0, correctIndex, 10, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = f.registry.RecordAnswer(ctx, matchID, models.SlotPlayer2, 0, wrongIndex, 0, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)

	// Well past both the summary and the advance deadline.
	f.clock.Advance(cfg.FeedbackDelay + cfg.SummaryDelay + time.Second)

	m, err := f.engine.GetMatch(ctx, matchID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPlaying, m.Status)
	require.Equal(t, 1, m.CurrentQuestionIndex)
	require.Nil(t, m.Player1AnswerIndex)
	require.Nil(t, m.Player2AnswerIndex)
}

func TestGetMatchRearmsPendingTimer(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	matchID := f.startMatch(t, 8)

	summaryAt := f.clock.Now().Add(cfg.FeedbackDelay)
	_, ok, err := f.registry.RecordAnswer(ctx, matchID, models.SlotPlayer1, 0, correctIndex, 10, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = f.registry.RecordAnswer(ctx, matchID, models.SlotPlayer2, 0, wrongIndex, 0, summaryAt)
	require.NoError(t, err)
	require.True(t, ok)

	// Read before the deadline: nothing fires yet, but the read re-arms the
	// timer in this process.
	m, err := f.engine.GetMatch(ctx, matchID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPlaying, m.Status)

	f.clock.Advance(cfg.FeedbackDelay)
	f.requireStatus(t, matchID, models.StatusRoundSummary)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"practice-service/internal/models"
	"practice-service/internal/repository"
	"practice-service/internal/session"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// In-memory stands-ins for the Mongo repositories.

type memSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*models.PracticeSession
	updates   map[string]bson.M
	updateErr error
}

func newMemSessionStore(rows ...*models.PracticeSession) *memSessionStore {
	s := &memSessionStore{
		sessions: make(map[string]*models.PracticeSession),
		updates:  make(map[string]bson.M),
	}
	for _, row := range rows {
		s.sessions[row.ID] = row
	}
	return s
}

func (s *memSessionStore) Create(_ context.Context, sess *models.PracticeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *memSessionStore) FindByID(_ context.Context, id string) (*models.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *sess
	return &copied, nil
}

func (s *memSessionStore) Update(_ context.Context, id string, update bson.M) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates[id] = update
	return nil
}

func (s *memSessionStore) updateFor(id string) bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[id]
}

type memAttemptStore struct {
	mu       sync.Mutex
	created  []models.QuestionAttempt
	upserted []models.QuestionAttempt
}

func (s *memAttemptStore) Create(_ context.Context, attempt *models.QuestionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *attempt)
	return nil
}

func (s *memAttemptStore) UpsertForSession(_ context.Context, attempts []models.QuestionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, attempts...)
	return nil
}

func (s *memAttemptStore) RecentQuestionIDs(context.Context, string, time.Time) ([]string, error) {
	return nil, nil
}

func (s *memAttemptStore) RecentAccuracy(context.Context, string, time.Time) (float64, error) {
	return -1, nil
}

func (s *memAttemptStore) TopicPerformance(context.Context, string) ([]models.TopicPerformance, error) {
	return nil, nil
}

func (s *memAttemptStore) upsertedRows() []models.QuestionAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.QuestionAttempt(nil), s.upserted...)
}

type memQuestionSource struct {
	mu        sync.Mutex
	pool      []models.Question
	filters   []repository.QuestionFilter
	publishFn func(repository.QuestionFilter) []models.Question
}

func (s *memQuestionSource) FindPublished(_ context.Context, f repository.QuestionFilter) ([]models.Question, error) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()
	if s.publishFn != nil {
		return s.publishFn(f), nil
	}
	return s.pool, nil
}

func (s *memQuestionSource) FindByIDs(_ context.Context, ids []string) ([]models.Question, error) {
	byID := make(map[string]models.Question, len(s.pool))
	for _, q := range s.pool {
		byID[q.ID] = q
	}
	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

func (s *memQuestionSource) recordedFilters() []repository.QuestionFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.QuestionFilter(nil), s.filters...)
}

type memChildDirectory struct {
	exists bool
}

func (d *memChildDirectory) Exists(context.Context, string) (bool, error) {
	return d.exists, nil
}

func runtimeQuestion(id string, tier models.Tier) models.Question {
	return models.Question{
		ID:         id,
		Subject:    "maths",
		Topic:      "fractions",
		Difficulty: tier,
		Options: [models.OptionCount]models.Option{
			{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"},
		},
		CorrectOption: "a",
		Published:     true,
	}
}

func runtimePool(n int, tier models.Tier) []models.Question {
	pool := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, runtimeQuestion(fmt.Sprintf("q%d", i), tier))
	}
	return pool
}

func newTestRuntime(sessions *memSessionStore, attempts *memAttemptStore, questions *memQuestionSource) *SessionRuntime {
	return NewSessionRuntime(sessions, attempts, questions, nil, nil, testLogger())
}

func pendingSessionRow(id string, questionIDs ...string) *models.PracticeSession {
	return &models.PracticeSession{
		ID:          id,
		ChildID:     "child-1",
		SessionType: models.SessionQuick,
		QuestionIDs: questionIDs,
	}
}

func TestStartRejectsSessionAlreadyLive(t *testing.T) {
	sessions := newMemSessionStore(pendingSessionRow("s1", "q0", "q1", "q2"))
	rt := newTestRuntime(sessions, &memAttemptStore{}, &memQuestionSource{pool: runtimePool(3, models.TierStandard)})

	_, err := rt.Start(context.Background(), "s1")
	require.NoError(t, err)

	_, err = rt.Start(context.Background(), "s1")
	assert.ErrorIs(t, err, session.ErrAlreadyStarted)
}

func TestStartCompletedOrUnknownSession(t *testing.T) {
	completed := pendingSessionRow("s1", "q0")
	completed.Completed = true
	sessions := newMemSessionStore(completed)
	rt := newTestRuntime(sessions, &memAttemptStore{}, &memQuestionSource{pool: runtimePool(1, models.TierStandard)})

	_, err := rt.Start(context.Background(), "s1")
	assert.ErrorIs(t, err, session.ErrAlreadyComplete)

	_, err = rt.Start(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCompleteAwaitsPersistence(t *testing.T) {
	sessions := newMemSessionStore(pendingSessionRow("s1", "q0", "q1", "q2"))
	attempts := &memAttemptStore{}
	rt := newTestRuntime(sessions, attempts, &memQuestionSource{pool: runtimePool(3, models.TierStandard)})

	_, err := rt.Start(context.Background(), "s1")
	require.NoError(t, err)
	_, err = rt.SubmitAnswer(context.Background(), "s1", "a")
	require.NoError(t, err)

	snap, err := rt.Complete(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StateComplete, snap.State)

	// The durable record must exist by the time Complete returns.
	update := sessions.updateFor("s1")
	require.NotNil(t, update)
	assert.Equal(t, true, update["completed"])
	assert.Equal(t, 1, update["correct_count"])
	assert.GreaterOrEqual(t, update["ember_score"].(int), 60)

	rows := attempts.upsertedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "q0", rows[0].QuestionID)
	assert.True(t, rows[0].IsCorrect)

	// The manager is dropped once the record is durable.
	_, err = rt.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCompleteReturnsWriteError(t *testing.T) {
	sessions := newMemSessionStore(pendingSessionRow("s1", "q0"))
	sessions.updateErr = errors.New("primary unavailable")
	rt := newTestRuntime(sessions, &memAttemptStore{}, &memQuestionSource{pool: runtimePool(1, models.TierStandard)})

	_, err := rt.Start(context.Background(), "s1")
	require.NoError(t, err)

	_, err = rt.Complete(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary unavailable")
}

func TestShouldMirrorSkipsFinalSnapshot(t *testing.T) {
	assert.True(t, shouldMirror(session.Snapshot{State: session.StateActive}))
	assert.True(t, shouldMirror(session.Snapshot{State: session.StatePaused}))
	assert.False(t, shouldMirror(session.Snapshot{State: session.StateComplete}))
}

func TestTimeRating(t *testing.T) {
	assert.Equal(t, 1.0, timeRating(0))
	assert.Equal(t, 1.0, timeRating(30))
	assert.Equal(t, 0.0, timeRating(120))
	assert.Equal(t, 0.0, timeRating(600))
	assert.InDelta(t, 0.5, timeRating(75), 0.001)
}

func TestDominantTier(t *testing.T) {
	questions := map[string]models.Question{
		"q0": runtimeQuestion("q0", models.TierFoundation),
		"q1": runtimeQuestion("q1", models.TierChallenge),
		"q2": runtimeQuestion("q2", models.TierChallenge),
	}
	snap := session.Snapshot{QuestionIDs: []string{"q0", "q1", "q2"}}
	assert.Equal(t, models.TierChallenge, dominantTier(snap, questions))

	// Unknown question records fall back to standard.
	assert.Equal(t, models.TierStandard, dominantTier(session.Snapshot{QuestionIDs: []string{"zz"}}, questions))
}

func TestEmberFactors(t *testing.T) {
	questions := map[string]models.Question{
		"q0": runtimeQuestion("q0", models.TierStandard),
		"q1": runtimeQuestion("q1", models.TierStandard),
		"q2": runtimeQuestion("q2", models.TierStandard),
		"q3": runtimeQuestion("q3", models.TierStandard),
	}
	snap := session.Snapshot{
		QuestionIDs: []string{"q0", "q1", "q2", "q3"},
		Answers:     map[string]string{"q0": "a", "q1": "a", "q2": "b"},
		TimeSpent:   map[string]int{"q0": 10, "q1": 20, "q2": 120},
	}

	f := emberFactors(snap, questions, 2)

	assert.InDelta(t, 2.0/3.0, f.Accuracy, 0.001)
	assert.InDelta(t, 0.75, f.Consistency, 0.001)
	// Two instant answers and one at the slow bound.
	assert.InDelta(t, 2.0/3.0, f.Speed, 0.001)
	assert.Equal(t, models.TierStandard, f.Difficulty)
	// q0 and q1 correct back to back, q2 wrong, q3 unanswered.
	assert.Equal(t, 2, f.Streak)
}

func TestEmberFactorsEmptySession(t *testing.T) {
	snap := session.Snapshot{QuestionIDs: []string{"q0"}}
	f := emberFactors(snap, map[string]models.Question{"q0": runtimeQuestion("q0", models.TierFoundation)}, 0)

	assert.Zero(t, f.Accuracy)
	assert.Zero(t, f.Speed)
	assert.Zero(t, f.Consistency)
	assert.Zero(t, f.Streak)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go.mongodb.org/mongo-driver/bson"

	"practice-service/internal/cache"
	"practice-service/internal/event"
	"practice-service/internal/models"
	"practice-service/internal/scoring"
	"practice-service/internal/session"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRuntime holds the live session managers for this process, mirrors
// their state to the snapshot cache, records attempts fire-and-forget while a
// session runs, and persists the durable record at completion.
type SessionRuntime struct {
	Sessions  SessionStore
	Attempts  AttemptStore
	Questions QuestionSource

	Cache     *cache.SessionCache   // optional
	Publisher *event.EventPublisher // optional

	mu   sync.Mutex
	live map[string]*liveSession

	log *logrus.Logger
}

// liveSession pairs a manager with its one-shot completion persistence.
// Whichever path completes the session first (explicit complete, next on the
// last question, or the time-limit tick) runs the write; an explicit complete
// call waits it out and surfaces its error.
type liveSession struct {
	mgr        *session.Manager
	persist    sync.Once
	persistErr error
}

func NewSessionRuntime(
	sessions SessionStore,
	attempts AttemptStore,
	questions QuestionSource,
	snapCache *cache.SessionCache,
	publisher *event.EventPublisher,
	log *logrus.Logger,
) *SessionRuntime {
	return &SessionRuntime{
		Sessions:  sessions,
		Attempts:  attempts,
		Questions: questions,
		Cache:     snapCache,
		Publisher: publisher,
		live:      make(map[string]*liveSession),
		log:       log,
	}
}

// Start loads the pending session row, builds its state machine and begins
// the timed run. A session that is already live in this process (client retry,
// double submit) is rejected rather than rebuilt, which would orphan the
// running manager and its timer.
func (r *SessionRuntime) Start(ctx context.Context, sessionID string) (*session.Manager, error) {
	r.mu.Lock()
	if _, ok := r.live[sessionID]; ok {
		r.mu.Unlock()
		return nil, session.ErrAlreadyStarted
	}
	r.mu.Unlock()

	sess, err := r.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if sess.Completed {
		return nil, session.ErrAlreadyComplete
	}

	questions, err := r.Questions.FindByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("loading session questions: %w", err)
	}

	mgr := session.NewManager(sess.ID, sess.ChildID, sess.SessionType)
	entry := &liveSession{mgr: mgr}
	r.wire(entry, questions)

	r.mu.Lock()
	if _, ok := r.live[sess.ID]; ok {
		r.mu.Unlock()
		return nil, session.ErrAlreadyStarted
	}
	r.live[sess.ID] = entry
	r.mu.Unlock()

	if err := mgr.Start(questions, sess.TimeLimitSeconds); err != nil {
		r.mu.Lock()
		delete(r.live, sess.ID)
		r.mu.Unlock()
		return nil, err
	}

	r.publish("practice.session.started", map[string]interface{}{
		"session_id": sess.ID,
		"child_id":   sess.ChildID,
		"type":       sess.SessionType,
	})
	return mgr, nil
}

// Get returns the live manager for a session, restoring it from the snapshot
// cache when this process lost it (e.g. after a restart).
func (r *SessionRuntime) Get(ctx context.Context, sessionID string) (*session.Manager, error) {
	entry, err := r.getEntry(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return entry.mgr, nil
}

func (r *SessionRuntime) getEntry(ctx context.Context, sessionID string) (*liveSession, error) {
	r.mu.Lock()
	entry, ok := r.live[sessionID]
	r.mu.Unlock()
	if ok {
		return entry, nil
	}

	if r.Cache == nil {
		return nil, ErrSessionNotFound
	}
	snap, err := r.Cache.Load(ctx, sessionID)
	if err != nil {
		r.log.WithError(err).Warn("snapshot load failed")
		return nil, ErrSessionNotFound
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}

	questions, err := r.Questions.FindByIDs(ctx, snap.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("loading session questions: %w", err)
	}
	mgr, err := session.Restore(*snap, questions)
	if err != nil {
		return nil, err
	}
	entry = &liveSession{mgr: mgr}
	r.wire(entry, questions)

	r.mu.Lock()
	if existing, ok := r.live[sessionID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.live[sessionID] = entry
	r.mu.Unlock()
	return entry, nil
}

// SubmitAnswer records the answer on the live session. The attempt row and
// event are written in the background and never block or fail the call.
func (r *SessionRuntime) SubmitAnswer(ctx context.Context, sessionID, optionID string) (*session.AnswerOutcome, error) {
	mgr, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return mgr.SubmitAnswer(optionID)
}

// Complete finalizes the session: the durable summary and reconciled attempt
// rows are written, the snapshot cache entry cleared, and the manager dropped.
// Unlike per-answer recording this is awaited: the call returns only after the
// persistence hook has run, and a failed write comes back as an error.
func (r *SessionRuntime) Complete(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	entry, err := r.getEntry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := entry.mgr.Complete(); err != nil && !errors.Is(err, session.ErrAlreadyComplete) {
		return nil, err
	}

	// The hook runs synchronously inside Complete on this goroutine; if the
	// time-limit tick beat us to it, Do waits for that run to finish.
	entry.persist.Do(func() {})
	if entry.persistErr != nil {
		return nil, entry.persistErr
	}

	snap := entry.mgr.Snapshot()
	return &snap, nil
}

// wire attaches the runtime side effects to a manager.
func (r *SessionRuntime) wire(entry *liveSession, questions []models.Question) {
	mgr := entry.mgr

	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	mgr.SetMirror(func(snap session.Snapshot) {
		if r.Cache == nil || !shouldMirror(snap) {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := r.Cache.Save(ctx, snap); err != nil {
				r.log.WithError(err).Debug("snapshot mirror failed")
			}
		}()
	})

	// Running in-session score, seeded at the band floor and nudged per answer.
	var scoreMu sync.Mutex
	emberScore := scoring.ScoreFloor

	mgr.SetOnAnswer(func(outcome session.AnswerOutcome) {
		snap := mgr.Snapshot()
		q := byID[outcome.QuestionID]

		scoreMu.Lock()
		emberScore = scoring.UpdateEmberScore(emberScore, scoring.UpdateEvent{
			Correct:    outcome.Correct,
			Difficulty: q.Difficulty,
			TimeRating: timeRating(outcome.TimeTakenSeconds),
		})
		runningScore := emberScore
		scoreMu.Unlock()
		attempt := models.QuestionAttempt{
			ID:               uuid.NewString(),
			SessionID:        snap.SessionID,
			ChildID:          snap.ChildID,
			QuestionID:       outcome.QuestionID,
			Subject:          q.Subject,
			Topic:            q.Topic,
			SelectedOption:   outcome.SelectedOption,
			IsCorrect:        outcome.Correct,
			TimeTakenSeconds: outcome.TimeTakenSeconds,
			CreatedAt:        time.Now(),
		}

		// Fire-and-forget: a dropped row is reconciled at completion.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.Attempts.Create(ctx, &attempt); err != nil {
				r.log.WithError(err).Warn("background attempt write failed")
			}
			r.publish("practice.answer.recorded", map[string]interface{}{
				"session_id":  attempt.SessionID,
				"question_id": attempt.QuestionID,
				"correct":     attempt.IsCorrect,
				"ember_score": runningScore,
			})
		}()
	})

	// Runs on the completing goroutine: the explicit-complete and
	// next-on-last handlers block until the record is durable, and the
	// time-limit tick persists on the timer goroutine.
	mgr.SetOnComplete(func(snap session.Snapshot) {
		entry.persist.Do(func() {
			entry.persistErr = r.persistCompletion(snap, byID)
		})
	})
}

// shouldMirror reports whether a snapshot still belongs in the resume cache.
// The final snapshot is skipped: completion clears the key, and an async save
// landing after the clear would strand a stale entry for the TTL.
func shouldMirror(snap session.Snapshot) bool {
	return snap.State != session.StateComplete
}

// persistCompletion writes the session summary and reconciles attempt rows
// from the session's answer map, then clears the cache mirror. Cache and
// event failures are logged only; a failed summary or attempt write is
// returned so an awaited completion can report it.
func (r *SessionRuntime) persistCompletion(snap session.Snapshot, questions map[string]models.Question) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	correct := 0
	attempts := make([]models.QuestionAttempt, 0, len(snap.Answers))
	for questionID, answer := range snap.Answers {
		q, ok := questions[questionID]
		if !ok {
			continue
		}
		isCorrect := q.IsCorrect(answer)
		if isCorrect {
			correct++
		}
		attempts = append(attempts, models.QuestionAttempt{
			ID:               uuid.NewString(),
			SessionID:        snap.SessionID,
			ChildID:          snap.ChildID,
			QuestionID:       questionID,
			Subject:          q.Subject,
			Topic:            q.Topic,
			SelectedOption:   answer,
			IsCorrect:        isCorrect,
			TimeTakenSeconds: snap.TimeSpent[questionID],
			CreatedAt:        time.Now(),
		})
	}

	var firstErr error
	if err := r.Attempts.UpsertForSession(ctx, attempts); err != nil {
		r.log.WithError(err).Error("attempt reconciliation failed")
		firstErr = err
	}

	emberScore := scoring.CalculateEmberScore(emberFactors(snap, questions, correct))

	update := bson.M{
		"completed":          true,
		"completed_at":       time.Now(),
		"answers":            snap.Answers,
		"time_spent":         snap.TimeSpent,
		"total_time_seconds": snap.ElapsedSeconds,
		"correct_count":      correct,
		"ember_score":        emberScore,
		"paused":             false,
	}
	if err := r.Sessions.Update(ctx, snap.SessionID, update); err != nil {
		r.log.WithError(err).Error("session summary write failed")
		if firstErr == nil {
			firstErr = err
		}
	}

	if r.Cache != nil {
		if err := r.Cache.Clear(ctx, snap.SessionID); err != nil {
			r.log.WithError(err).Debug("snapshot clear failed")
		}
	}

	r.mu.Lock()
	delete(r.live, snap.SessionID)
	r.mu.Unlock()

	r.publish("practice.session.completed", map[string]interface{}{
		"session_id":  snap.SessionID,
		"child_id":    snap.ChildID,
		"answered":    len(snap.Answers),
		"correct":     correct,
		"ember_score": emberScore,
	})
	return firstErr
}

// fullMarksSeconds and zeroMarksSeconds bound the per-question speed rating:
// answers inside 30s rate 1.0, decaying linearly to 0.0 at two minutes.
const (
	fullMarksSeconds = 30
	zeroMarksSeconds = 120
)

// emberFactors derives the score factors for a finished session. Accuracy is
// the correct fraction of answered questions, speed the mean per-question time
// rating, consistency the fraction of the session actually answered, and
// streak the longest correct run in question order.
func emberFactors(snap session.Snapshot, questions map[string]models.Question, correct int) scoring.Factors {
	f := scoring.Factors{Difficulty: dominantTier(snap, questions)}
	if len(snap.Answers) == 0 {
		return f
	}

	f.Accuracy = float64(correct) / float64(len(snap.Answers))
	if len(snap.QuestionIDs) > 0 {
		f.Consistency = float64(len(snap.Answers)) / float64(len(snap.QuestionIDs))
	}

	var speedSum float64
	streak, best := 0, 0
	for _, questionID := range snap.QuestionIDs {
		answer, answered := snap.Answers[questionID]
		if !answered {
			streak = 0
			continue
		}
		speedSum += timeRating(snap.TimeSpent[questionID])
		if q, ok := questions[questionID]; ok && q.IsCorrect(answer) {
			streak++
			if streak > best {
				best = streak
			}
		} else {
			streak = 0
		}
	}
	f.Speed = speedSum / float64(len(snap.Answers))
	f.Streak = best
	return f
}

func timeRating(seconds int) float64 {
	switch {
	case seconds <= fullMarksSeconds:
		return 1.0
	case seconds >= zeroMarksSeconds:
		return 0.0
	default:
		return float64(zeroMarksSeconds-seconds) / float64(zeroMarksSeconds-fullMarksSeconds)
	}
}

// dominantTier picks the most common difficulty among the session's questions.
func dominantTier(snap session.Snapshot, questions map[string]models.Question) models.Tier {
	counts := map[models.Tier]int{}
	for _, questionID := range snap.QuestionIDs {
		if q, ok := questions[questionID]; ok {
			counts[q.Difficulty]++
		}
	}
	tier, bestCount := models.TierStandard, 0
	for _, t := range []models.Tier{models.TierFoundation, models.TierStandard, models.TierChallenge} {
		if counts[t] > bestCount {
			tier, bestCount = t, counts[t]
		}
	}
	return tier
}

func (r *SessionRuntime) publish(eventType string, payload interface{}) {
	if r.Publisher == nil {
		return
	}
	if err := r.Publisher.Publish(eventType, payload); err != nil {
		r.log.WithError(err).Debug("event publish failed")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"practice-service/internal/models"
	"practice-service/internal/repository"
	"practice-service/internal/selection"
)

// ExcludeWindowDays is how far back answered questions are excluded from new
// sessions before the allow-repeats fallback kicks in. Tunable, not a
// contract.
const ExcludeWindowDays = 14

// ErrChildNotFound marks requests naming a child this platform does not know.
var ErrChildNotFound = errors.New("child not found")

// PracticeService is the pool layer between the repositories and the pure
// selector: it fetches candidates, attaches the child's history, and applies
// the relax-and-retry ladder.
type PracticeService struct {
	Questions QuestionSource
	Attempts  AttemptStore
	Sessions  SessionStore
	Children  ChildDirectory

	selector *selection.Selector
	log      *logrus.Logger
}

func NewPracticeService(
	questions QuestionSource,
	attempts AttemptStore,
	sessions SessionStore,
	children ChildDirectory,
	log *logrus.Logger,
) *PracticeService {
	return &PracticeService{
		Questions: questions,
		Attempts:  attempts,
		Sessions:  sessions,
		Children:  children,
		selector:  selection.NewSelector(),
		log:       log,
	}
}

// SelectQuestions returns a question set for the criteria. An empty result is
// a normal outcome. When topic filters produce nothing, it retries once with
// the topics relaxed.
func (s *PracticeService) SelectQuestions(ctx context.Context, criteria selection.Criteria) (*selection.Result, error) {
	s.attachHistory(ctx, &criteria)

	result, err := s.selectOnce(ctx, criteria)
	if err != nil {
		return nil, err
	}

	if len(result.Questions) == 0 && len(criteria.Topics) > 0 {
		s.log.WithFields(logrus.Fields{
			"child_id": criteria.ChildID,
			"topics":   criteria.Topics,
		}).Info("no questions for topics, retrying with topics relaxed")

		relaxed := criteria
		relaxed.Topics = nil
		return s.selectOnce(ctx, relaxed)
	}

	return result, nil
}

func (s *PracticeService) selectOnce(ctx context.Context, criteria selection.Criteria) (*selection.Result, error) {
	candidates, err := s.Questions.FindPublished(ctx, repository.QuestionFilter{
		Subject:    criteria.Subject,
		Topics:     criteria.Topics,
		Difficulty: criteria.Difficulty,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}
	return s.selector.Select(candidates, &criteria), nil
}

// attachHistory fills the exclusion list and recent accuracy from the
// attempt history. Failures degrade to no exclusions / unknown accuracy
// rather than failing the selection.
func (s *PracticeService) attachHistory(ctx context.Context, criteria *selection.Criteria) {
	since := time.Now().AddDate(0, 0, -ExcludeWindowDays)

	excludeIDs, err := s.Attempts.RecentQuestionIDs(ctx, criteria.ChildID, since)
	if err != nil {
		s.log.WithError(err).Warn("recent question lookup failed, selecting without exclusions")
	} else {
		criteria.ExcludeQuestionIDs = excludeIDs
	}

	accuracy, err := s.Attempts.RecentAccuracy(ctx, criteria.ChildID, since)
	if err != nil {
		s.log.WithError(err).Warn("recent accuracy lookup failed")
		accuracy = -1
	}
	criteria.RecentAccuracy = accuracy
}

// SessionPlan is the outcome of creating a session from a recommendation.
type SessionPlan struct {
	SessionID     string
	QuestionIDs   []string
	QuestionCount int
	Redirect      string
}

// CreateSessionFromRecommendation selects questions for the recommendation
// and persists a pending session row. When the full criteria match nothing,
// it retries once with subject only; a nil plan (no error) means nothing
// matched even then.
func (s *PracticeService) CreateSessionFromRecommendation(ctx context.Context, criteria selection.Criteria) (*SessionPlan, error) {
	exists, err := s.Children.Exists(ctx, criteria.ChildID)
	if err != nil {
		return nil, fmt.Errorf("checking child: %w", err)
	}
	if !exists {
		return nil, ErrChildNotFound
	}

	result, err := s.SelectQuestions(ctx, criteria)
	if err != nil {
		return nil, err
	}

	if len(result.Questions) == 0 && criteria.Subject != "" && (len(criteria.Topics) > 0 || criteria.Difficulty != "") {
		s.log.WithFields(logrus.Fields{
			"child_id": criteria.ChildID,
			"subject":  criteria.Subject,
		}).Info("recommendation matched nothing, falling back to subject only")

		fallback := criteria
		fallback.Topics = nil
		fallback.Difficulty = ""
		result, err = s.SelectQuestions(ctx, fallback)
		if err != nil {
			return nil, err
		}
	}

	if len(result.Questions) == 0 {
		return nil, nil
	}

	questionIDs := make([]string, len(result.Questions))
	for i, q := range result.Questions {
		questionIDs[i] = q.ID
	}

	sess := &models.PracticeSession{
		ID:          uuid.NewString(),
		ChildID:     criteria.ChildID,
		SessionType: criteria.SessionType,
		Subject:     criteria.Subject,
		Topics:      criteria.Topics,
		QuestionIDs: questionIDs,
		Answers:     map[string]string{},
		TimeSpent:   map[string]int{},
		StartTime:   time.Now(),
	}
	if criteria.SessionType == models.SessionMock {
		// Mock tests run against the clock: 90 seconds per question.
		sess.TimeLimitSeconds = len(questionIDs) * 90
	}

	if err := s.Sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &SessionPlan{
		SessionID:     sess.ID,
		QuestionIDs:   questionIDs,
		QuestionCount: len(questionIDs),
		Redirect:      fmt.Sprintf("/practice/session/%s", sess.ID),
	}, nil
}

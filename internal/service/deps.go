package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"practice-service/internal/models"
	"practice-service/internal/repository"
)

// Storage interfaces the services depend on. The Mongo repositories satisfy
// them; tests substitute in-memory implementations.

type QuestionSource interface {
	FindPublished(ctx context.Context, f repository.QuestionFilter) ([]models.Question, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Question, error)
}

type AttemptStore interface {
	Create(ctx context.Context, attempt *models.QuestionAttempt) error
	UpsertForSession(ctx context.Context, attempts []models.QuestionAttempt) error
	RecentQuestionIDs(ctx context.Context, childID string, since time.Time) ([]string, error)
	RecentAccuracy(ctx context.Context, childID string, since time.Time) (float64, error)
	TopicPerformance(ctx context.Context, childID string) ([]models.TopicPerformance, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.PracticeSession) error
	FindByID(ctx context.Context, id string) (*models.PracticeSession, error)
	Update(ctx context.Context, id string, update bson.M) error
}

type ChildDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"practice-service/internal/models"
	"practice-service/internal/planner"
)

// PlanService generates weekly study plans from the weakness heatmap.
type PlanService struct {
	Attempts AttemptStore
	log      *logrus.Logger
}

func NewPlanService(attempts AttemptStore, log *logrus.Logger) *PlanService {
	return &PlanService{Attempts: attempts, log: log}
}

// WeeklyPlan returns the child's plan, or nil when the heatmap is empty or
// the aggregate fails. "Plan unavailable" is an empty state, not an error.
func (s *PlanService) WeeklyPlan(ctx context.Context, childID string, opts planner.Options) *models.StudyPlan {
	rows, err := s.Attempts.TopicPerformance(ctx, childID)
	if err != nil {
		s.log.WithError(err).WithField("child_id", childID).Error("heatmap aggregate failed")
		return nil
	}
	return planner.GenerateWeeklyPlan(childID, rows, opts)
}

// Heatmap exposes the raw per-topic aggregate to the progress view.
func (s *PlanService) Heatmap(ctx context.Context, childID string) ([]models.TopicPerformance, error) {
	return s.Attempts.TopicPerformance(ctx, childID)
}

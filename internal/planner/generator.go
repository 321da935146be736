package planner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"practice-service/internal/models"
	"practice-service/internal/weighting"
)

const (
	// MinutesPerQuestion estimates activity duration.
	MinutesPerQuestion = 1.5

	// MinRemainingMinutes stops a day's loop once the leftover budget is too
	// small for a useful activity.
	MinRemainingMinutes = 5

	// MaxFocusAreas caps the week's focus topics.
	MaxFocusAreas = 3

	// TargetAccuracy is the weekly accuracy goal (percent).
	TargetAccuracy = 75
)

type FocusMode string

const (
	FocusBalanced FocusMode = "balanced"
	FocusIntense  FocusMode = "intense"
)

// Options controls plan generation. Zero values fall back to defaults.
type Options struct {
	ActiveDays          []string
	DailyMinutes        int
	MaxActivitiesPerDay int
	FocusMode           FocusMode
	Now                 time.Time
}

func (o *Options) applyDefaults() {
	if len(o.ActiveDays) == 0 {
		o.ActiveDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	}
	if o.DailyMinutes <= 0 {
		o.DailyMinutes = 30
	}
	if o.MaxActivitiesPerDay <= 0 {
		o.MaxActivitiesPerDay = 3
	}
	if o.FocusMode == "" {
		o.FocusMode = FocusBalanced
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
}

// GenerateWeeklyPlan builds a 7-day schedule from weakness-heatmap rows.
// Returns nil when there is no data to plan from: callers render an empty
// state, not an error.
func GenerateWeeklyPlan(childID string, rows []models.TopicPerformance, opts Options) *models.StudyPlan {
	if len(rows) == 0 {
		return nil
	}
	opts.applyDefaults()

	ranked := weighting.Rank(weighting.StatsFromPerformance(rows), opts.Now)
	weak := weighting.WeakAreas(ranked)

	focusAreas := make([]models.FocusArea, 0, MaxFocusAreas)
	for _, tp := range weak {
		focusAreas = append(focusAreas, models.FocusArea{
			Subject:  tp.Subject,
			Topic:    tp.Topic,
			Accuracy: tp.Accuracy,
			Priority: tp.Priority,
		})
		if len(focusAreas) == MaxFocusAreas {
			break
		}
	}

	queue := buildActivityQueue(ranked, len(opts.ActiveDays)*opts.MaxActivitiesPerDay)
	if len(queue) == 0 {
		return nil
	}

	days := scheduleDays(queue, opts)

	totalQuestions := 0
	for _, day := range days {
		for _, a := range day.Activities {
			totalQuestions += a.QuestionCount
		}
	}

	return &models.StudyPlan{
		ChildID:     childID,
		GeneratedAt: opts.Now,
		FocusAreas:  focusAreas,
		Days:        days,
		Goals: []models.WeeklyGoal{
			{
				Type:        models.GoalQuestions,
				Target:      totalQuestions,
				Description: fmt.Sprintf("Answer %d questions this week", totalQuestions),
			},
			{
				Type:        models.GoalAccuracy,
				Target:      TargetAccuracy,
				Description: fmt.Sprintf("Aim for %d%% accuracy", TargetAccuracy),
			},
			{
				Type:        models.GoalConsistent,
				Target:      len(opts.ActiveDays),
				Description: fmt.Sprintf("Practice on all %d active days", len(opts.ActiveDays)),
			},
		},
	}
}

// buildActivityQueue cycles through the ranked topics, highest priority
// first, until enough activities exist to fill the week.
func buildActivityQueue(ranked []weighting.TopicPriority, needed int) []models.PlanActivity {
	if len(ranked) == 0 {
		return nil
	}

	queue := make([]models.PlanActivity, 0, needed)
	for i := 0; len(queue) < needed; i++ {
		tp := ranked[i%len(ranked)]
		count := tp.SuggestedQuestions
		queue = append(queue, models.PlanActivity{
			Subject:          tp.Subject,
			Topic:            tp.Topic,
			QuestionCount:    count,
			EstimatedMinutes: int(math.Ceil(float64(count) * MinutesPerQuestion)),
			Reason:           reasonFor(tp),
		})
	}
	return queue
}

func reasonFor(tp weighting.TopicPriority) string {
	switch {
	case tp.DaysSincePractice < 0:
		return "Not practiced yet"
	case tp.Accuracy < weighting.WeakAccuracyThreshold:
		return fmt.Sprintf("Accuracy %.0f%% needs attention", tp.Accuracy)
	case tp.DaysSincePractice > 14:
		return "Due a refresher"
	default:
		return "Keeping skills sharp"
	}
}

// scheduleDays distributes the queue across active days without exceeding the
// daily minute budget or the per-day activity cap. In balanced mode,
// consecutive activities avoid repeating a subject when an alternative is
// waiting in the queue.
func scheduleDays(queue []models.PlanActivity, opts Options) []models.PlanDay {
	days := make([]models.PlanDay, 0, len(opts.ActiveDays))
	next := 0

	for _, dayName := range opts.ActiveDays {
		day := models.PlanDay{Day: dayName}
		remaining := opts.DailyMinutes

		for remaining > MinRemainingMinutes && len(day.Activities) < opts.MaxActivitiesPerDay && next < len(queue) {
			idx := next
			if opts.FocusMode == FocusBalanced && len(day.Activities) > 0 {
				prev := day.Activities[len(day.Activities)-1].Subject
				if alt := findAlternative(queue, next, prev); alt >= 0 {
					idx = alt
				}
			}

			activity := queue[idx]
			if idx != next {
				// Pull the alternative forward, preserving queue order.
				copy(queue[next+1:idx+1], queue[next:idx])
				queue[next] = activity
			}
			next++

			day.Activities = append(day.Activities, activity)
			day.TotalMinutes += activity.EstimatedMinutes
			remaining -= activity.EstimatedMinutes
		}

		days = append(days, day)
	}

	return days
}

// findAlternative looks a short distance ahead for an activity in a different
// subject. Returns -1 when none exists.
func findAlternative(queue []models.PlanActivity, from int, prevSubject string) int {
	if strings.EqualFold(queue[from].Subject, prevSubject) {
		limit := from + 4
		if limit > len(queue) {
			limit = len(queue)
		}
		for i := from + 1; i < limit; i++ {
			if !strings.EqualFold(queue[i].Subject, prevSubject) {
				return i
			}
		}
		return -1
	}
	return -1
}

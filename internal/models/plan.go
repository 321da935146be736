package models

import "time"

// PlanActivity is a single topic-practice block scheduled on a day.
type PlanActivity struct {
	Subject          string `json:"subject"`
	Topic            string `json:"topic"`
	QuestionCount    int    `json:"question_count"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	Reason           string `json:"reason"`
}

// PlanDay holds the activities scheduled for one active day of the week.
type PlanDay struct {
	Day          string         `json:"day"`
	Activities   []PlanActivity `json:"activities"`
	TotalMinutes int            `json:"total_minutes"`
}

// FocusArea is a weak topic the week's plan concentrates on.
type FocusArea struct {
	Subject  string  `json:"subject"`
	Topic    string  `json:"topic"`
	Accuracy float64 `json:"accuracy"`
	Priority float64 `json:"priority"`
}

type GoalType string

const (
	GoalQuestions  GoalType = "questions"
	GoalAccuracy   GoalType = "accuracy"
	GoalConsistent GoalType = "consistency"
)

// WeeklyGoal is one of the three targets attached to a plan.
type WeeklyGoal struct {
	Type        GoalType `json:"type"`
	Target      int      `json:"target"`
	Description string   `json:"description"`
}

// StudyPlan is a 7-day activity schedule generated from the weakness heatmap.
type StudyPlan struct {
	ChildID     string       `json:"child_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	FocusAreas  []FocusArea  `json:"focus_areas"`
	Days        []PlanDay    `json:"days"`
	Goals       []WeeklyGoal `json:"goals"`
}

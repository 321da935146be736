package models

import "time"

type SessionType string

const (
	SessionQuick SessionType = "quick"
	SessionFocus SessionType = "focus"
	SessionMock  SessionType = "mock"
)

// ValidSessionType reports whether st is a known session type.
func ValidSessionType(st SessionType) bool {
	switch st {
	case SessionQuick, SessionFocus, SessionMock:
		return true
	}
	return false
}

// DefaultQuestionCount returns the question count used when the caller does
// not specify one: quick=10, focus=25, mock=50.
func (st SessionType) DefaultQuestionCount() int {
	switch st {
	case SessionFocus:
		return 25
	case SessionMock:
		return 50
	default:
		return 10
	}
}

type PracticeSession struct {
	ID               string            `bson:"_id,omitempty" json:"id"`
	ChildID          string            `bson:"child_id" json:"child_id"`
	SessionType      SessionType       `bson:"session_type" json:"session_type"`
	Subject          string            `bson:"subject,omitempty" json:"subject,omitempty"`
	Topics           []string          `bson:"topics,omitempty" json:"topics,omitempty"`
	QuestionIDs      []string          `bson:"question_ids" json:"question_ids"`
	Answers          map[string]string `bson:"answers" json:"answers"`
	TimeSpent        map[string]int    `bson:"time_spent" json:"time_spent"`
	StartTime        time.Time         `bson:"start_time" json:"start_time"`
	Paused           bool              `bson:"paused" json:"paused"`
	Completed        bool              `bson:"completed" json:"completed"`
	CompletedAt      time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	TimeLimitSeconds int               `bson:"time_limit_seconds,omitempty" json:"time_limit_seconds,omitempty"`
	TotalTimeSeconds int               `bson:"total_time_seconds" json:"total_time_seconds"`
	CorrectCount     int               `bson:"correct_count" json:"correct_count"`
	EmberScore       int               `bson:"ember_score,omitempty" json:"ember_score,omitempty"`
}

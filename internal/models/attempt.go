package models

import "time"

// QuestionAttempt is one answered question. Append-only: one row per answer,
// written fire-and-forget during the session and reconciled at completion.
type QuestionAttempt struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	SessionID        string    `bson:"session_id" json:"session_id"`
	ChildID          string    `bson:"child_id" json:"child_id"`
	QuestionID       string    `bson:"question_id" json:"question_id"`
	Subject          string    `bson:"subject" json:"subject"`
	Topic            string    `bson:"topic" json:"topic"`
	SelectedOption   string    `bson:"selected_option" json:"selected_option"`
	IsCorrect        bool      `bson:"is_correct" json:"is_correct"`
	TimeTakenSeconds int       `bson:"time_taken_seconds" json:"time_taken_seconds"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}

// TopicPerformance is one row of the weakness heatmap aggregate: per-topic
// accuracy and recency derived from the attempt history.
type TopicPerformance struct {
	Subject       string     `bson:"subject" json:"subject"`
	Topic         string     `bson:"topic" json:"topic"`
	Attempts      int        `bson:"attempts" json:"attempts"`
	Correct       int        `bson:"correct" json:"correct"`
	Accuracy      float64    `bson:"accuracy" json:"accuracy"`
	LastPracticed *time.Time `bson:"last_practiced,omitempty" json:"last_practiced,omitempty"`
}

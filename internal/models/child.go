package models

import "time"

// Child is the learner profile. Account management lives in the parent
// platform; this service only reads the row to validate ownership context.
type Child struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	ParentID  string    `bson:"parent_id" json:"parent_id"`
	Name      string    `bson:"name" json:"name"`
	YearGroup int       `bson:"year_group" json:"year_group"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

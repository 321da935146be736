package models

import (
	"strings"
	"time"
	"unicode"
)

type Tier string

const (
	TierFoundation Tier = "foundation"
	TierStandard   Tier = "standard"
	TierChallenge  Tier = "challenge"
)

// ValidTier reports whether t is one of the three difficulty tiers.
func ValidTier(t Tier) bool {
	switch t {
	case TierFoundation, TierStandard, TierChallenge:
		return true
	}
	return false
}

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

type Option struct {
	ID   string `bson:"id" json:"id"`
	Text string `bson:"text" json:"text"`
}

type Question struct {
	ID                string              `bson:"_id,omitempty" json:"id"`
	Subject           string              `bson:"subject" json:"subject"`
	Topic             string              `bson:"topic" json:"topic"`
	Subtopic          string              `bson:"subtopic,omitempty" json:"subtopic,omitempty"`
	Content           string              `bson:"content" json:"content"`
	Options           [OptionCount]Option `bson:"options" json:"options"`
	CorrectOption     string              `bson:"correct_option" json:"correct_option"`
	Explanation       string              `bson:"explanation" json:"explanation"`
	SimpleExplanation string              `bson:"simple_explanation,omitempty" json:"simple_explanation,omitempty"`
	Difficulty        Tier                `bson:"difficulty" json:"difficulty"`
	EmberScore        int                 `bson:"ember_score" json:"ember_score"`
	Published         bool                `bson:"published" json:"published"`
	CreatedAt         time.Time           `bson:"created_at" json:"created_at"`
}

// IsCorrect reports whether the given option id is the designated answer.
func (q *Question) IsCorrect(optionID string) bool {
	return optionID != "" && optionID == q.CorrectOption
}

// NormalizedContent returns the question text lowercased with punctuation
// stripped and whitespace collapsed. Two questions with the same normalized
// content are treated as duplicates during selection.
func (q *Question) NormalizedContent() string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(q.Content) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

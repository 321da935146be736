package weighting

import (
	"sort"
	"strings"
	"time"

	"practice-service/internal/models"
)

const (
	// MasteryTarget is the accuracy (percent) at which a topic stops
	// contributing mastery-gap priority.
	MasteryTarget = 90.0

	// WeakAccuracyThreshold marks a topic as a weak area.
	WeakAccuracyThreshold = 70.0

	// MaxWeakAreas caps the weak-area list to the highest priorities.
	MaxWeakAreas = 5

	// DefaultImportance is used when a topic has no curated entry.
	DefaultImportance = 5
)

// topicImportance is the curated 1-10 importance table for 11+ exam topics.
// Lookup is exact-match first, then substring-match in either direction.
var topicImportance = map[string]int{
	// Maths
	"fractions":            9,
	"percentages":          8,
	"ratio and proportion": 8,
	"word problems":        9,
	"algebra":              7,
	"number sequences":     7,
	"geometry":             6,
	"measurement":          6,
	"place value":          5,
	"statistics":           5,

	// English
	"comprehension": 10,
	"vocabulary":    9,
	"grammar":       8,
	"spelling":      7,
	"cloze":         7,
	"punctuation":   6,

	// Verbal reasoning
	"verbal analogies":      8,
	"synonyms and antonyms": 8,
	"letter sequences":      7,
	"word codes":            7,
	"hidden words":          6,

	// Non-verbal reasoning
	"shape sequences":           7,
	"matrices":                  7,
	"rotations and reflections": 6,
	"odd one out":               6,
}

// TopicStats is the per-topic input to the ranking: accuracy as a 0-100
// percentage and the time of the most recent practice (nil = never).
type TopicStats struct {
	Subject       string
	Topic         string
	Accuracy      float64
	LastPracticed *time.Time
}

// TopicPriority is a ranked topic with its component scores.
type TopicPriority struct {
	Subject            string  `json:"subject"`
	Topic              string  `json:"topic"`
	Accuracy           float64 `json:"accuracy"`
	Importance         int     `json:"importance"`
	RecencyBoost       float64 `json:"recency_boost"`
	Priority           float64 `json:"priority"`
	DaysSincePractice  int     `json:"days_since_practice"` // -1 when never practiced
	SuggestedQuestions int     `json:"suggested_questions"`
}

// ImportanceFor looks up the curated importance for a topic name.
func ImportanceFor(topic string) int {
	key := strings.ToLower(strings.TrimSpace(topic))
	if key == "" {
		return DefaultImportance
	}
	if imp, ok := topicImportance[key]; ok {
		return imp
	}
	for name, imp := range topicImportance {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return imp
		}
	}
	return DefaultImportance
}

// RecencyBoost is a step function of days since last practice:
// <3 days = 0, 3-7 = 5, 7-14 = 10, >14 = 20, never = 30.
func RecencyBoost(lastPracticed *time.Time, now time.Time) float64 {
	if lastPracticed == nil {
		return 30
	}
	days := int(now.Sub(*lastPracticed).Hours() / 24)
	switch {
	case days < 3:
		return 0
	case days <= 7:
		return 5
	case days <= 14:
		return 10
	default:
		return 20
	}
}

// SuggestedQuestions maps accuracy to a next-session question count in the
// 8-15 range: the weaker the topic, the more questions it gets.
func SuggestedQuestions(accuracy float64) int {
	switch {
	case accuracy < 40:
		return 15
	case accuracy < 55:
		return 12
	case accuracy < 70:
		return 10
	default:
		return 8
	}
}

// Rank converts topic stats into priorities sorted descending. Callers supply
// now because recency makes the ranking time-dependent.
func Rank(stats []TopicStats, now time.Time) []TopicPriority {
	priorities := make([]TopicPriority, 0, len(stats))

	for _, ts := range stats {
		importance := ImportanceFor(ts.Topic)
		boost := RecencyBoost(ts.LastPracticed, now)

		gap := MasteryTarget - ts.Accuracy
		if gap < 0 {
			gap = 0
		}
		priority := gap*(1+float64(importance)/10) + boost

		days := -1
		if ts.LastPracticed != nil {
			days = int(now.Sub(*ts.LastPracticed).Hours() / 24)
		}

		priorities = append(priorities, TopicPriority{
			Subject:            ts.Subject,
			Topic:              ts.Topic,
			Accuracy:           ts.Accuracy,
			Importance:         importance,
			RecencyBoost:       boost,
			Priority:           priority,
			DaysSincePractice:  days,
			SuggestedQuestions: SuggestedQuestions(ts.Accuracy),
		})
	}

	sort.Slice(priorities, func(i, j int) bool {
		if priorities[i].Priority != priorities[j].Priority {
			return priorities[i].Priority > priorities[j].Priority
		}
		return priorities[i].Topic < priorities[j].Topic
	})

	return priorities
}

// WeakAreas returns the topics below the accuracy threshold, capped to the
// top MaxWeakAreas by priority. Input must already be ranked.
func WeakAreas(ranked []TopicPriority) []TopicPriority {
	weak := make([]TopicPriority, 0, MaxWeakAreas)
	for _, tp := range ranked {
		if tp.Accuracy < WeakAccuracyThreshold {
			weak = append(weak, tp)
			if len(weak) == MaxWeakAreas {
				break
			}
		}
	}
	return weak
}

// StatsFromPerformance adapts heatmap rows to ranking input.
func StatsFromPerformance(rows []models.TopicPerformance) []TopicStats {
	stats := make([]TopicStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, TopicStats{
			Subject:       row.Subject,
			Topic:         row.Topic,
			Accuracy:      row.Accuracy,
			LastPracticed: row.LastPracticed,
		})
	}
	return stats
}

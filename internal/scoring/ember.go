package scoring

import (
	"math"

	"practice-service/internal/models"
)

// Ember Score band. Scores never leave [60,100] regardless of input.
const (
	ScoreFloor   = 60
	ScoreCeiling = 100
)

// MaxUpdateDelta caps how far a single answer can move the score.
const MaxUpdateDelta = 5

// Factor weights for the blended performance score.
const (
	accuracyWeight    = 0.5
	speedWeight       = 0.3
	consistencyWeight = 0.2
)

// tierMultipliers scale the blended score by difficulty tier.
var tierMultipliers = map[models.Tier]float64{
	models.TierFoundation: 0.93,
	models.TierStandard:   1.0,
	models.TierChallenge:  1.05,
}

// Factors is the performance tuple behind an Ember Score. Accuracy, Speed and
// Consistency are nominally in [0,1]; out-of-range values are tolerated and
// cannot push the result outside the score band.
type Factors struct {
	Accuracy    float64
	Speed       float64
	Consistency float64
	Difficulty  models.Tier
	Streak      int
}

// UpdateEvent describes a single answered question for incremental scoring.
// TimeRating is in [0,1]: 1 means well inside the expected time.
type UpdateEvent struct {
	Correct    bool
	Difficulty models.Tier
	TimeRating float64
}

// CalculateEmberScore converts a factor tuple into a score in [60,100].
func CalculateEmberScore(f Factors) int {
	blend := accuracyWeight*f.Accuracy + speedWeight*f.Speed + consistencyWeight*f.Consistency
	score := ScoreFloor + (ScoreCeiling-ScoreFloor)*blend
	score *= tierMultiplier(f.Difficulty)

	streak := f.Streak
	if streak < 0 {
		streak = 0
	}
	if streak > 10 {
		streak = 10
	}
	score += 0.2 * float64(streak)

	return clampScore(int(math.Round(score)))
}

// UpdateEmberScore nudges the current score after one answered question.
// Correct answers move it up, incorrect down, never by more than
// MaxUpdateDelta, and the result stays in [60,100].
func UpdateEmberScore(current int, e UpdateEvent) int {
	base := deltaForTier(e.Difficulty)

	delta := base
	if e.Correct {
		rating := e.TimeRating
		if rating < 0 {
			rating = 0
		}
		if rating > 1 {
			rating = 1
		}
		delta += int(math.Round(rating * 2))
	}
	if delta > MaxUpdateDelta {
		delta = MaxUpdateDelta
	}

	if !e.Correct {
		delta = -delta
	}
	return clampScore(clampScore(current) + delta)
}

func deltaForTier(t models.Tier) int {
	switch t {
	case models.TierChallenge:
		return 3
	case models.TierStandard:
		return 2
	default:
		return 1
	}
}

func tierMultiplier(t models.Tier) float64 {
	if m, ok := tierMultipliers[t]; ok {
		return m
	}
	return 1.0
}

func clampScore(s int) int {
	if s < ScoreFloor {
		return ScoreFloor
	}
	if s > ScoreCeiling {
		return ScoreCeiling
	}
	return s
}

package selection

import "practice-service/internal/models"

// Criteria defines what the selector should pick for one session.
type Criteria struct {
	ChildID     string             `json:"child_id"`
	SessionType models.SessionType `json:"session_type"`
	Count       int                `json:"count"`
	Subject     string             `json:"subject,omitempty"`
	Topics      []string           `json:"topics,omitempty"`
	Difficulty  models.Tier        `json:"difficulty,omitempty"`

	// ExcludeQuestionIDs lists questions the child answered inside the recent
	// window. The selector falls back to allowing repeats when excluding them
	// would leave too few candidates.
	ExcludeQuestionIDs []string `json:"exclude_question_ids,omitempty"`

	// RecentAccuracy (0-100) skews the difficulty mix when no explicit
	// difficulty is requested. Negative means unknown.
	RecentAccuracy float64 `json:"recent_accuracy"`
}

// ResolveCount returns the requested count, or the session-type default
// (quick=10, focus=25, mock=50) when none was given.
func (c *Criteria) ResolveCount() int {
	if c.Count > 0 {
		return c.Count
	}
	return c.SessionType.DefaultQuestionCount()
}

// Result contains the selected questions and selection metadata.
type Result struct {
	Questions       []models.Question   `json:"questions"`
	TotalCandidates int                 `json:"total_candidates"`
	RepeatsAllowed  bool                `json:"repeats_allowed"`
	TierMix         map[models.Tier]int `json:"tier_mix"`
}

// tierShares is a difficulty distribution expressed as fractions summing to 1.
type tierShares map[models.Tier]float64

// mixForAccuracy skews the difficulty distribution toward the child's recent
// accuracy: struggling children get mostly foundation questions, excelling
// children mostly challenge.
func mixForAccuracy(accuracy float64) tierShares {
	switch {
	case accuracy < 0:
		// No history yet.
		return tierShares{models.TierFoundation: 0.4, models.TierStandard: 0.4, models.TierChallenge: 0.2}
	case accuracy < 50:
		return tierShares{models.TierFoundation: 0.6, models.TierStandard: 0.3, models.TierChallenge: 0.1}
	case accuracy <= 75:
		return tierShares{models.TierFoundation: 0.3, models.TierStandard: 0.5, models.TierChallenge: 0.2}
	default:
		return tierShares{models.TierFoundation: 0.1, models.TierStandard: 0.4, models.TierChallenge: 0.5}
	}
}

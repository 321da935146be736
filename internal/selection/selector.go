package selection

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"practice-service/internal/models"
)

// Selector picks a deduplicated, subject-balanced, difficulty-appropriate set
// of questions from an in-memory candidate pool. It never touches storage;
// the service layer fetches candidates and applies retry fallbacks.
type Selector struct {
	rand *rand.Rand
}

// NewSelector creates a selector seeded from the clock.
func NewSelector() *Selector {
	return &Selector{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSelectorWithSeed creates a deterministic selector for tests.
func NewSelectorWithSeed(seed int64) *Selector {
	return &Selector{rand: rand.New(rand.NewSource(seed))}
}

// Select returns up to criteria count questions. An empty result is a normal
// outcome, not an error: callers decide whether to relax filters and retry.
func (s *Selector) Select(candidates []models.Question, criteria *Criteria) *Result {
	count := criteria.ResolveCount()

	pool := s.filter(candidates, criteria)
	pool = dedupe(pool)

	fresh, repeats := splitExcluded(pool, criteria.ExcludeQuestionIDs)

	repeatsAllowed := false
	if len(fresh) < count && len(repeats) > 0 {
		// Not enough unseen questions: fall back to allowing repeats.
		fresh = append(fresh, repeats...)
		repeatsAllowed = true
	}

	var selected []models.Question
	if criteria.Difficulty != "" {
		selected = s.pickBalanced(fresh, count, criteria.Subject == "")
	} else {
		selected = s.pickWithTierMix(fresh, count, mixForAccuracy(criteria.RecentAccuracy), criteria.Subject == "")
	}

	s.shuffle(selected)

	return &Result{
		Questions:       selected,
		TotalCandidates: len(pool),
		RepeatsAllowed:  repeatsAllowed,
		TierMix:         countByTier(selected),
	}
}

// filter applies the hard criteria: published only, then subject, topic and
// explicit difficulty when given.
func (s *Selector) filter(candidates []models.Question, criteria *Criteria) []models.Question {
	topicSet := make(map[string]bool, len(criteria.Topics))
	for _, t := range criteria.Topics {
		topicSet[strings.ToLower(strings.TrimSpace(t))] = true
	}

	filtered := make([]models.Question, 0, len(candidates))
	for _, q := range candidates {
		if !q.Published {
			continue
		}
		if criteria.Subject != "" && !strings.EqualFold(q.Subject, criteria.Subject) {
			continue
		}
		if len(topicSet) > 0 && !topicSet[strings.ToLower(q.Topic)] && !topicSet[strings.ToLower(q.Subtopic)] {
			continue
		}
		if criteria.Difficulty != "" && q.Difficulty != criteria.Difficulty {
			continue
		}
		filtered = append(filtered, q)
	}
	return filtered
}

// dedupe drops questions sharing an id or normalized content with an earlier
// candidate.
func dedupe(questions []models.Question) []models.Question {
	seenID := make(map[string]bool, len(questions))
	seenText := make(map[string]bool, len(questions))

	unique := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if seenID[q.ID] {
			continue
		}
		text := q.NormalizedContent()
		if text != "" && seenText[text] {
			continue
		}
		seenID[q.ID] = true
		seenText[text] = true
		unique = append(unique, q)
	}
	return unique
}

func splitExcluded(questions []models.Question, excludeIDs []string) (fresh, excluded []models.Question) {
	if len(excludeIDs) == 0 {
		return questions, nil
	}
	excludeSet := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excludeSet[id] = true
	}
	for _, q := range questions {
		if excludeSet[q.ID] {
			excluded = append(excluded, q)
		} else {
			fresh = append(fresh, q)
		}
	}
	return fresh, excluded
}

// pickWithTierMix selects per-tier counts derived from the shares, then fills
// any shortfall from whatever remains.
func (s *Selector) pickWithTierMix(pool []models.Question, count int, shares tierShares, balanceSubjects bool) []models.Question {
	byTier := make(map[models.Tier][]models.Question)
	for _, q := range pool {
		byTier[q.Difficulty] = append(byTier[q.Difficulty], q)
	}

	targets := tierTargets(shares, count)

	selected := make([]models.Question, 0, count)
	taken := make(map[string]bool, count)

	for _, tier := range []models.Tier{models.TierFoundation, models.TierStandard, models.TierChallenge} {
		want := targets[tier]
		if want == 0 || len(byTier[tier]) == 0 {
			continue
		}
		picked := s.pickFrom(byTier[tier], want, balanceSubjects)
		for _, q := range picked {
			selected = append(selected, q)
			taken[q.ID] = true
		}
	}

	// Shortfall: fill from any tier.
	if len(selected) < count {
		var remaining []models.Question
		for _, q := range pool {
			if !taken[q.ID] {
				remaining = append(remaining, q)
			}
		}
		selected = append(selected, s.pickFrom(remaining, count-len(selected), balanceSubjects)...)
	}

	return selected
}

// pickBalanced selects without tier targets (explicit difficulty already
// filtered the pool).
func (s *Selector) pickBalanced(pool []models.Question, count int, balanceSubjects bool) []models.Question {
	return s.pickFrom(pool, count, balanceSubjects)
}

// pickFrom selects up to count questions. With balanceSubjects it round-robins
// across subjects so no subject filter yields approximately balanced
// representation; within a subject the pick is random.
func (s *Selector) pickFrom(pool []models.Question, count int, balanceSubjects bool) []models.Question {
	if count <= 0 || len(pool) == 0 {
		return nil
	}
	if len(pool) <= count {
		out := make([]models.Question, len(pool))
		copy(out, pool)
		return out
	}

	if !balanceSubjects {
		shuffled := make([]models.Question, len(pool))
		copy(shuffled, pool)
		s.shuffle(shuffled)
		return shuffled[:count]
	}

	bySubject := make(map[string][]models.Question)
	var subjects []string
	for _, q := range pool {
		key := strings.ToLower(q.Subject)
		if _, ok := bySubject[key]; !ok {
			subjects = append(subjects, key)
		}
		bySubject[key] = append(bySubject[key], q)
	}
	for _, key := range subjects {
		s.shuffle(bySubject[key])
	}

	selected := make([]models.Question, 0, count)
	for len(selected) < count {
		progressed := false
		for _, key := range subjects {
			if len(selected) == count {
				break
			}
			group := bySubject[key]
			if len(group) == 0 {
				continue
			}
			selected = append(selected, group[0])
			bySubject[key] = group[1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return selected
}

// tierTargets converts shares into whole counts summing to total, assigning
// rounding slack to the largest share (same fix-up the pool distribution uses).
func tierTargets(shares tierShares, total int) map[models.Tier]int {
	targets := make(map[models.Tier]int, len(shares))
	allocated := 0
	for tier, share := range shares {
		n := int(math.Round(share * float64(total)))
		targets[tier] = n
		allocated += n
	}

	if allocated != total {
		maxTier := models.TierStandard
		maxShare := 0.0
		for tier, share := range shares {
			if share > maxShare {
				maxShare = share
				maxTier = tier
			}
		}
		targets[maxTier] += total - allocated
		if targets[maxTier] < 0 {
			targets[maxTier] = 0
		}
	}
	return targets
}

func countByTier(questions []models.Question) map[models.Tier]int {
	mix := make(map[models.Tier]int)
	for _, q := range questions {
		mix[q.Difficulty]++
	}
	return mix
}

func (s *Selector) shuffle(questions []models.Question) {
	s.rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

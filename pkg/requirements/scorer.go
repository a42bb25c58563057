package requirements

import (
	"math"

	"reqpilot/pkg/config"
)

// GeneralDetailsCategory is returned by NextCategoryToAsk when nothing is
// missing; the caller should fall back to a generic "tell me more" question.
const GeneralDetailsCategory = "general_details"

// Completeness is the result of scoring a requirement map against the rubric.
type Completeness struct {
	// Score is the weighted fraction of required information gathered, in
	// [0, 1], rounded to two decimals.
	Score float64
	// Missing lists required categories scoring below 1.0, in rubric
	// declaration order.
	Missing []string
	// OptionalUnsatisfied lists optional categories with no items, in rubric
	// declaration order. Reported for UI purposes only; optional categories
	// never affect Score.
	OptionalUnsatisfied []string
}

// Scorer computes completeness against a fixed category rubric. Construct one
// per process from the loaded config; scoring is deterministic for identical
// inputs.
type Scorer struct {
	categories []config.CategoryRubric
	priority   []string
	threshold  float64
}

// NewScorer builds a scorer from the configured rubric.
func NewScorer(cfg *config.Config) *Scorer {
	return &Scorer{
		categories: append([]config.CategoryRubric(nil), cfg.Categories...),
		priority:   append([]string(nil), cfg.PriorityOrder...),
		threshold:  cfg.ReadyThreshold,
	}
}

// Calculate scores the requirement map. Only required categories contribute
// to the score: each contributes weight * min(1, count/min_items), or weight
// on presence when min_items is zero.
func (s *Scorer) Calculate(reqs Map) Completeness {
	total := 0.0
	var missing []string
	var optionalUnsatisfied []string

	for i := range s.categories {
		cat := &s.categories[i]
		count := reqs.Count(cat.Name)

		if !cat.Required {
			if count == 0 {
				optionalUnsatisfied = append(optionalUnsatisfied, cat.Name)
			}
			continue
		}

		var categoryScore float64
		if cat.MinItems == 0 {
			if count > 0 {
				categoryScore = 1.0
			}
		} else {
			categoryScore = math.Min(1.0, float64(count)/float64(cat.MinItems))
		}

		total += categoryScore * cat.Weight
		if categoryScore < 1.0 {
			missing = append(missing, cat.Name)
		}
	}

	return Completeness{
		Score:               math.Round(total*100) / 100,
		Missing:             missing,
		OptionalUnsatisfied: optionalUnsatisfied,
	}
}

// IsReady reports whether a score meets the configured ready threshold.
func (s *Scorer) IsReady(score float64) bool {
	return score >= s.threshold
}

// Threshold returns the configured ready threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// NextCategoryToAsk picks the highest-priority missing category: the first
// entry of the configured priority order present in missing, else the first
// missing category, else the general-details sentinel.
func (s *Scorer) NextCategoryToAsk(missing []string) string {
	if len(missing) == 0 {
		return GeneralDetailsCategory
	}

	for _, cat := range s.priority {
		for _, m := range missing {
			if m == cat {
				return cat
			}
		}
	}

	return missing[0]
}

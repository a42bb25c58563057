// Package requirements implements the requirement store merge engine and the
// weighted completeness scorer that together drive conversation readiness.
package requirements

import (
	"strings"
)

// Map holds gathered requirements: category name to an ordered list of
// distinct items. Distinctness is case-insensitive; first-insertion order is
// preserved.
type Map map[string][]string

// AutoDecidePlaceholder marks a category the user has delegated to the
// system ("you decide"). It counts as a real item for minimum-count purposes
// so an explicit opt-out never blocks readiness.
const AutoDecidePlaceholder = "[AI_DECIDE]"

// Merge folds incoming items into current without case-insensitive
// duplication. Pure: current is never mutated; the returned map shares no
// slice headers with it. Empty or missing incoming categories are no-ops,
// and nothing is ever removed or edited.
func Merge(current, incoming Map) Map {
	merged := current.Clone()

	for category, items := range incoming {
		if len(items) == 0 {
			continue
		}

		seen := make(map[string]bool, len(merged[category]))
		for _, existing := range merged[category] {
			seen[strings.ToLower(existing)] = true
		}

		for _, item := range items {
			key := strings.ToLower(item)
			if seen[key] {
				continue
			}
			merged[category] = append(merged[category], item)
			seen[key] = true
		}
	}

	return merged
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for category, items := range m {
		out[category] = append([]string(nil), items...)
	}
	return out
}

// Count returns the number of items in a category.
func (m Map) Count(category string) int {
	return len(m[category])
}

// TotalItems returns the number of items across all categories.
func (m Map) TotalItems() int {
	total := 0
	for _, items := range m {
		total += len(items)
	}
	return total
}

// Has reports whether an item already exists in a category, compared
// case-insensitively.
func (m Map) Has(category, item string) bool {
	for _, existing := range m[category] {
		if strings.EqualFold(existing, item) {
			return true
		}
	}
	return false
}

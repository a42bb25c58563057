package assistant

import (
	"fmt"
	"strings"

	"reqpilot/pkg/requirements"
)

// briefSections fixes the category order and headings of the generation
// brief. Categories absent from the requirements map are skipped; unknown
// extra categories are appended after the fixed ones in map-independent
// (sorted-by-first-appearance is not needed; rubric covers all known) order.
//
//nolint:gochecknoglobals // Immutable formatting table.
var briefSections = []struct {
	category string
	heading  string
}{
	{"project_type", "Project Type"},
	{"core_features", "Core Features"},
	{"tech_stack", "Technology Stack"},
	{"user_roles", "User Roles"},
	{"business_goals", "Business Goals"},
	{"non_functional", "Non-Functional Requirements"},
	{"constraints", "Constraints"},
	{"integrations", "Integrations"},
}

// FormatBrief renders the requirements map into the deterministic project
// brief handed to the document pipeline. The same map always produces the
// same brief.
func FormatBrief(reqs requirements.Map) string {
	var b strings.Builder
	b.WriteString("# Project Brief\n")

	for _, section := range briefSections {
		items := reqs[section.category]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", section.heading)
		for _, item := range items {
			if item == requirements.AutoDecidePlaceholder {
				b.WriteString("- (choose a sensible default)\n")
				continue
			}
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return b.String()
}

// CountWords counts whitespace-separated words in a document.
func CountWords(doc string) int {
	return len(strings.Fields(doc))
}

// CountSections counts markdown second-level headings in a document.
func CountSections(doc string) int {
	count := 0
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "## ") {
			count++
		}
	}
	return count
}

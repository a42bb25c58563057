package requirements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIntoEmpty(t *testing.T) {
	merged := Merge(Map{}, Map{"core_features": {"login", "search"}})

	assert.Equal(t, []string{"login", "search"}, merged["core_features"])
}

func TestMergeEmptyIncomingIsNoOp(t *testing.T) {
	current := Map{"project_type": {"Web App"}}
	merged := Merge(current, Map{})

	assert.Equal(t, current, merged)
}

func TestMergeCaseInsensitiveDedup(t *testing.T) {
	current := Map{"project_type": {"web app"}}
	merged := Merge(current, Map{"project_type": {"Web App", "Mobile App"}})

	require.Len(t, merged["project_type"], 2)
	assert.Equal(t, []string{"web app", "Mobile App"}, merged["project_type"])
}

func TestMergeDedupWithinIncoming(t *testing.T) {
	merged := Merge(Map{}, Map{"core_features": {"Search", "search", "SEARCH"}})

	assert.Equal(t, []string{"Search"}, merged["core_features"])
}

func TestMergeIdempotent(t *testing.T) {
	incoming := Map{
		"core_features":  {"login", "payments", "reports"},
		"business_goals": {"increase retention"},
	}

	once := Merge(Map{"project_type": {"SaaS"}}, incoming)
	twice := Merge(once, incoming)

	for category := range once {
		assert.Len(t, twice[category], len(once[category]), "category %s grew on re-merge", category)
	}
}

func TestMergePreservesInsertionOrder(t *testing.T) {
	merged := Merge(Map{"core_features": {"a", "b"}}, Map{"core_features": {"c", "B", "d"}})

	assert.Equal(t, []string{"a", "b", "c", "d"}, merged["core_features"])
}

func TestMergeDoesNotMutateCurrent(t *testing.T) {
	current := Map{"core_features": {"login"}}
	_ = Merge(current, Map{"core_features": {"search"}, "tech_stack": {"Go"}})

	assert.Equal(t, Map{"core_features": {"login"}}, current)
}

func TestMergeSkipsEmptyCategoryLists(t *testing.T) {
	merged := Merge(Map{}, Map{"constraints": {}})

	_, exists := merged["constraints"]
	assert.False(t, exists)
}

func TestHasAndCount(t *testing.T) {
	m := Map{"tech_stack": {"Go", "Postgres"}}

	assert.True(t, m.Has("tech_stack", "go"))
	assert.False(t, m.Has("tech_stack", "Redis"))
	assert.Equal(t, 2, m.Count("tech_stack"))
	assert.Equal(t, 0, m.Count("user_roles"))
	assert.Equal(t, 2, m.TotalItems())
}

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(features []Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = f.Name
	}
	return out
}

func TestDependencyOrder_Chain(t *testing.T) {
	features := []Feature{
		{Name: "C", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"A"}},
		{Name: "A"},
	}
	ordered := DependencyOrder(features)
	assert.Equal(t, []string{"A", "B", "C"}, names(ordered))
}

func TestDependencyOrder_DeclarationOrderBreaksTies(t *testing.T) {
	features := []Feature{
		{Name: "B"},
		{Name: "A"},
		{Name: "C", Dependencies: []string{"A", "B"}},
	}
	ordered := DependencyOrder(features)
	assert.Equal(t, []string{"B", "A", "C"}, names(ordered))
}

func TestDependencyOrder_Diamond(t *testing.T) {
	features := []Feature{
		{Name: "top", Dependencies: []string{"left", "right"}},
		{Name: "left", Dependencies: []string{"base"}},
		{Name: "right", Dependencies: []string{"base"}},
		{Name: "base"},
	}
	ordered := DependencyOrder(features)
	require.Len(t, ordered, 4)
	assert.Equal(t, "base", ordered[0].Name)
	assert.Equal(t, "top", ordered[3].Name)
	assert.Equal(t, "left", ordered[1].Name, "declaration order among ready features")
}

func TestDetectCycles_ReportsPath(t *testing.T) {
	features := []Feature{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"C"}},
		{Name: "C", Dependencies: []string{"A"}},
	}
	err := detectCycles(features)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"A", "B", "C", "A"}, pe.Cycle)
}

func TestDetectCycles_CleanGraph(t *testing.T) {
	features := []Feature{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A"}},
	}
	assert.NoError(t, detectCycles(features))
}

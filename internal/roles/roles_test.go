package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_CoversEveryProfile(t *testing.T) {
	all := All()
	assert.Len(t, all, len(profiles))
	for _, r := range all {
		p, ok := ProfileFor(r)
		require.True(t, ok, "missing profile for %s", r)
		assert.NotEmpty(t, p.PromptTemplate, "empty prompt for %s", r)
		assert.NotEmpty(t, p.Description, "empty description for %s", r)
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("coder")
	require.NoError(t, err)
	assert.Equal(t, Coder, r)

	_, err = Parse("wizard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestWeightsFor_FormalizerAlwaysFavorsContracts(t *testing.T) {
	w := WeightsFor(Formalizer)
	assert.True(t, w.ContractAlways)
	assert.InDelta(t, 0.4, w.ContractBonus, 1e-9)
}

func TestWeightsFor_UnknownRoleIsZero(t *testing.T) {
	w := WeightsFor(Role("wizard"))
	assert.Zero(t, w.CodeModuleBonus)
	assert.Zero(t, w.ContractBonus)
	assert.False(t, w.ContractAlways)
}

package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

func TestLOD_AutosomalDominant(t *testing.T) {
	tests := []struct {
		name        string
		familyCount int
		wantLOD     float64
		wantPoints  float64
	}{
		{"no families", 0, 0.0, 0.0},
		{"below first band", 3, 0.903, 0.0},
		{"first band", 4, 1.204, 0.5},
		{"mid band", 7, 2.107, 1.5},
		{"strong segregation", 10, 3.01, 3.0},
		{"saturated", 17, 5.117, 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := LOD(tt.familyCount, domain.InheritanceAutosomalDominant)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantLOD, result.LODScore, 1e-9)
			assert.Equal(t, tt.wantPoints, result.PointsAwarded)
			assert.Equal(t, "family_count_autosomal_dominant", result.Method)
		})
	}
}

func TestLOD_AutosomalRecessive(t *testing.T) {
	result, err := LOD(16, domain.InheritanceAutosomalRecessive)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, result.LODScore, 1e-9)
	assert.Equal(t, 1.5, result.PointsAwarded)
	assert.Equal(t, "family_count_autosomal_recessive", result.Method)
}

func TestLOD_XLinked(t *testing.T) {
	result, err := LOD(10, domain.InheritanceXLinked)
	require.NoError(t, err)
	assert.InDelta(t, 3.01, result.LODScore, 1e-9)
	assert.Equal(t, 3.0, result.PointsAwarded)
}

func TestLOD_UnsupportedPattern(t *testing.T) {
	_, err := LOD(5, domain.InheritancePattern("mitochondrial"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedInheritance))
}

func TestLOD_NegativeFamilyCount(t *testing.T) {
	_, err := LOD(-1, domain.InheritanceAutosomalDominant)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidEvidence))
}

func TestLOD_Deterministic(t *testing.T) {
	first, err := LOD(8, domain.InheritanceAutosomalDominant)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := LOD(8, domain.InheritanceAutosomalDominant)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

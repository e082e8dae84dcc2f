package scoring

import (
	"fmt"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// perFamilyLOD is the expected LOD contribution of one informative family
// under each supported inheritance pattern. Dominant and X-linked pedigrees
// contribute log10(2) per informative family; recessive pedigrees are less
// informative per family.
var perFamilyLOD = map[domain.InheritancePattern]float64{
	domain.InheritanceAutosomalDominant:  0.301,
	domain.InheritanceAutosomalRecessive: 0.125,
	domain.InheritanceXLinked:            0.301,
}

// lodMethod names the estimation method recorded on the result.
var lodMethod = map[domain.InheritancePattern]string{
	domain.InheritanceAutosomalDominant:  "family_count_autosomal_dominant",
	domain.InheritanceAutosomalRecessive: "family_count_autosomal_recessive",
	domain.InheritanceXLinked:            "family_count_x_linked",
}

// lodPointBands maps a summed LOD score to segregation points, highest band
// first. Inclusive floors, mirroring the classification threshold table.
var lodPointBands = []struct {
	Floor  float64
	Points float64
}{
	{5.0, 7.0},
	{4.0, 5.0},
	{3.0, 3.0},
	{2.0, 1.5},
	{1.5, 1.0},
	{1.0, 0.5},
}

// LOD converts family-segregation counts and an inheritance pattern into a
// LOD score and the segregation points it awards. Deterministic; an
// unsupported pattern returns ErrUnsupportedInheritance and the caller
// treats the item as invalid input to scoring.
func LOD(familyCount int, pattern domain.InheritancePattern) (*domain.LODResult, error) {
	per, ok := perFamilyLOD[pattern]
	if !ok {
		return nil, fmt.Errorf("lod calculation: %w: %q", domain.ErrUnsupportedInheritance, pattern)
	}
	if familyCount < 0 {
		return nil, fmt.Errorf("lod calculation: %w: negative family count %d", domain.ErrInvalidEvidence, familyCount)
	}

	lod := float64(familyCount) * per

	points := 0.0
	for _, band := range lodPointBands {
		if lod >= band.Floor {
			points = band.Points
			break
		}
	}

	return &domain.LODResult{
		LODScore:      lod,
		PointsAwarded: points,
		Method:        lodMethod[pattern],
	}, nil
}

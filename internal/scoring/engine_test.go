package scoring

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

func newTestEngine() *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewEngine(logger)
}

func scoredItem(id string, category domain.EvidenceCategory, points float64) domain.EvidenceItem {
	data, _ := json.Marshal(map[string]float64{"points": points})
	return domain.EvidenceItem{
		ID:               id,
		CurationID:       "cur-1",
		Category:         category,
		Type:             category.Type(),
		Data:             data,
		ValidationStatus: domain.ValidationValid,
	}
}

func segregationItem(id string, familyCount int, pattern domain.InheritancePattern) domain.EvidenceItem {
	data, _ := json.Marshal(domain.SegregationData{
		FamilyCount:        familyCount,
		InheritancePattern: pattern,
	})
	return domain.EvidenceItem{
		ID:               id,
		CurationID:       "cur-1",
		Category:         domain.CategorySegregation,
		Type:             domain.EvidenceTypeGenetic,
		Data:             data,
		ValidationStatus: domain.ValidationValid,
	}
}

func TestEngine_Score_EmptySet(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score(nil)

	assert.Equal(t, 0.0, result.TotalScore)
	assert.Equal(t, domain.ClassificationNoKnown, result.Classification)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.ValidationErrors)
}

func TestEngine_Score_SingleCategory(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score([]domain.EvidenceItem{
		scoredItem("ev-1", domain.CategoryCaseLevel, 3.0),
		scoredItem("ev-2", domain.CategoryCaseLevel, 2.5),
	})

	assert.True(t, result.IsValid)
	assert.Equal(t, 5.5, result.TotalScore)
	assert.Equal(t, 5.5, result.GeneticScore)
	assert.Equal(t, 0.0, result.ExperimentalScore)
	assert.Equal(t, domain.ClassificationModerate, result.Classification)

	breakdown := result.Breakdown[domain.CategoryCaseLevel]
	assert.Equal(t, 5.5, breakdown.Raw)
	assert.Equal(t, 5.5, breakdown.Capped)
	assert.Equal(t, []string{"ev-1", "ev-2"}, breakdown.ItemIDs)
}

func TestEngine_Score_CategoryCaps(t *testing.T) {
	tests := []struct {
		name     string
		category domain.EvidenceCategory
		raw      float64
		max      float64
	}{
		{"case_level capped at 12", domain.CategoryCaseLevel, 20.0, 12.0},
		{"case_control capped at 6", domain.CategoryCaseControl, 9.0, 6.0},
		{"expression capped at 2", domain.CategoryExpression, 5.0, 2.0},
		{"protein_function capped at 2", domain.CategoryProteinFunction, 3.0, 2.0},
		{"models capped at 4", domain.CategoryModels, 6.0, 4.0},
		{"rescue capped at 2", domain.CategoryRescue, 4.0, 2.0},
	}

	engine := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Score([]domain.EvidenceItem{
				scoredItem("ev-1", tt.category, tt.raw),
			})
			breakdown := result.Breakdown[tt.category]
			assert.Equal(t, tt.raw, breakdown.Raw)
			assert.Equal(t, tt.max, breakdown.Capped)
		})
	}
}

func TestEngine_Score_SegregationThroughLOD(t *testing.T) {
	engine := newTestEngine()

	// 10 dominant families: LOD 3.01, 3 segregation points.
	result := engine.Score([]domain.EvidenceItem{
		segregationItem("ev-seg", 10, domain.InheritanceAutosomalDominant),
	})

	require.True(t, result.IsValid)
	assert.Equal(t, 3.0, result.TotalScore)
	assert.Equal(t, domain.ClassificationModerate, result.Classification)
	assert.Equal(t, 3.0, result.Breakdown[domain.CategorySegregation].Capped)
}

func TestEngine_Score_SegregationCap(t *testing.T) {
	engine := newTestEngine()

	// Two saturated segregation items exceed the category cap of 7.
	result := engine.Score([]domain.EvidenceItem{
		segregationItem("ev-1", 20, domain.InheritanceAutosomalDominant),
		segregationItem("ev-2", 20, domain.InheritanceAutosomalDominant),
	})

	breakdown := result.Breakdown[domain.CategorySegregation]
	assert.Equal(t, 14.0, breakdown.Raw)
	assert.Equal(t, 7.0, breakdown.Capped)
}

func TestEngine_Score_GeneticAndExperimentalTotalsCapped(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score([]domain.EvidenceItem{
		scoredItem("ev-1", domain.CategoryCaseLevel, 12.0),
		scoredItem("ev-2", domain.CategoryCaseControl, 6.0),
		segregationItem("ev-3", 20, domain.InheritanceAutosomalDominant),
		scoredItem("ev-4", domain.CategoryExpression, 2.0),
		scoredItem("ev-5", domain.CategoryProteinFunction, 2.0),
		scoredItem("ev-6", domain.CategoryModels, 4.0),
		scoredItem("ev-7", domain.CategoryRescue, 2.0),
	})

	// Sub-scores sum to 25 genetic and 10 experimental before clamping.
	assert.Equal(t, 12.0, result.GeneticScore)
	assert.Equal(t, 6.0, result.ExperimentalScore)
	assert.Equal(t, 18.0, result.TotalScore)
	assert.Equal(t, domain.ClassificationDefinitive, result.Classification)
}

func TestEngine_Score_OrderIndependent(t *testing.T) {
	engine := newTestEngine()

	items := []domain.EvidenceItem{
		scoredItem("ev-1", domain.CategoryCaseLevel, 1.1),
		scoredItem("ev-2", domain.CategoryCaseLevel, 2.3),
		scoredItem("ev-3", domain.CategoryCaseLevel, 0.7),
		segregationItem("ev-4", 10, domain.InheritanceAutosomalDominant),
		scoredItem("ev-5", domain.CategoryCaseControl, 2.0),
		scoredItem("ev-6", domain.CategoryExpression, 0.5),
		scoredItem("ev-7", domain.CategoryModels, 1.5),
		{ID: "ev-8", Category: "bogus", Type: domain.EvidenceTypeGenetic},
	}

	reference := engine.Score(items)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]domain.EvidenceItem, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := engine.Score(shuffled)
		got.ScoredAt = reference.ScoredAt
		assert.Equal(t, reference, got, "shuffle %d produced a different result", i)
	}
}

func TestEngine_Score_UnknownCategoryExcludedOthersScored(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score([]domain.EvidenceItem{
		scoredItem("ev-1", domain.CategoryCaseLevel, 4.0),
		{ID: "ev-2", Category: "linkage_disequilibrium", Type: domain.EvidenceTypeGenetic},
	})

	assert.False(t, result.IsValid)
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "ev-2")
	assert.Equal(t, 4.0, result.TotalScore)
	assert.Equal(t, domain.ClassificationModerate, result.Classification)
}

func TestEngine_Score_TypeMismatch(t *testing.T) {
	engine := newTestEngine()

	item := scoredItem("ev-1", domain.CategoryExpression, 1.0)
	item.Type = domain.EvidenceTypeGenetic

	result := engine.Score([]domain.EvidenceItem{item})

	assert.False(t, result.IsValid)
	assert.Equal(t, 0.0, result.TotalScore)
}

func TestEngine_Score_MalformedPayload(t *testing.T) {
	engine := newTestEngine()

	item := domain.EvidenceItem{
		ID:       "ev-1",
		Category: domain.CategoryModels,
		Type:     domain.EvidenceTypeExperimental,
		Data:     json.RawMessage(`{"points": "not a number"`),
	}

	result := engine.Score([]domain.EvidenceItem{item})

	assert.False(t, result.IsValid)
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "ev-1")
}

func TestEngine_Score_UnsupportedInheritanceExcluded(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score([]domain.EvidenceItem{
		segregationItem("ev-1", 10, domain.InheritancePattern("digenic")),
		scoredItem("ev-2", domain.CategoryCaseLevel, 2.0),
	})

	assert.False(t, result.IsValid)
	assert.Equal(t, 2.0, result.TotalScore)
}

func TestEngine_Score_FlaggedInvalidItemExcluded(t *testing.T) {
	engine := newTestEngine()

	item := scoredItem("ev-1", domain.CategoryCaseLevel, 5.0)
	item.ValidationStatus = domain.ValidationInvalid

	result := engine.Score([]domain.EvidenceItem{item})

	assert.False(t, result.IsValid)
	assert.Equal(t, 0.0, result.TotalScore)
	assert.Equal(t, domain.ClassificationNoKnown, result.Classification)
}

func TestClassify_Thresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.Classification
	}{
		{15.0, domain.ClassificationDefinitive},
		{12.0, domain.ClassificationDefinitive},
		{11.99, domain.ClassificationStrong},
		{7.0, domain.ClassificationStrong},
		{6.99, domain.ClassificationModerate},
		{2.0, domain.ClassificationModerate},
		{1.0, domain.ClassificationLimited},
		{0.1, domain.ClassificationLimited},
		{0.05, domain.ClassificationNoKnown},
		{0.0, domain.ClassificationNoKnown},
		{-0.5, domain.ClassificationDisputed},
		{-1.0, domain.ClassificationDisputed},
		{-1.01, domain.ClassificationRefuted},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Classify(tt.score))
		})
	}
}

func TestClassify_MonotonicInScore(t *testing.T) {
	prev := domain.Classify(20.0)
	for score := 20.0; score >= -3.0; score -= 0.01 {
		got := domain.Classify(score)
		assert.GreaterOrEqual(t, got.Rank(), prev.Rank(),
			"classification weakened non-monotonically at score %.2f", score)
		prev = got
	}
}

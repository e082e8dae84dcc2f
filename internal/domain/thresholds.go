package domain

// ClassificationThreshold pairs a classification with the minimum total
// score required to reach it. Floors are inclusive: a score exactly at a
// floor belongs to that classification.
type ClassificationThreshold struct {
	Classification Classification `json:"classification"`
	Floor          float64        `json:"floor"`
}

// classificationThresholds is the SOP threshold table, ordered from the
// strongest classification downward. Scanning order matters: Classify
// selects the first threshold whose floor the score meets.
var classificationThresholds = []ClassificationThreshold{
	{ClassificationDefinitive, 12.0},
	{ClassificationStrong, 7.0},
	{ClassificationModerate, 2.0},
	{ClassificationLimited, 0.1},
	{ClassificationNoKnown, 0.0},
	{ClassificationDisputed, -1.0},
}

// Thresholds returns a copy of the SOP threshold table, strongest first.
// The table is immutable per deployment; callers get a defensive copy.
func Thresholds() []ClassificationThreshold {
	out := make([]ClassificationThreshold, len(classificationThresholds))
	copy(out, classificationThresholds)
	return out
}

// Classify maps a total score to its classification by selecting the
// highest threshold whose floor the score meets or exceeds. Scores below
// the disputed floor classify as refuted.
func Classify(totalScore float64) Classification {
	for _, t := range classificationThresholds {
		if totalScore >= t.Floor {
			return t.Classification
		}
	}
	return ClassificationRefuted
}

// Category score caps from the SOP scoring matrix. Each category sub-score
// is clamped independently before the genetic and experimental totals are
// clamped again.
const (
	MaxCaseLevelScore       = 12.0
	MaxSegregationScore     = 7.0
	MaxCaseControlScore     = 6.0
	MaxExpressionScore      = 2.0
	MaxProteinFunctionScore = 2.0
	MaxModelsScore          = 4.0
	MaxRescueScore          = 2.0

	MaxGeneticScore      = 12.0
	MaxExperimentalScore = 6.0
)

// CategoryMax returns the SOP cap for a category sub-score, and whether the
// category is known.
func CategoryMax(category EvidenceCategory) (float64, bool) {
	switch category {
	case CategoryCaseLevel:
		return MaxCaseLevelScore, true
	case CategorySegregation:
		return MaxSegregationScore, true
	case CategoryCaseControl:
		return MaxCaseControlScore, true
	case CategoryExpression:
		return MaxExpressionScore, true
	case CategoryProteinFunction:
		return MaxProteinFunctionScore, true
	case CategoryModels:
		return MaxModelsScore, true
	case CategoryRescue:
		return MaxRescueScore, true
	default:
		return 0, false
	}
}

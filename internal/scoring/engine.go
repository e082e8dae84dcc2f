// Package scoring implements the evidence scoring engine and the LOD score
// calculator of the gene-disease validity SOP. Scoring is a pure function
// of the evidence item set: no side effects, and the same set yields an
// identical result regardless of input order.
package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// Engine aggregates evidence items into genetic and experimental
// sub-scores and maps the total to a classification via the threshold
// table.
type Engine struct {
	logger *logrus.Logger
}

// NewEngine creates a new scoring engine.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{logger: logger}
}

// pointsPayload is the generic payload of non-segregation evidence items.
type pointsPayload struct {
	Points float64 `json:"points"`
}

// Score computes the scoring result for an evidence item set. Invalid
// items are excluded from the sums and reported; the remaining items are
// still scored. An empty set scores 0.0 / no_known / valid.
func (e *Engine) Score(items []domain.EvidenceItem) *domain.ScoringResult {
	result := &domain.ScoringResult{
		Breakdown: make(map[domain.EvidenceCategory]domain.CategoryScore),
		IsValid:   true,
		ScoredAt:  time.Now().UTC(),
	}

	// Partition by category. Items within a category are sorted by ID so
	// floating-point sums are independent of input order.
	byCategory := make(map[domain.EvidenceCategory][]domain.EvidenceItem)
	for _, item := range items {
		if err := e.validateItem(item); err != nil {
			result.IsValid = false
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}
	sort.Strings(result.ValidationErrors)

	for _, catItems := range byCategory {
		sort.Slice(catItems, func(i, j int) bool { return catItems[i].ID < catItems[j].ID })
	}

	genetic := 0.0
	for _, category := range domain.GeneticCategories() {
		score := e.scoreCategory(category, byCategory[category], result)
		genetic += score.Capped
		result.Breakdown[category] = score
	}
	if genetic > domain.MaxGeneticScore {
		genetic = domain.MaxGeneticScore
	}

	experimental := 0.0
	for _, category := range domain.ExperimentalCategories() {
		score := e.scoreCategory(category, byCategory[category], result)
		experimental += score.Capped
		result.Breakdown[category] = score
	}
	if experimental > domain.MaxExperimentalScore {
		experimental = domain.MaxExperimentalScore
	}

	result.GeneticScore = genetic
	result.ExperimentalScore = experimental
	result.TotalScore = genetic + experimental
	result.Classification = domain.Classify(result.TotalScore)

	e.logger.WithFields(logrus.Fields{
		"total_score":       result.TotalScore,
		"genetic_score":     result.GeneticScore,
		"experimental":      result.ExperimentalScore,
		"classification":    result.Classification.String(),
		"items":             len(items),
		"validation_errors": len(result.ValidationErrors),
	}).Debug("Evidence scoring completed")

	return result
}

// validateItem rejects items that cannot contribute to scoring: unknown
// category, type mismatched to category, or a pre-flagged invalid status.
func (e *Engine) validateItem(item domain.EvidenceItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.ValidationStatus == domain.ValidationInvalid {
		return fmt.Errorf("evidence item %s: %w: item flagged invalid", item.ID, domain.ErrInvalidEvidence)
	}
	return nil
}

// scoreCategory sums item contributions within one category and clamps the
// sub-score at the category maximum. Items whose payload cannot be scored
// are excluded and reported on the result.
func (e *Engine) scoreCategory(category domain.EvidenceCategory, items []domain.EvidenceItem, result *domain.ScoringResult) domain.CategoryScore {
	max, _ := domain.CategoryMax(category)
	score := domain.CategoryScore{Category: category, Max: max}

	for _, item := range items {
		points, err := e.itemContribution(item)
		if err != nil {
			result.IsValid = false
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		score.Raw += points
		score.ItemIDs = append(score.ItemIDs, item.ID)
	}

	score.Capped = score.Raw
	if score.Capped > max {
		score.Capped = max
	}
	if score.Capped < 0 {
		score.Capped = 0
	}
	return score
}

// itemContribution resolves one item's score. Segregation items are scored
// through the LOD calculator from their family-count payload; all other
// categories carry their points in the payload, falling back to a
// previously computed score.
func (e *Engine) itemContribution(item domain.EvidenceItem) (float64, error) {
	if item.Category == domain.CategorySegregation {
		var data domain.SegregationData
		if len(item.Data) == 0 {
			return 0, fmt.Errorf("evidence item %s: %w: missing segregation payload", item.ID, domain.ErrInvalidEvidence)
		}
		if err := json.Unmarshal(item.Data, &data); err != nil {
			return 0, fmt.Errorf("evidence item %s: %w: malformed segregation payload: %v", item.ID, domain.ErrInvalidEvidence, err)
		}
		lod, err := LOD(data.FamilyCount, data.InheritancePattern)
		if err != nil {
			return 0, fmt.Errorf("evidence item %s: %w", item.ID, err)
		}
		return lod.PointsAwarded, nil
	}

	if item.ComputedScore != nil {
		return *item.ComputedScore, nil
	}
	if len(item.Data) == 0 {
		// Pending item with no payload contributes nothing.
		return 0, nil
	}
	var payload pointsPayload
	if err := json.Unmarshal(item.Data, &payload); err != nil {
		return 0, fmt.Errorf("evidence item %s: %w: malformed payload: %v", item.ID, domain.ErrInvalidEvidence, err)
	}
	return payload.Points, nil
}

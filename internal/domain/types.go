// Package domain contains core business entities and types for gene-disease
// validity curation following the ClinGen gene-disease validity SOP.
//
// Reference: Strande et al. (2017) Evaluating the Clinical Validity of
// Gene-Disease Associations. Am J Hum Genet. 100(6):895-906.
// doi: 10.1016/j.ajhg.2017.04.015
package domain

// Classification represents the gene-disease validity classification derived
// from the total evidence score.
type Classification string

const (
	ClassificationDefinitive Classification = "definitive"
	ClassificationStrong     Classification = "strong"
	ClassificationModerate   Classification = "moderate"
	ClassificationLimited    Classification = "limited"
	ClassificationNoKnown    Classification = "no_known"
	ClassificationDisputed   Classification = "disputed"
	ClassificationRefuted    Classification = "refuted"
)

// IsValid validates that the classification is one of the SOP categories.
func (c Classification) IsValid() bool {
	switch c {
	case ClassificationDefinitive, ClassificationStrong, ClassificationModerate,
		ClassificationLimited, ClassificationNoKnown, ClassificationDisputed,
		ClassificationRefuted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// Rank returns the position of the classification in the SOP ordering,
// strongest first. Used to check monotonicity of threshold mapping.
func (c Classification) Rank() int {
	switch c {
	case ClassificationDefinitive:
		return 0
	case ClassificationStrong:
		return 1
	case ClassificationModerate:
		return 2
	case ClassificationLimited:
		return 3
	case ClassificationNoKnown:
		return 4
	case ClassificationDisputed:
		return 5
	case ClassificationRefuted:
		return 6
	default:
		return 7
	}
}

// EvidenceType distinguishes the two halves of the SOP scoring matrix.
type EvidenceType string

const (
	EvidenceTypeGenetic      EvidenceType = "genetic"
	EvidenceTypeExperimental EvidenceType = "experimental"
)

// EvidenceCategory represents the SOP evidence category of an evidence item.
type EvidenceCategory string

const (
	CategoryCaseLevel       EvidenceCategory = "case_level"
	CategorySegregation     EvidenceCategory = "segregation"
	CategoryCaseControl     EvidenceCategory = "case_control"
	CategoryExpression      EvidenceCategory = "expression"
	CategoryProteinFunction EvidenceCategory = "protein_function"
	CategoryModels          EvidenceCategory = "models"
	CategoryRescue          EvidenceCategory = "rescue"
)

// IsValid validates the evidence category.
func (ec EvidenceCategory) IsValid() bool {
	switch ec {
	case CategoryCaseLevel, CategorySegregation, CategoryCaseControl,
		CategoryExpression, CategoryProteinFunction, CategoryModels, CategoryRescue:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (ec EvidenceCategory) String() string {
	return string(ec)
}

// Type returns which half of the scoring matrix the category contributes to.
func (ec EvidenceCategory) Type() EvidenceType {
	switch ec {
	case CategoryCaseLevel, CategorySegregation, CategoryCaseControl:
		return EvidenceTypeGenetic
	default:
		return EvidenceTypeExperimental
	}
}

// GeneticCategories lists the categories feeding the genetic sub-score, in
// SOP matrix order.
func GeneticCategories() []EvidenceCategory {
	return []EvidenceCategory{CategoryCaseLevel, CategorySegregation, CategoryCaseControl}
}

// ExperimentalCategories lists the categories feeding the experimental
// sub-score, in SOP matrix order.
func ExperimentalCategories() []EvidenceCategory {
	return []EvidenceCategory{CategoryExpression, CategoryProteinFunction, CategoryModels, CategoryRescue}
}

// ValidationStatus represents the validation state of an evidence item.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// IsValid validates the validation status.
func (vs ValidationStatus) IsValid() bool {
	switch vs {
	case ValidationPending, ValidationValid, ValidationInvalid:
		return true
	default:
		return false
	}
}

// InheritancePattern represents the mode of inheritance used by the LOD
// score calculator for segregation evidence.
type InheritancePattern string

const (
	InheritanceAutosomalDominant  InheritancePattern = "autosomal_dominant"
	InheritanceAutosomalRecessive InheritancePattern = "autosomal_recessive"
	InheritanceXLinked            InheritancePattern = "x_linked"
)

// IsValid validates the inheritance pattern.
func (ip InheritancePattern) IsValid() bool {
	switch ip {
	case InheritanceAutosomalDominant, InheritanceAutosomalRecessive, InheritanceXLinked:
		return true
	default:
		return false
	}
}

// String returns the string representation of the inheritance pattern.
func (ip InheritancePattern) String() string {
	return string(ip)
}

// CurationStatus represents a state in the curation workflow lifecycle.
type CurationStatus string

const (
	StatusDraft            CurationStatus = "draft"
	StatusSubmitted        CurationStatus = "submitted"
	StatusUnderReview      CurationStatus = "under_review"
	StatusApproved         CurationStatus = "approved"
	StatusRejected         CurationStatus = "rejected"
	StatusChangesRequested CurationStatus = "changes_requested"
)

// IsValid validates the curation status.
func (cs CurationStatus) IsValid() bool {
	switch cs {
	case StatusDraft, StatusSubmitted, StatusUnderReview,
		StatusApproved, StatusRejected, StatusChangesRequested:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (cs CurationStatus) String() string {
	return string(cs)
}

// IsTerminal reports whether the status ends the curation version's
// lifecycle. A new curation cycle must be opened to continue.
func (cs CurationStatus) IsTerminal() bool {
	return cs == StatusApproved || cs == StatusRejected
}

// PrecurationStatus represents a state in the smaller precuration lifecycle
// that gates curation creation.
type PrecurationStatus string

const (
	PrecurationDraft     PrecurationStatus = "draft"
	PrecurationSubmitted PrecurationStatus = "submitted"
	PrecurationApproved  PrecurationStatus = "approved"
	PrecurationRejected  PrecurationStatus = "rejected"
)

// IsValid validates the precuration status.
func (ps PrecurationStatus) IsValid() bool {
	switch ps {
	case PrecurationDraft, PrecurationSubmitted, PrecurationApproved, PrecurationRejected:
		return true
	default:
		return false
	}
}

// ReviewStatus represents the state of a peer review.
type ReviewStatus string

const (
	ReviewPending          ReviewStatus = "pending"
	ReviewApproved         ReviewStatus = "approved"
	ReviewRejected         ReviewStatus = "rejected"
	ReviewChangesRequested ReviewStatus = "changes_requested"
)

// IsValid validates the review status.
func (rs ReviewStatus) IsValid() bool {
	switch rs {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewChangesRequested:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the review has reached a final decision.
func (rs ReviewStatus) IsTerminal() bool {
	return rs == ReviewApproved || rs == ReviewRejected
}

// Role represents an actor's role within a scope, consulted by the
// workflow machine's authorization guard.
type Role string

const (
	RoleCurator  Role = "curator"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// IsValid validates the role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCurator, RoleReviewer, RoleAdmin:
		return true
	default:
		return false
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// precurationTable declares the smaller precuration lifecycle that gates
// curation creation.
var precurationTable = map[domain.PrecurationStatus]map[domain.PrecurationStatus]struct{}{
	domain.PrecurationDraft: {
		domain.PrecurationSubmitted: {},
	},
	domain.PrecurationSubmitted: {
		domain.PrecurationApproved: {},
		domain.PrecurationRejected: {},
	},
}

// precurationRoles maps each precuration target state to the roles that
// may request it.
var precurationRoles = map[domain.PrecurationStatus][]domain.Role{
	domain.PrecurationSubmitted: {domain.RoleCurator, domain.RoleAdmin},
	domain.PrecurationApproved:  {domain.RoleReviewer, domain.RoleAdmin},
	domain.PrecurationRejected:  {domain.RoleReviewer, domain.RoleAdmin},
}

// IsLegalPrecurationEdge reports whether (from, to) is a declared
// precuration transition.
func IsLegalPrecurationEdge(from, to domain.PrecurationStatus) bool {
	tos, ok := precurationTable[from]
	if !ok {
		return false
	}
	_, ok = tos[to]
	return ok
}

// CreatePrecuration opens a new draft precuration establishing the
// gene-disease-inheritance context.
func (m *Machine) CreatePrecuration(ctx context.Context, scopeID, geneSymbol, diseaseName string, pattern domain.InheritancePattern, actor domain.Actor) (*domain.Precuration, error) {
	if !pattern.IsValid() {
		return nil, fmt.Errorf("precuration: %w: %q", domain.ErrInvalidInheritance, pattern)
	}

	ok, err := m.gate.HasRole(ctx, actor.ID, scopeID, domain.RoleCurator, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("checking scope permission: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("actor %s in scope %s: %w", actor.ID, scopeID, domain.ErrUnauthorized)
	}

	now := time.Now().UTC()
	precuration := &domain.Precuration{
		ID:                 uuid.New().String(),
		ScopeID:            scopeID,
		GeneSymbol:         geneSymbol,
		DiseaseName:        diseaseName,
		InheritancePattern: pattern,
		Status:             domain.PrecurationDraft,
		CreatedBy:          actor.ID,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := m.precurations.CreatePrecuration(ctx, precuration); err != nil {
		return nil, fmt.Errorf("creating precuration: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"precuration_id": precuration.ID,
		"gene_symbol":    geneSymbol,
		"disease_name":   diseaseName,
		"inheritance":    pattern.String(),
	}).Info("Precuration created")

	return precuration, nil
}

// TransitionPrecuration moves a precuration through its lifecycle with the
// same guard ordering as curations: authorization, legality, concurrency.
func (m *Machine) TransitionPrecuration(ctx context.Context, precurationID string, to domain.PrecurationStatus, observedVersion int64, actor domain.Actor) (*domain.Precuration, error) {
	precuration, err := m.precurations.GetPrecuration(ctx, precurationID)
	if err != nil {
		return nil, fmt.Errorf("loading precuration %s: %w", precurationID, err)
	}

	roles, ok := precurationRoles[to]
	if !ok {
		return nil, fmt.Errorf("precuration %s: %w: no transition into %s", precurationID, domain.ErrIllegalTransition, to)
	}

	// Stale observed versions fail with the concurrency kind before any
	// guard judges edges against state the caller never saw.
	if observedVersion != 0 && observedVersion != precuration.Version {
		return nil, fmt.Errorf("precuration %s: observed version %d, current version %d: %w",
			precurationID, observedVersion, precuration.Version, domain.ErrConcurrentModification)
	}
	allowed, err := m.gate.HasRole(ctx, actor.ID, precuration.ScopeID, roles...)
	if err != nil {
		return nil, fmt.Errorf("checking scope permission: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("precuration %s: %w", precurationID, domain.ErrUnauthorized)
	}

	if !IsLegalPrecurationEdge(precuration.Status, to) {
		return nil, fmt.Errorf("precuration %s: %w: %s -> %s",
			precurationID, domain.ErrIllegalTransition, precuration.Status, to)
	}

	if observedVersion == 0 {
		observedVersion = precuration.Version
	}
	newVersion, err := m.precurations.UpdatePrecurationStatus(ctx, precurationID,
		domain.VersionedStatusPrecuration{Status: precuration.Status, Version: observedVersion}, to)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, fmt.Errorf("precuration %s: %w", precurationID, domain.ErrConcurrentModification)
		}
		return nil, fmt.Errorf("updating precuration %s: %w", precurationID, err)
	}

	m.logger.WithFields(logrus.Fields{
		"precuration_id": precurationID,
		"from_state":     string(precuration.Status),
		"to_state":       string(to),
		"actor_id":       actor.ID,
	}).Info("Precuration transition applied")

	precuration.Status = to
	precuration.Version = newVersion
	return precuration, nil
}

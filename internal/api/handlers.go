package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// actorHeader names the header carrying the already-authenticated actor
// identity. Authentication itself happens upstream; the server trusts the
// gateway-injected identity and re-resolves roles through the permission
// gate on every transition.
const actorHeader = "X-Actor-ID"

func (s *Server) actor(c *gin.Context) (domain.Actor, bool) {
	actorID := c.GetHeader(actorHeader)
	if actorID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":          "missing " + actorHeader + " header",
			"correlation_id": c.GetString("correlation_id"),
		})
		return domain.Actor{}, false
	}
	return domain.Actor{ID: actorID}, true
}

// respondError maps domain errors onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrReviewAlreadyOpen):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrMissingOrSelfReview),
		errors.Is(err, domain.ErrScoringIncomplete),
		errors.Is(err, domain.ErrPrecurationNotApproved):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCurationDeleted):
		status = http.StatusGone
	case errors.Is(err, domain.ErrInvalidEvidence),
		errors.Is(err, domain.ErrInvalidEvidenceCategory),
		errors.Is(err, domain.ErrInvalidInheritance),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrUnsupportedInheritance):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	c.JSON(status, gin.H{
		"error":          err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}

type createPrecurationRequest struct {
	ScopeID            string `json:"scope_id" binding:"required"`
	GeneSymbol         string `json:"gene_symbol" binding:"required"`
	DiseaseName        string `json:"disease_name" binding:"required"`
	InheritancePattern string `json:"inheritance_pattern" binding:"required"`
}

func (s *Server) handleCreatePrecuration(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req createPrecurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	precuration, err := s.machine.CreatePrecuration(c.Request.Context(),
		req.ScopeID, req.GeneSymbol, req.DiseaseName,
		domain.InheritancePattern(req.InheritancePattern), actor)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, precuration)
}

type precurationTransitionRequest struct {
	ToState         string `json:"to_state" binding:"required"`
	ObservedVersion int64  `json:"observed_version"`
}

func (s *Server) handlePrecurationTransition(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req precurationTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	precuration, err := s.machine.TransitionPrecuration(c.Request.Context(),
		c.Param("id"), domain.PrecurationStatus(req.ToState), req.ObservedVersion, actor)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, precuration)
}

type createCurationRequest struct {
	PrecurationID string `json:"precuration_id" binding:"required"`
}

func (s *Server) handleCreateCuration(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req createCurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	curation, err := s.machine.CreateCuration(c.Request.Context(), req.PrecurationID, actor)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, curation)
}

func (s *Server) handleGetCuration(c *gin.Context) {
	curation, err := s.curations.GetCuration(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, curation)
}

func (s *Server) handleDeleteCuration(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if err := s.machine.SoftDelete(c.Request.Context(), c.Param("id"), actor); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transitionRequest struct {
	ToState         string `json:"to_state" binding:"required"`
	ObservedVersion int64  `json:"observed_version"`
	ReviewerID      string `json:"reviewer_id"`
	Reason          string `json:"reason"`
}

func (s *Server) handleTransition(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.machine.Transition(c.Request.Context(), domain.TransitionRequest{
		CurationID:      c.Param("id"),
		ToState:         domain.CurationStatus(req.ToState),
		ObservedVersion: req.ObservedVersion,
		ReviewerID:      req.ReviewerID,
		Reason:          req.Reason,
	}, actor)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkTransitionRequest struct {
	Items []domain.BulkTransitionItem `json:"items" binding:"required"`
}

func (s *Server) handleBulkTransition(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	var req bulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The batch as a whole always succeeds; per-item failures are carried
	// in the itemized results.
	result := s.coordinator.BulkTransition(c.Request.Context(), req.Items, actor)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleScorePreview(c *gin.Context) {
	result, err := s.machine.ScorePreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	entries, err := s.recorder.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

type saveEvidenceRequest struct {
	ID               string         `json:"id"`
	Category         string         `json:"category" binding:"required"`
	Type             string         `json:"type" binding:"required"`
	Data             map[string]any `json:"data"`
	ValidationStatus string         `json:"validation_status"`
}

func (s *Server) handleSaveEvidence(c *gin.Context) {
	if _, ok := s.actor(c); !ok {
		return
	}
	var req saveEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	curationID := c.Param("id")
	if _, err := s.curations.GetCuration(c.Request.Context(), curationID); err != nil {
		s.respondError(c, err)
		return
	}

	item := &domain.EvidenceItem{
		ID:               req.ID,
		CurationID:       curationID,
		Category:         domain.EvidenceCategory(req.Category),
		Type:             domain.EvidenceType(req.Type),
		ValidationStatus: domain.ValidationStatus(req.ValidationStatus),
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if req.Data != nil {
		payload, err := json.Marshal(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item.Data = payload
	}

	if err := s.evidence.SaveEvidence(c.Request.Context(), item); err != nil {
		s.respondError(c, err)
		return
	}

	// Evidence changed; cached scoring results for the curation are stale.
	s.machine.InvalidateScore(c.Request.Context(), curationID)

	c.JSON(http.StatusOK, item)
}

func (s *Server) handleListEvidence(c *gin.Context) {
	items, err := s.evidence.ListEvidence(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) handleDeleteEvidence(c *gin.Context) {
	if _, ok := s.actor(c); !ok {
		return
	}
	item, err := s.evidence.GetEvidence(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.evidence.DeleteEvidence(c.Request.Context(), item.ID); err != nil {
		s.respondError(c, err)
		return
	}
	s.machine.InvalidateScore(c.Request.Context(), item.CurationID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAuditSummary(c *gin.Context) {
	from, to, err := parseTimeWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := s.recorder.Summarize(c.Request.Context(), from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleStatusDistribution(c *gin.Context) {
	if s.analytics == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "analytics not available in standalone mode"})
		return
	}
	counts, err := s.analytics.StatusDistribution(c.Request.Context(), c.Query("scope_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) handleClassificationDistribution(c *gin.Context) {
	if s.analytics == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "analytics not available in standalone mode"})
		return
	}
	counts, err := s.analytics.ClassificationDistribution(c.Request.Context(), c.Query("scope_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// parseTimeWindow reads from/to query parameters in RFC 3339, defaulting
// to the last 24 hours.
func parseTimeWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/infrasec/internal/api/dto"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/utils"
	"github.com/pratik-mahalle/infrasec/internal/pkg/validator"
)

// RuleHandler exposes the rule lifecycle over HTTP
type RuleHandler struct {
	service   rule.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(service rule.Service, log *logger.Logger, val *validator.Validator) *RuleHandler {
	return &RuleHandler{service: service, logger: log, validator: val}
}

// List returns stored rules, optionally filtered by status, paginated
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		rules []*rule.SecurityRule
		err   error
	)

	if status := r.URL.Query().Get("status"); status != "" {
		s := rule.Status(strings.ToUpper(status))
		if !s.Valid() {
			utils.WriteError(w, errors.BadRequest(fmt.Sprintf("Unknown status: %s", status)))
			return
		}
		rules, err = h.service.GetByStatus(r.Context(), s)
	} else {
		rules, err = h.service.GetAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err, "Failed to list rules")
		return
	}

	p := utils.ParsePaginationParams(r)
	total := len(rules)
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}

	dtos := make([]dto.RuleDTO, 0, end-start)
	for _, rl := range rules[start:end] {
		dtos = append(dtos, ruleDTO(rl))
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(dtos, p.Page, p.PageSize, total))
}

// Get returns a single rule by id
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rl, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get rule")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, ruleDTO(rl))
}

// Create adds a new rule, or updates the rule when the id already exists.
// Detected conflicts are returned alongside the stored rule; a conflicted
// rule is always stored as CANDIDATE.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	origin := rule.Origin(req.Origin)
	if req.Origin == "" {
		origin = rule.OriginStatic
	}

	rl := &rule.SecurityRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Severity:    rule.Severity(req.Severity),
		Pattern:     req.Pattern,
		Remediation: req.Remediation,
		Origin:      origin,
		Status:      rule.Status(req.Status),
		CreatedAt:   time.Now().UTC(),
	}

	conflicts, err := h.service.Add(r.Context(), rl, req.ChangeReason)
	if err != nil {
		writeServiceError(w, err, "Failed to store rule")
		return
	}

	resp := dto.AddRuleResponse{Rule: ruleDTO(rl)}
	for i := range conflicts {
		resp.Conflicts = append(resp.Conflicts, conflictDTO(&conflicts[i]))
	}

	utils.WriteSuccess(w, http.StatusCreated, resp)
}

// Delete removes a rule and everything hanging off it
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Remove(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete rule")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Rule deleted successfully", nil)
}

// Approve transitions a CANDIDATE rule to ACTIVE
func (h *RuleHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Approve(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to approve rule")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Rule approved", nil)
}

// Reject transitions a CANDIDATE rule to REJECTED
func (h *RuleHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Reject(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to reject rule")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Rule rejected", nil)
}

// Versions returns a rule's version history
func (h *RuleHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 404 for unknown rules rather than an empty history
	if _, err := h.service.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to get rule")
		return
	}

	versions, err := h.service.GetVersions(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to list rule versions")
		return
	}

	dtos := make([]dto.VersionDTO, len(versions))
	for i, v := range versions {
		dtos[i] = dto.VersionDTO{
			RuleID:       v.RuleID,
			Version:      v.Version,
			CreatedAt:    v.CreatedAt,
			ChangeReason: v.ChangeReason,
			Snapshot:     ruleDTO(&v.Snapshot),
		}
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Metrics returns a rule's effectiveness metrics
func (h *RuleHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.service.GetMetrics(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get rule metrics")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.MetricsDTO{
		RuleID:             m.RuleID,
		TimesTriggered:     m.TimesTriggered,
		TruePositives:      m.TruePositives,
		FalsePositives:     m.FalsePositives,
		LastTriggered:      m.LastTriggered,
		EffectivenessScore: m.EffectivenessScore,
	})
}

// Feedback records triage feedback for a rule's metrics
func (h *RuleHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.MetricsFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if err := h.service.UpdateMetrics(r.Context(), id, req.Triggered, req.IsTruePositive); err != nil {
		writeServiceError(w, err, "Failed to update rule metrics")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Metrics updated", nil)
}

// Conflicts returns all open conflicts
func (h *RuleHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.service.GetConflicts(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list conflicts")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, conflictDTOs(conflicts))
}

// ConflictsForRule returns open conflicts involving one rule
func (h *RuleHandler) ConflictsForRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conflicts, err := h.service.GetConflictsForRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to list conflicts for rule")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, conflictDTOs(conflicts))
}

// ResolveConflict resolves a conflict pair
func (h *RuleHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveConflictRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	err := h.service.ResolveConflict(r.Context(), req.RuleID, req.ConflictingRuleID, rule.Resolution(req.Resolution))
	if err != nil {
		writeServiceError(w, err, "Failed to resolve conflict")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Conflict resolved", nil)
}

// Stats summarizes the stored rule set
func (h *RuleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to get rule stats")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, stats)
}

package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/infrasec/internal/api/dto"
	"github.com/pratik-mahalle/infrasec/internal/catalog"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/utils"
	"github.com/pratik-mahalle/infrasec/internal/pkg/validator"
	"github.com/pratik-mahalle/infrasec/internal/services"
)

// ScanHandler exposes configuration scanning over HTTP
type ScanHandler struct {
	scanner   *services.ScanService
	catalog   *catalog.Catalog
	logger    *logger.Logger
	validator *validator.Validator
}

// NewScanHandler creates a new scan handler. The catalog may be nil when no
// rules file is configured.
func NewScanHandler(scanner *services.ScanService, cat *catalog.Catalog, log *logger.Logger, val *validator.Validator) *ScanHandler {
	return &ScanHandler{scanner: scanner, catalog: cat, logger: log, validator: val}
}

// ScanContent parses the submitted configuration and evaluates the active
// rule set against it
func (h *ScanHandler) ScanContent(w http.ResponseWriter, r *http.Request) {
	var req dto.ScanContentRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	result, err := h.scanner.ScanContent(r.Context(), req.Filename, []byte(req.Content))
	if err != nil {
		writeServiceError(w, err, "Scan failed")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, scanResultDTO(result))
}

// ScanPath scans a file or directory on the server's filesystem
func (h *ScanHandler) ScanPath(w http.ResponseWriter, r *http.Request) {
	var req dto.ScanPathRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	result, err := h.scanner.ScanPath(r.Context(), req.Path)
	if err != nil {
		writeServiceError(w, err, "Scan failed")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, scanResultDTO(result))
}

// ReloadCatalog re-reads the rules file and upserts its contents
func (h *ScanHandler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		utils.WriteError(w, errors.BadRequest("No rules file configured"))
		return
	}

	if err := h.catalog.Reload(r.Context()); err != nil {
		writeServiceError(w, err, "Catalog reload failed")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Catalog reloaded", nil)
}

func scanResultDTO(res *services.ScanResult) dto.ScanResultDTO {
	return dto.ScanResultDTO{
		Findings:      findingDTOs(res.Findings),
		ResourceCount: res.ResourceCount,
		RuleCount:     res.RuleCount,
		DurationMS:    res.DurationMS,
		ScannedAt:     res.ScannedAt,
	}
}

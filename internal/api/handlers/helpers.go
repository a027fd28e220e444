package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pratik-mahalle/infrasec/internal/api/dto"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/utils"
)

// writeServiceError maps a service error onto the response envelope. AppErrors
// keep their code and status; anything else becomes a 500.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	if appErr, ok := err.(*errors.AppError); ok {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteError(w, errors.Internal(fallback, err))
}

// decodeJSON decodes a request body, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func ruleDTO(r *rule.SecurityRule) dto.RuleDTO {
	return dto.RuleDTO{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Severity:    string(r.Severity),
		Pattern:     r.Pattern,
		Remediation: r.Remediation,
		Origin:      string(r.Origin),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}

func conflictDTO(c *rule.Conflict) dto.ConflictDTO {
	return dto.ConflictDTO{
		RuleID:            c.RuleID,
		ConflictingRuleID: c.ConflictingRuleID,
		Type:              string(c.Type),
		Description:       c.Description,
		Severity:          string(c.Severity),
	}
}

func conflictDTOs(conflicts []*rule.Conflict) []dto.ConflictDTO {
	out := make([]dto.ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		out[i] = conflictDTO(c)
	}
	return out
}

func findingDTOs(findings []rule.Finding) []dto.FindingDTO {
	out := make([]dto.FindingDTO, len(findings))
	for i, f := range findings {
		out[i] = dto.FindingDTO{
			RuleID:      f.RuleID,
			Severity:    string(f.Severity),
			Description: f.Description,
			FilePath:    f.FilePath,
			LineNumber:  f.LineNumber,
			Remediation: f.Remediation,
		}
	}
	return out
}
